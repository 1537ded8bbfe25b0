package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eyalbarash/whatsapp-chat-storage/internal/sync"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archive and sync status",
	Long: `Show database statistics, the state of the last full sync and the
last incremental pass, and the Green API instance state when credentials
are configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.GetStats()
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		fmt.Printf("Database: %s\n", cfg.DatabasePath())
		fmt.Printf("  Contacts:      %d\n", stats.ContactCount)
		fmt.Printf("  Groups:        %d\n", stats.GroupCount)
		fmt.Printf("  Chats:         %d\n", stats.ChatCount)
		fmt.Printf("  Messages:      %d\n", stats.MessageCount)
		fmt.Printf("  With media:    %d\n", stats.MediaMessageCount)
		fmt.Printf("  Media pending: %d\n", stats.PendingMediaCount)
		fmt.Printf("  Size:          %.2f MB\n", float64(stats.DatabaseSize)/(1024*1024))

		cp, err := sync.LoadCheckpoint(cfg.CheckpointPath())
		if err != nil {
			return err
		}
		if cp != nil {
			fmt.Printf("\nFull sync: %s\n", cp.Status)
			fmt.Printf("  Chats attempted: %d (%d failed)\n", cp.ChatsProcessed, len(cp.FailedChatIDs))
			fmt.Printf("  Messages synced: %d\n", cp.TotalMessagesSynced)
			fmt.Printf("  Last update:     %s\n", cp.LastUpdate.Local().Format("2006-01-02 15:04:05"))
		} else {
			fmt.Println("\nFull sync: never run")
		}

		inc, err := sync.LoadIncrementalStatus(cfg.IncrementalStatusPath())
		if err != nil {
			return err
		}
		if inc != nil {
			fmt.Printf("\nIncremental sync: last run %s\n", inc.LastRun.Local().Format("2006-01-02 15:04:05"))
			fmt.Printf("  Chats synced:    %d (%d failed)\n", inc.ChatsSynced, inc.ChatsFailed)
			fmt.Printf("  Messages synced: %d\n", inc.MessagesSynced)
		} else {
			fmt.Println("\nIncremental sync: never run")
		}

		if cfg.HasCredentials() {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			defer client.Close()

			state, err := client.GetState(cmd.Context())
			if err != nil {
				fmt.Printf("\nInstance: unreachable (%v)\n", err)
				return nil
			}
			fmt.Printf("\nInstance: %s\n", state.State)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
