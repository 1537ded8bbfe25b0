package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var syncCount int

var syncCmd = &cobra.Command{
	Use:   "sync <chat-id>",
	Short: "Sync a single chat",
	Long: `Fetch message history for one chat and store what is new.

The chat ID is either a full WhatsApp identifier (15551234567@c.us,
120363043211@g.us) or a bare phone number, which is treated as a private
chat.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID := normalizeChatID(args[0])

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		defer client.Close()

		res, err := newSyncer(client, st).SyncChat(cmd.Context(), chatID, syncCount)
		if err != nil {
			return err
		}

		fmt.Printf("Synced %s: %d fetched, %d new, %d media queued\n",
			res.ChatID, res.Fetched, res.New, res.MediaQueued)
		if res.Skipped > 0 {
			fmt.Printf("  %d messages skipped\n", res.Skipped)
		}
		return nil
	},
}

// normalizeChatID treats a bare phone number as a private chat identifier.
func normalizeChatID(id string) string {
	if !strings.Contains(id, "@") {
		return id + "@c.us"
	}
	return id
}

func init() {
	syncCmd.Flags().IntVar(&syncCount, "count", 0, "messages to fetch (default: messages_per_chat from config)")
	rootCmd.AddCommand(syncCmd)
}
