package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eyalbarash/whatsapp-chat-storage/internal/media"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the database schema and media directories",
	Long: `Initialize the wachat database with the required schema and create
the media directory tree.

This command creates all necessary tables for storing chats, messages,
contacts, groups and sync state. It is safe to run multiple times - tables
are only created if they don't already exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Info("initializing database", "path", cfg.DatabasePath())

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		layout := media.Layout{Root: cfg.MediaDir()}
		if err := layout.EnsureDirs(); err != nil {
			return err
		}

		stats, err := st.GetStats()
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		fmt.Printf("Database: %s\n", cfg.DatabasePath())
		fmt.Printf("  Contacts: %d\n", stats.ContactCount)
		fmt.Printf("  Groups:   %d\n", stats.GroupCount)
		fmt.Printf("  Chats:    %d\n", stats.ChatCount)
		fmt.Printf("  Messages: %d\n", stats.MessageCount)
		fmt.Printf("  Size:     %.2f MB\n", float64(stats.DatabaseSize)/(1024*1024))
		fmt.Printf("Media:    %s\n", cfg.MediaDir())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}
