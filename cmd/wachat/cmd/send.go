package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	sendFileURL  string
	sendFileName string
	sendCaption  string
)

var sendCmd = &cobra.Command{
	Use:   "send <chat-id> [text]",
	Short: "Send a message to a chat",
	Long: `Send a text message, or a file by URL with --file.

The chat ID is either a full WhatsApp identifier or a bare phone number.
The sent message appears in the archive on the next sync of that chat.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID := normalizeChatID(args[0])

		text := ""
		if len(args) == 2 {
			text = args[1]
		}
		if text == "" && sendFileURL == "" {
			return fmt.Errorf("nothing to send: provide message text or --file")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		defer client.Close()

		if sendFileURL != "" {
			name := sendFileName
			if name == "" {
				parts := strings.Split(sendFileURL, "/")
				name = parts[len(parts)-1]
			}
			caption := sendCaption
			if caption == "" {
				caption = text
			}
			id, err := client.SendFileByURL(cmd.Context(), chatID, sendFileURL, name, caption)
			if err != nil {
				return err
			}
			fmt.Printf("Sent file to %s (message %s)\n", chatID, id)
			return nil
		}

		id, err := client.SendMessage(cmd.Context(), chatID, text)
		if err != nil {
			return err
		}
		fmt.Printf("Sent to %s (message %s)\n", chatID, id)
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendFileURL, "file", "", "URL of a file to send instead of text")
	sendCmd.Flags().StringVar(&sendFileName, "filename", "", "file name shown to the recipient (default: derived from URL)")
	sendCmd.Flags().StringVar(&sendCaption, "caption", "", "caption for the file")
	rootCmd.AddCommand(sendCmd)
}
