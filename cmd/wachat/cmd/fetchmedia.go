package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eyalbarash/whatsapp-chat-storage/internal/media"
)

var fetchMediaLimit int

var fetchMediaCmd = &cobra.Command{
	Use:   "fetch-media",
	Short: "Download queued media attachments",
	Long: `Drain the media download queue: fetch each attachment, store it under
the media directory partitioned by type, and generate thumbnails for
images. Failed downloads stay queued and are retried on the next run,
up to three attempts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		fetcher := media.NewFetcher(st, client, cfg.MediaDir(), media.WithLogger(logger))
		res, err := fetcher.Run(cmd.Context(), fetchMediaLimit)
		if err != nil {
			return err
		}

		fmt.Printf("Media fetch: %d downloaded, %d failed\n", res.Downloaded, res.Failed)
		return nil
	},
}

func init() {
	fetchMediaCmd.Flags().IntVar(&fetchMediaLimit, "limit", 0, "max downloads this run (0 = all pending)")
	rootCmd.AddCommand(fetchMediaCmd)
}
