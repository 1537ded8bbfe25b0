package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eyalbarash/whatsapp-chat-storage/internal/media"
	"github.com/eyalbarash/whatsapp-chat-storage/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run scheduled incremental syncs",
	Long: `Run in the foreground, executing incremental syncs on the cron
schedules from the config file, e.g.:

  [[schedule]]
  name = "morning"
  schedule = "0 8 * * *"
  enabled = true

Each run also drains the media download queue. Stop with Ctrl-C; a running
sync is cancelled and its progress is kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.EnabledSchedules()) == 0 {
			return fmt.Errorf("no enabled [[schedule]] entries in config")
		}

		sched := scheduler.New(runScheduledSync).WithLogger(logger)
		scheduled, errs := sched.AddJobsFromConfig(cfg)
		for _, err := range errs {
			logger.Error("skipping schedule entry", "error", err)
		}
		if scheduled == 0 {
			return fmt.Errorf("no valid schedule entries")
		}

		sched.Start()
		for _, st := range sched.Status() {
			fmt.Printf("Scheduled %s (%s), next run %s\n",
				st.Name, st.Schedule, st.NextRun.Local().Format("2006-01-02 15:04:05"))
		}

		<-cmd.Context().Done()

		stopCtx := sched.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(30 * time.Second):
			logger.Warn("timed out waiting for running sync to stop")
		}
		return cmd.Context().Err()
	},
}

// runScheduledSync is the scheduler callback: one incremental pass followed
// by a media queue drain.
func runScheduledSync(ctx context.Context, job string) error {
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

	if _, err := newSyncer(client, st).Incremental(ctx); err != nil {
		return err
	}

	fetcher := media.NewFetcher(st, client, cfg.MediaDir(), media.WithLogger(logger))
	_, err = fetcher.Run(ctx, 0)
	return err
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
