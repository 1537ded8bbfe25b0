package cmd

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// newTestRootCmd creates a fresh root command for testing, avoiding mutation
// of the global rootCmd which could cause race conditions in parallel tests.
func newTestRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wachat",
		Short: "WhatsApp chat archive tool",
	}
}

// TestExecuteContext_CancellationPropagates verifies that context cancellation
// from ExecuteContext propagates to command handlers.
func TestExecuteContext_CancellationPropagates(t *testing.T) {
	var contextWasCancelled atomic.Bool
	handlerStarted := make(chan struct{})

	root := newTestRootCmd()
	root.AddCommand(&cobra.Command{
		Use: "wait",
		RunE: func(cmd *cobra.Command, args []string) error {
			close(handlerStarted)
			select {
			case <-cmd.Context().Done():
				contextWasCancelled.Store(true)
				return cmd.Context().Err()
			case <-time.After(5 * time.Second):
				return nil
			}
		},
	})
	root.SetArgs([]string{"wait"})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- root.ExecuteContext(ctx)
	}()

	<-handlerStarted
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected a cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command did not return after cancellation")
	}
	if !contextWasCancelled.Load() {
		t.Error("handler never observed cancellation")
	}
}

// TestChatIDNormalization checks the bare-phone-number convenience used by
// the sync and send commands.
func TestChatIDNormalization(t *testing.T) {
	cases := map[string]string{
		"15551234567":      "15551234567@c.us",
		"15551234567@c.us": "15551234567@c.us",
		"120363001@g.us":   "120363001@g.us",
	}
	for in, want := range cases {
		if got := normalizeChatID(in); got != want {
			t.Errorf("normalizeChatID(%q) = %q, want %q", in, got, want)
		}
	}
}
