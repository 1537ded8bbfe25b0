package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// IncrementalSummary reports the outcome of an incremental pass.
type IncrementalSummary struct {
	ChatsSynced    int
	ChatsFailed    int
	MessagesSynced int64
	UsedFallback   bool
	Duration       time.Duration
}

// IncrementalStatus is the persisted record of the most recent incremental
// pass, used by status commands and scheduled runs.
type IncrementalStatus struct {
	LastRun         time.Time `json:"last_run"`
	ChatsSynced     int       `json:"chats_synced"`
	ChatsFailed     int       `json:"chats_failed"`
	MessagesSynced  int64     `json:"messages_synced"`
	DurationSeconds float64   `json:"duration_seconds"`
	FailedChatIDs   []string  `json:"failed_chat_ids,omitempty"`
}

// LoadIncrementalStatus reads the status file. A missing file returns (nil, nil).
func LoadIncrementalStatus(path string) (*IncrementalStatus, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read incremental status: %w", err)
	}
	st := &IncrementalStatus{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parse incremental status: %w", err)
	}
	return st, nil
}

// Incremental refreshes recently active chats with a shallow history fetch.
// Chats already covered by a sync inside the recent-sync window are pushed to
// the back of the queue; when no chat qualifies as active, the most recently
// active chats on record are refreshed instead.
func (s *Syncer) Incremental(ctx context.Context) (*IncrementalSummary, error) {
	start := time.Now()
	summary := &IncrementalSummary{}

	targets, usedFallback, err := s.incrementalTargets()
	if err != nil {
		return nil, err
	}
	summary.UsedFallback = usedFallback

	s.logger.Info("starting incremental sync", "chats", len(targets), "fallback", usedFallback)

	var failed []string
	for i, chatID := range targets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res, err := s.SyncChat(ctx, chatID, s.opts.IncrementalMessages)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			s.logger.Warn("chat sync failed", "chat", chatID, "error", err)
			failed = append(failed, chatID)
			summary.ChatsFailed++
		} else {
			summary.ChatsSynced++
			summary.MessagesSynced += int64(res.New)
		}

		if i < len(targets)-1 {
			if err := sleepCtx(ctx, s.opts.ChatDelay); err != nil {
				return summary, err
			}
		}
	}

	summary.Duration = time.Since(start)
	if s.opts.StatusPath != "" {
		status := &IncrementalStatus{
			LastRun:         time.Now().UTC(),
			ChatsSynced:     summary.ChatsSynced,
			ChatsFailed:     summary.ChatsFailed,
			MessagesSynced:  summary.MessagesSynced,
			DurationSeconds: summary.Duration.Seconds(),
			FailedChatIDs:   failed,
		}
		if err := saveJSON(s.opts.StatusPath, status); err != nil {
			return summary, err
		}
	}

	s.logger.Info("incremental sync completed",
		"chats_synced", summary.ChatsSynced,
		"chats_failed", summary.ChatsFailed,
		"messages_synced", summary.MessagesSynced,
		"duration", summary.Duration.Round(time.Second))
	return summary, nil
}

// incrementalTargets selects and orders the chats an incremental pass should
// touch.
func (s *Syncer) incrementalTargets() ([]string, bool, error) {
	now := time.Now()

	active, err := s.store.ActiveChatIDs(now.Add(-s.opts.ActiveWindow))
	if err != nil {
		return nil, false, err
	}

	if len(active) == 0 {
		// Quiet account: refresh the most recently active chats on record.
		summaries, err := s.store.ChatSummaries(s.opts.FallbackChats)
		if err != nil {
			return nil, false, err
		}
		targets := make([]string, 0, len(summaries))
		for _, cs := range summaries {
			targets = append(targets, cs.WhatsAppChatID)
		}
		return targets, true, nil
	}

	recent, err := s.store.RecentlySyncedChatIDs(now.Add(-s.opts.RecentSyncWindow))
	if err != nil {
		return nil, false, err
	}

	var fresh, deferred []string
	for _, id := range active {
		if recent[id] {
			deferred = append(deferred, id)
		} else {
			fresh = append(fresh, id)
		}
	}
	targets := append(fresh, deferred...)

	if s.opts.MaxActiveChats > 0 && len(targets) > s.opts.MaxActiveChats {
		targets = targets[:s.opts.MaxActiveChats]
	}
	return targets, false, nil
}

func saveJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}
