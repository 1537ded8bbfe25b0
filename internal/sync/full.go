package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/eyalbarash/whatsapp-chat-storage/internal/greenapi"
)

// FullSummary reports the outcome of a full sync.
type FullSummary struct {
	ChatsTotal     int
	ChatsProcessed int
	ChatsFailed    int
	ChatsSkipped   int
	MessagesSynced int64
	WasResumed     bool
	Interrupted    bool
	Duration       time.Duration
}

// Full syncs every chat on the account, deepest history first for the most
// relevant chats. Progress is checkpointed after every chat; when resume is
// true and a resumable checkpoint exists, chats it already covers are
// skipped. Cancellation marks the checkpoint interrupted and returns the
// context error.
func (s *Syncer) Full(ctx context.Context, resume bool) (*FullSummary, error) {
	start := time.Now()
	summary := &FullSummary{}

	cp := NewCheckpoint()
	if resume && s.opts.CheckpointPath != "" {
		prev, err := LoadCheckpoint(s.opts.CheckpointPath)
		if err != nil {
			return nil, err
		}
		if prev != nil && prev.Resumable() {
			cp = prev
			cp.Status = StatusRunning
			summary.WasResumed = true
			s.logger.Info("resuming full sync",
				"chats_attempted", cp.ChatsProcessed,
				"messages_synced", cp.TotalMessagesSynced)
		}
	}

	state, err := s.client.GetState(ctx)
	if err != nil {
		return s.finishFull(summary, cp, start, StatusError, fmt.Errorf("get instance state: %w", err))
	}
	if !state.Authorized() {
		return s.finishFull(summary, cp, start, StatusError, fmt.Errorf("instance not authorized: state %q", state.State))
	}

	chats, err := s.client.GetChats(ctx)
	if err != nil {
		return s.finishFull(summary, cp, start, StatusError, fmt.Errorf("list chats: %w", err))
	}
	ordered := prioritizeChats(chats)
	summary.ChatsTotal = len(ordered)

	// The cursor counts attempted chats, failures included, so a resumed run
	// continues past chats that failed earlier instead of retrying them.
	startIndex := 0
	if summary.WasResumed {
		startIndex = cp.ChatsProcessed
		if startIndex > len(ordered) {
			startIndex = len(ordered)
		}
		summary.ChatsSkipped = startIndex
	}

	s.logger.Info("starting full sync", "chats", len(ordered), "resumed", summary.WasResumed)

	sinceLastPause := 0
	for i := startIndex; i < len(ordered); i++ {
		chat := ordered[i]
		if cp.Processed(chat.ID) {
			summary.ChatsSkipped++
			cp.ChatsProcessed = i + 1
			continue
		}

		if err := ctx.Err(); err != nil {
			return s.finishFull(summary, cp, start, StatusInterrupted, err)
		}

		res, err := s.SyncChat(ctx, chat.ID, s.opts.MessagesPerChat)
		if err != nil {
			if ctx.Err() != nil {
				return s.finishFull(summary, cp, start, StatusInterrupted, ctx.Err())
			}
			s.logger.Warn("chat sync failed", "chat", chat.ID, "error", err)
			cp.MarkFailed(chat.ID)
			summary.ChatsFailed++
		} else {
			cp.MarkProcessed(chat.ID, int64(res.New))
			summary.ChatsProcessed++
			summary.MessagesSynced += int64(res.New)
		}

		cp.ChatsProcessed = i + 1
		if err := s.saveCheckpoint(cp); err != nil {
			return nil, err
		}

		sinceLastPause++
		if s.opts.MaxChats > 0 && sinceLastPause >= s.opts.MaxChats {
			s.logger.Info("chat limit reached", "attempted", sinceLastPause)
			return s.finishFull(summary, cp, start, StatusRunning, nil)
		}
		pause := s.opts.ChatDelay
		if s.opts.BatchSize > 0 && sinceLastPause%s.opts.BatchSize == 0 {
			pause += s.opts.BatchPause
			s.logger.Debug("batch pause", "after_chats", sinceLastPause)
		}
		if err := sleepCtx(ctx, pause); err != nil {
			return s.finishFull(summary, cp, start, StatusInterrupted, err)
		}
	}

	sum, _ := s.finishFull(summary, cp, start, StatusCompleted, nil)
	s.logger.Info("full sync completed",
		"chats_processed", summary.ChatsProcessed,
		"chats_failed", summary.ChatsFailed,
		"messages_synced", summary.MessagesSynced,
		"duration", summary.Duration.Round(time.Second))
	return sum, nil
}

func (s *Syncer) finishFull(summary *FullSummary, cp *Checkpoint, start time.Time, status string, cause error) (*FullSummary, error) {
	cp.Status = status
	summary.Interrupted = status == StatusInterrupted
	summary.Duration = time.Since(start)
	if err := s.saveCheckpoint(cp); err != nil && cause == nil {
		return summary, err
	}
	return summary, cause
}

func (s *Syncer) saveCheckpoint(cp *Checkpoint) error {
	if s.opts.CheckpointPath == "" {
		return nil
	}
	return cp.Save(s.opts.CheckpointPath)
}

// prioritizeChats orders chats for a full sync: active private chats first,
// then active groups, then archived private chats, then archived groups.
// Within each class the order is stable by phone number or group name.
func prioritizeChats(chats []greenapi.ChatInfo) []greenapi.ChatInfo {
	classOf := func(c greenapi.ChatInfo) int {
		switch {
		case !c.Archived && !c.Group():
			return 0
		case !c.Archived && c.Group():
			return 1
		case c.Archived && !c.Group():
			return 2
		default:
			return 3
		}
	}
	sortKey := func(c greenapi.ChatInfo) string {
		if c.Group() {
			if c.Name != "" {
				return c.Name
			}
			return c.ID
		}
		return c.Phone()
	}

	ordered := make([]greenapi.ChatInfo, len(chats))
	copy(ordered, chats)
	sort.SliceStable(ordered, func(i, j int) bool {
		ci, cj := classOf(ordered[i]), classOf(ordered[j])
		if ci != cj {
			return ci < cj
		}
		return sortKey(ordered[i]) < sortKey(ordered[j])
	})
	return ordered
}
