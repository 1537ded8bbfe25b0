package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Full-sync checkpoint states.
const (
	StatusRunning     = "running"
	StatusInterrupted = "interrupted"
	StatusCompleted   = "completed"
	StatusError       = "error"
)

// Checkpoint is the resumable state of a full sync, persisted as JSON after
// every chat so an interrupted run can pick up where it stopped.
//
// ChatsProcessed is a cursor: the number of chats attempted so far in the
// prioritized order, counting failures. A resumed run continues from it, so
// a chat that failed in an earlier run is not retried automatically.
type Checkpoint struct {
	Status              string    `json:"status"`
	ProcessedChatIDs    []string  `json:"processed_chat_ids"`
	FailedChatIDs       []string  `json:"failed_chat_ids"`
	ChatsProcessed      int       `json:"chats_processed"`
	TotalMessagesSynced int64     `json:"total_messages_synced"`
	StartedAt           time.Time `json:"started_at"`
	LastUpdate          time.Time `json:"last_update"`
}

// NewCheckpoint starts a fresh full-sync checkpoint.
func NewCheckpoint() *Checkpoint {
	now := time.Now().UTC()
	return &Checkpoint{
		Status:     StatusRunning,
		StartedAt:  now,
		LastUpdate: now,
	}
}

// LoadCheckpoint reads a checkpoint file. A missing file returns (nil, nil).
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	cp := &Checkpoint{}
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp, nil
}

// Save writes the checkpoint atomically via a temp file and rename.
func (c *Checkpoint) Save(path string) error {
	c.LastUpdate = time.Now().UTC()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Resumable reports whether this checkpoint describes a run worth resuming.
// An errored run keeps its cursor, so it resumes like an interrupted one.
func (c *Checkpoint) Resumable() bool {
	switch c.Status {
	case StatusRunning, StatusInterrupted, StatusError:
		return true
	}
	return false
}

// Processed reports whether the chat was already completed in this run.
func (c *Checkpoint) Processed(chatID string) bool {
	for _, id := range c.ProcessedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// MarkProcessed records a completed chat. Re-marking is a no-op. The cursor
// is advanced separately by the driver, which also counts failed attempts.
func (c *Checkpoint) MarkProcessed(chatID string, newMessages int64) {
	if c.Processed(chatID) {
		return
	}
	c.ProcessedChatIDs = append(c.ProcessedChatIDs, chatID)
	c.TotalMessagesSynced += newMessages
}

// MarkFailed records a chat whose sync failed. Duplicates are collapsed.
func (c *Checkpoint) MarkFailed(chatID string) {
	for _, id := range c.FailedChatIDs {
		if id == chatID {
			return
		}
	}
	c.FailedChatIDs = append(c.FailedChatIDs, chatID)
}
