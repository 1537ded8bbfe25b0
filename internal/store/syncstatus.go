package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SyncStatus is a row in the sync_status table.
type SyncStatus struct {
	ChatID              int64
	LastSyncedMessageID sql.NullString
	LastSyncTimestamp   sql.NullString
	TotalMessagesSynced int64
	LastError           sql.NullString
}

// UpdateSyncStatus records the outcome of a sync pass over a chat.
// newMessages is added to the running total; lastMessageID, when non-empty,
// becomes the chat's newest-synced message pointer (an empty value keeps the
// previous pointer). syncErr, when non-empty, is stored as the last error and
// a successful pass clears it.
func (s *Store) UpdateSyncStatus(chatID int64, lastMessageID string, newMessages int64, syncErr string) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_status (chat_id, last_synced_message_id, last_sync_timestamp, total_messages_synced, last_error)
		VALUES (?, ?, datetime('now'), ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			last_synced_message_id = COALESCE(excluded.last_synced_message_id, sync_status.last_synced_message_id),
			last_sync_timestamp = excluded.last_sync_timestamp,
			total_messages_synced = sync_status.total_messages_synced + excluded.total_messages_synced,
			last_error = excluded.last_error`,
		chatID, nullString(lastMessageID), newMessages, nullString(syncErr))
	if err != nil {
		return fmt.Errorf("update sync status: %w", err)
	}
	return nil
}

// GetSyncStatus returns the sync status for a chat, or nil when the chat has
// never been synced.
func (s *Store) GetSyncStatus(chatID int64) (*SyncStatus, error) {
	st := &SyncStatus{}
	err := s.db.QueryRow(`
		SELECT chat_id, last_synced_message_id, last_sync_timestamp, total_messages_synced, last_error
		FROM sync_status WHERE chat_id = ?`, chatID,
	).Scan(&st.ChatID, &st.LastSyncedMessageID, &st.LastSyncTimestamp, &st.TotalMessagesSynced, &st.LastError)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync status: %w", err)
	}
	return st, nil
}

// RecentlySyncedChatIDs returns the WhatsApp chat IDs of chats synced at or
// after the cutoff. Used to deprioritize chats that were covered by a recent
// pass.
func (s *Store) RecentlySyncedChatIDs(since time.Time) (map[string]bool, error) {
	rows, err := s.db.Query(`
		SELECT c.whatsapp_chat_id
		FROM sync_status ss
		JOIN chats c ON c.chat_id = ss.chat_id
		WHERE ss.last_sync_timestamp IS NOT NULL AND ss.last_sync_timestamp >= ?`,
		formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("list recently synced chats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}
