package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Media queue states stored in media_download_queue.download_status.
const (
	MediaStatusPending     = "pending"
	MediaStatusDownloading = "downloading"
	MediaStatusCompleted   = "completed"
	MediaStatusFailed      = "failed"
)

// MediaQueueEntry is a pending download joined with the message it belongs to.
type MediaQueueEntry struct {
	QueueID       int64
	MessageID     int64
	MediaURL      string
	Status        string
	Attempts      int
	MessageType   string
	ExternalID    string
	MediaFilename sql.NullString
	MediaMimeType sql.NullString
}

// EnqueueMedia adds a message's media URL to the download queue. Enqueueing
// the same message and URL again is a no-op, so re-syncing a chat never
// duplicates queue entries.
func (s *Store) EnqueueMedia(messageID int64, mediaURL string) error {
	if mediaURL == "" {
		return fmt.Errorf("enqueue media: media url is required")
	}
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO media_download_queue (message_id, media_url)
		VALUES (?, ?)`, messageID, mediaURL)
	if err != nil {
		return fmt.Errorf("enqueue media: %w", err)
	}
	return nil
}

// PendingMedia returns queue entries awaiting download, oldest first.
// Failed entries below the attempt limit are included so they get retried.
// A zero limit returns all eligible entries.
func (s *Store) PendingMedia(limit, maxAttempts int) ([]MediaQueueEntry, error) {
	query := `
		SELECT q.queue_id, q.message_id, q.media_url, q.download_status, q.download_attempts,
		       m.message_type, m.whatsapp_message_id, m.media_filename, m.media_mime_type
		FROM media_download_queue q
		JOIN messages m ON m.message_id = q.message_id
		WHERE q.download_status IN ('pending', 'failed') AND q.download_attempts < ?
		ORDER BY q.created_at, q.queue_id`
	args := []interface{}{maxAttempts}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending media: %w", err)
	}
	defer rows.Close()

	var out []MediaQueueEntry
	for rows.Next() {
		var e MediaQueueEntry
		if err := rows.Scan(&e.QueueID, &e.MessageID, &e.MediaURL, &e.Status, &e.Attempts,
			&e.MessageType, &e.ExternalID, &e.MediaFilename, &e.MediaMimeType); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkMediaDownloading transitions a queue entry to the downloading state and
// counts the attempt.
func (s *Store) MarkMediaDownloading(queueID int64) error {
	_, err := s.db.Exec(`
		UPDATE media_download_queue
		SET download_status = ?, download_attempts = download_attempts + 1,
		    last_attempt_at = datetime('now')
		WHERE queue_id = ?`, MediaStatusDownloading, queueID)
	if err != nil {
		return fmt.Errorf("mark media downloading: %w", err)
	}
	return nil
}

// CompleteMediaDownload marks a queue entry completed and records the local
// file (and optional thumbnail) on the message row, in one transaction.
func (s *Store) CompleteMediaDownload(queueID int64, localPath, thumbnailPath string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var messageID int64
		err := tx.QueryRow(
			"SELECT message_id FROM media_download_queue WHERE queue_id = ?", queueID,
		).Scan(&messageID)
		if err != nil {
			return fmt.Errorf("lookup queue entry: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE media_download_queue
			SET download_status = ?, local_path = ?, error_message = NULL
			WHERE queue_id = ?`, MediaStatusCompleted, localPath, queueID)
		if err != nil {
			return fmt.Errorf("complete queue entry: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE messages
			SET local_media_path = ?, media_thumbnail_path = ?, updated_at = datetime('now')
			WHERE message_id = ?`, localPath, nullString(thumbnailPath), messageID)
		if err != nil {
			return fmt.Errorf("record local media path: %w", err)
		}
		return nil
	})
}

// FailMediaDownload marks a queue entry failed with the given reason. The
// entry stays eligible for retry until it exceeds the attempt limit.
func (s *Store) FailMediaDownload(queueID int64, reason string) error {
	_, err := s.db.Exec(`
		UPDATE media_download_queue
		SET download_status = ?, error_message = ?
		WHERE queue_id = ?`, MediaStatusFailed, reason, queueID)
	if err != nil {
		return fmt.Errorf("fail media download: %w", err)
	}
	return nil
}

// PruneCompletedMedia deletes completed queue entries older than the cutoff.
// Returns the number of rows removed.
func (s *Store) PruneCompletedMedia(before time.Time) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM media_download_queue
		WHERE download_status = ? AND created_at < ?`,
		MediaStatusCompleted, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune media queue: %w", err)
	}
	return res.RowsAffected()
}
