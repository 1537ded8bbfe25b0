package store

import (
	"database/sql"
	"fmt"
	"time"
)

// MessageParams describes a message to persist. ChatID and ExternalID are
// required; ExternalID is the provider's message identifier, unique per chat.
type MessageParams struct {
	ChatID          int64
	ExternalID      string
	SenderContactID int64
	Type            string
	Content         string
	Timestamp       time.Time
	Outgoing        bool
	Forwarded       bool
	ReplyToID       string

	MediaURL       string
	MediaFilename  string
	MediaMimeType  string
	MediaSizeBytes int64

	Latitude        *float64
	Longitude       *float64
	LocationName    string
	LocationAddress string

	SharedContactName  string
	SharedContactPhone string
	SharedContactVCard string
}

// CreateMessage inserts a message and advances the chat's last-activity
// pointer in the same transaction, so the chat row never references a message
// that was not persisted. Returns the new row ID.
func (s *Store) CreateMessage(p MessageParams) (int64, error) {
	if p.ChatID == 0 {
		return 0, fmt.Errorf("create message: chat id is required")
	}
	if p.ExternalID == "" {
		return 0, fmt.Errorf("create message: external message id is required")
	}
	msgType := p.Type
	if msgType == "" {
		msgType = "text"
	}
	ts := formatTime(p.Timestamp)

	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO messages (
				whatsapp_message_id, chat_id, sender_contact_id, message_type, content,
				timestamp, is_outgoing, is_forwarded, reply_to_message_id,
				media_url, media_filename, media_mime_type, media_size_bytes,
				location_latitude, location_longitude, location_name, location_address,
				shared_contact_name, shared_contact_phone, shared_contact_vcard
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ExternalID, p.ChatID, nullInt64(p.SenderContactID), msgType, nullString(p.Content),
			ts, boolToInt(p.Outgoing), boolToInt(p.Forwarded), nullString(p.ReplyToID),
			nullString(p.MediaURL), nullString(p.MediaFilename), nullString(p.MediaMimeType),
			nullInt64(p.MediaSizeBytes),
			nullFloat64(p.Latitude), nullFloat64(p.Longitude),
			nullString(p.LocationName), nullString(p.LocationAddress),
			nullString(p.SharedContactName), nullString(p.SharedContactPhone),
			nullString(p.SharedContactVCard))
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}

		// last_activity only moves forward; backfilling old history must not
		// rewind a chat that already saw newer messages.
		_, err = tx.Exec(`
			UPDATE chats SET
				last_activity = CASE
					WHEN last_activity IS NULL OR last_activity < ? THEN ?
					ELSE last_activity
				END,
				last_message_id = CASE
					WHEN last_activity IS NULL OR last_activity < ? THEN ?
					ELSE last_message_id
				END,
				updated_at = datetime('now')
			WHERE chat_id = ?`, ts, ts, ts, id, p.ChatID)
		if err != nil {
			return fmt.Errorf("advance chat activity: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// MessageExists reports whether a message with the given external ID is
// already stored for the chat.
func (s *Store) MessageExists(chatID int64, externalID string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE chat_id = ? AND whatsapp_message_id = ?",
		chatID, externalID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("message exists: %w", err)
	}
	return n > 0, nil
}

// ExistingMessageIDs returns which of the given external IDs are already
// stored for the chat, mapped to their row IDs. Queries in chunks to stay
// within SQLite's parameter limit.
func (s *Store) ExistingMessageIDs(chatID int64, externalIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(externalIDs))
	err := queryInChunks(s.db, externalIDs, []interface{}{chatID},
		"SELECT whatsapp_message_id, message_id FROM messages WHERE chat_id = ? AND whatsapp_message_id IN (%s)",
		func(rows *sql.Rows) error {
			var extID string
			var rowID int64
			if err := rows.Scan(&extID, &rowID); err != nil {
				return err
			}
			result[extID] = rowID
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("existing message ids: %w", err)
	}
	return result, nil
}

// StoredMessage is a message row as read back for display.
type StoredMessage struct {
	ID             int64
	ExternalID     string
	ChatID         int64
	Type           string
	Content        sql.NullString
	Timestamp      time.Time
	Outgoing       bool
	SenderName     sql.NullString
	MediaURL       sql.NullString
	LocalMediaPath sql.NullString
}

// MessagesByChat returns the chat's messages, newest first. A zero limit
// returns all of them.
func (s *Store) MessagesByChat(chatID int64, limit int) ([]StoredMessage, error) {
	query := `
		SELECT m.message_id, m.whatsapp_message_id, m.chat_id, m.message_type, m.content,
		       m.timestamp, m.is_outgoing, c.name, m.media_url, m.local_media_path
		FROM messages m
		LEFT JOIN contacts c ON c.contact_id = m.sender_contact_id
		WHERE m.chat_id = ?
		ORDER BY m.timestamp DESC, m.message_id DESC`
	args := []interface{}{chatID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		var ts string
		var outgoing int
		if err := rows.Scan(&m.ID, &m.ExternalID, &m.ChatID, &m.Type, &m.Content,
			&ts, &outgoing, &m.SenderName, &m.MediaURL, &m.LocalMediaPath); err != nil {
			return nil, err
		}
		m.Outgoing = outgoing != 0
		if t, err := parseTime(ts); err == nil {
			m.Timestamp = t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMessagesForChat returns the number of stored messages in a chat.
func (s *Store) CountMessagesForChat(chatID int64) (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
