package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Chat types stored in chats.chat_type.
const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
)

// Chat is a row in the chats table.
type Chat struct {
	ID             int64
	WhatsAppChatID string
	Type           string
	ContactID      sql.NullInt64
	GroupID        sql.NullInt64
	Archived       bool
	LastActivity   sql.NullString
	LastMessageID  sql.NullInt64
}

// ChatParams describes a chat to create or update. WhatsAppChatID is
// required; Type defaults from the identifier suffix when empty. ContactID
// and GroupID link the chat to its peer and are only written when non-zero;
// Archived is only written when non-nil.
type ChatParams struct {
	WhatsAppChatID string
	Type           string
	ContactID      int64
	GroupID        int64
	Archived       *bool
}

// ChatTypeForID derives the chat type from a WhatsApp chat identifier.
func ChatTypeForID(waChatID string) string {
	if strings.HasSuffix(waChatID, "@g.us") {
		return ChatTypeGroup
	}
	return ChatTypePrivate
}

// UpsertChat creates or updates a chat and returns its row ID.
func (s *Store) UpsertChat(p ChatParams) (int64, error) {
	if p.WhatsAppChatID == "" {
		return 0, fmt.Errorf("upsert chat: whatsapp chat id is required")
	}
	chatType := p.Type
	if chatType == "" {
		chatType = ChatTypeForID(p.WhatsAppChatID)
	}

	var id int64
	err := s.db.QueryRow(
		"SELECT chat_id FROM chats WHERE whatsapp_chat_id = ?", p.WhatsAppChatID,
	).Scan(&id)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup chat: %w", err)
	}

	if err == sql.ErrNoRows {
		archived := 0
		if p.Archived != nil && *p.Archived {
			archived = 1
		}
		res, err := s.db.Exec(`
			INSERT INTO chats (whatsapp_chat_id, chat_type, contact_id, group_id, is_archived)
			VALUES (?, ?, ?, ?, ?)`,
			p.WhatsAppChatID, chatType, nullInt64(p.ContactID), nullInt64(p.GroupID), archived)
		if err != nil {
			return 0, fmt.Errorf("insert chat: %w", err)
		}
		return res.LastInsertId()
	}

	sets := []string{"updated_at = datetime('now')"}
	args := []interface{}{}
	if p.ContactID != 0 {
		sets = append(sets, "contact_id = ?")
		args = append(args, p.ContactID)
	}
	if p.GroupID != 0 {
		sets = append(sets, "group_id = ?")
		args = append(args, p.GroupID)
	}
	if p.Archived != nil {
		sets = append(sets, "is_archived = ?")
		args = append(args, boolToInt(*p.Archived))
	}
	args = append(args, id)

	query := "UPDATE chats SET " + strings.Join(sets, ", ") + " WHERE chat_id = ?"
	if _, err := s.db.Exec(query, args...); err != nil {
		return 0, fmt.Errorf("update chat: %w", err)
	}
	return id, nil
}

// GetChatByWhatsAppID returns the chat with the given WhatsApp chat ID, or nil.
func (s *Store) GetChatByWhatsAppID(waChatID string) (*Chat, error) {
	c := &Chat{}
	var archived int
	err := s.db.QueryRow(`
		SELECT chat_id, whatsapp_chat_id, chat_type, contact_id, group_id, is_archived, last_activity, last_message_id
		FROM chats WHERE whatsapp_chat_id = ?`, waChatID,
	).Scan(&c.ID, &c.WhatsAppChatID, &c.Type, &c.ContactID, &c.GroupID, &archived, &c.LastActivity, &c.LastMessageID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	c.Archived = archived != 0
	return c, nil
}

// ActiveChatIDs returns the WhatsApp chat IDs of chats whose last activity is
// at or after the cutoff, most recent first.
func (s *Store) ActiveChatIDs(since time.Time) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT whatsapp_chat_id FROM chats
		WHERE last_activity IS NOT NULL AND last_activity >= ?
		ORDER BY last_activity DESC`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("list active chats: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ChatSummary is a row of the chat_summary view.
type ChatSummary struct {
	ChatID         int64
	WhatsAppChatID string
	Type           string
	DisplayName    string
	Phone          sql.NullString
	Archived       bool
	LastActivity   sql.NullString
	MessageCount   int64
	OutgoingCount  int64
	MediaCount     int64
}

// ChatSummaries returns per-chat aggregates, most recently active first.
// A zero limit returns all chats.
func (s *Store) ChatSummaries(limit int) ([]ChatSummary, error) {
	query := `
		SELECT chat_id, whatsapp_chat_id, chat_type, display_name, phone_number,
		       is_archived, last_activity, message_count,
		       COALESCE(outgoing_count, 0), COALESCE(media_count, 0)
		FROM chat_summary
		ORDER BY last_activity DESC NULLS LAST`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chat summaries: %w", err)
	}
	defer rows.Close()

	var out []ChatSummary
	for rows.Next() {
		var cs ChatSummary
		var archived int
		if err := rows.Scan(&cs.ChatID, &cs.WhatsAppChatID, &cs.Type, &cs.DisplayName,
			&cs.Phone, &archived, &cs.LastActivity, &cs.MessageCount,
			&cs.OutgoingCount, &cs.MediaCount); err != nil {
			return nil, err
		}
		cs.Archived = archived != 0
		out = append(out, cs)
	}
	return out, rows.Err()
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
