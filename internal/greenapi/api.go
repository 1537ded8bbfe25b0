// Package greenapi provides a Green API WhatsApp client with rate limiting
// and retry logic.
package greenapi

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"
)

// AccountReader provides read access to account-level data.
type AccountReader interface {
	// GetState returns the current state of the WhatsApp instance.
	GetState(ctx context.Context) (*InstanceState, error)

	// GetContacts returns the account's contact list.
	GetContacts(ctx context.Context) ([]ContactInfo, error)

	// GetChats returns all chats known to the account.
	GetChats(ctx context.Context) ([]ChatInfo, error)
}

// HistoryReader provides read access to chat history.
type HistoryReader interface {
	// GetChatHistory returns up to count messages for a chat, newest first.
	// count is clamped to the API limit of 100 messages per request.
	GetChatHistory(ctx context.Context, chatID string, count int) ([]json.RawMessage, error)

	// GetChatHistoryPaginated accumulates pages of history until total
	// messages are retrieved or a short page signals end of history.
	GetChatHistoryPaginated(ctx context.Context, chatID string, total int) ([]json.RawMessage, error)

	// GetChatHistoryByRange returns messages with timestamps in [start, end].
	// Relies on the API returning messages in descending timestamp order to
	// stop paging once a message older than start is seen.
	GetChatHistoryByRange(ctx context.Context, chatID string, start, end time.Time, max int) ([]json.RawMessage, error)
}

// MessageSender provides outbound message operations.
type MessageSender interface {
	// SendMessage sends a text message to a chat. Returns the message ID.
	SendMessage(ctx context.Context, chatID, text string) (string, error)

	// SendFileByURL sends a file referenced by URL to a chat.
	SendFileByURL(ctx context.Context, chatID, fileURL, filename, caption string) (string, error)
}

// MediaDownloader streams media attachments referenced by messages.
type MediaDownloader interface {
	// DownloadMedia opens a streaming download of a media URL.
	// Returns the body and the response content type. The caller must
	// close the body.
	DownloadMedia(ctx context.Context, mediaURL string) (io.ReadCloser, string, error)
}

// API defines the interface for Green API operations.
// This interface enables mocking for tests without hitting the real API.
type API interface {
	AccountReader
	HistoryReader
	MessageSender
	MediaDownloader

	// Close releases any resources held by the client.
	Close() error
}

// InstanceState describes the WhatsApp instance authorization state.
type InstanceState struct {
	State string // "authorized", "notAuthorized", "blocked", ...
}

// Authorized reports whether the instance is linked and ready.
func (s *InstanceState) Authorized() bool {
	return s != nil && s.State == "authorized"
}

// ContactInfo is a contact from the account's contact list.
type ContactInfo struct {
	ID   string // e.g. "972546880000@c.us"
	Name string
	Type string // "user" or "group"
}

// ChatInfo is a chat returned by the chat list endpoint.
type ChatInfo struct {
	ID       string // "<phone>@c.us" or "<group>@g.us"
	Name     string
	Archived bool
}

// Group reports whether the chat is a group conversation.
func (c ChatInfo) Group() bool {
	return strings.HasSuffix(c.ID, "@g.us")
}

// Phone returns the phone number for a private chat, or "" for groups.
func (c ChatInfo) Phone() string {
	if c.Group() {
		return ""
	}
	return strings.TrimSuffix(c.ID, "@c.us")
}

// Kind identifies a normalized message kind.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindVoice    Kind = "voice"
	KindDocument Kind = "document"
	KindLocation Kind = "location"
	KindContact  Kind = "contact"
	KindSticker  Kind = "sticker"
)

// MediaInfo describes a media attachment on a message.
type MediaInfo struct {
	URL       string
	FileName  string
	MimeType  string
	SizeBytes int64
}

// LocationInfo describes a shared location.
type LocationInfo struct {
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
}

// ContactCard describes a shared contact.
type ContactCard struct {
	DisplayName string
	Phone       string
	VCard       string
}

// Message is the normalized form of a Green API chat history entry.
// Exactly one of Media, Location, Contact is set for the corresponding kinds;
// all are nil for plain text.
type Message struct {
	ID          string
	ChatID      string
	Timestamp   time.Time
	Outgoing    bool
	SenderPhone string
	SenderName  string
	Kind        Kind
	Content     string
	Media       *MediaInfo
	Location    *LocationInfo
	Contact     *ContactCard
	Forwarded   bool
	ReplyToID   string
}

// HasMedia reports whether the message carries a downloadable attachment.
func (m *Message) HasMedia() bool {
	return m.Media != nil && m.Media.URL != ""
}
