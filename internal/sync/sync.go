// Package sync provides WhatsApp chat synchronization workflows.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eyalbarash/whatsapp-chat-storage/internal/greenapi"
	"github.com/eyalbarash/whatsapp-chat-storage/internal/store"
)

// Options controls sync behavior.
type Options struct {
	// MessagesPerChat is the history depth for a full chat sync (default: 1000)
	MessagesPerChat int

	// IncrementalMessages is the history depth for incremental passes (default: 200)
	IncrementalMessages int

	// ChatDelay is the pause between consecutive chats (default: 2s)
	ChatDelay time.Duration

	// BatchPause is the extra pause after every BatchSize chats (default: 10s)
	BatchPause time.Duration

	// BatchSize is the number of chats between batch pauses (default: 10)
	BatchSize int

	// MaxChats caps how many chats a full sync run attempts; 0 means all.
	// A capped run leaves the checkpoint resumable.
	MaxChats int

	// MaxActiveChats caps how many chats an incremental pass touches (default: 50)
	MaxActiveChats int

	// ActiveWindow is how far back a chat's activity counts as active (default: 7 days)
	ActiveWindow time.Duration

	// RecentSyncWindow deprioritizes chats synced within it (default: 12h)
	RecentSyncWindow time.Duration

	// FallbackChats is how many chats an incremental pass takes when no chat
	// qualifies as active (default: 10)
	FallbackChats int

	// CheckpointPath is where full-sync progress is persisted
	CheckpointPath string

	// StatusPath is where incremental pass outcomes are persisted
	StatusPath string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		MessagesPerChat:     1000,
		IncrementalMessages: 200,
		ChatDelay:           2 * time.Second,
		BatchPause:          10 * time.Second,
		BatchSize:           10,
		MaxActiveChats:      50,
		ActiveWindow:        7 * 24 * time.Hour,
		RecentSyncWindow:    12 * time.Hour,
		FallbackChats:       10,
	}
}

// Syncer performs WhatsApp synchronization against a Green API instance.
type Syncer struct {
	client greenapi.API
	store  *store.Store
	logger *slog.Logger
	opts   *Options
}

// New creates a new Syncer.
func New(client greenapi.API, store *store.Store, opts *Options) *Syncer {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Syncer{
		client: client,
		store:  store,
		logger: slog.Default(),
		opts:   opts,
	}
}

// WithLogger sets the logger.
func (s *Syncer) WithLogger(logger *slog.Logger) *Syncer {
	s.logger = logger
	return s
}

// SetMaxChats caps how many chats the next full sync run attempts.
func (s *Syncer) SetMaxChats(n int) {
	s.opts.MaxChats = n
}

// ChatResult summarizes one pass over a single chat.
type ChatResult struct {
	ChatID      string
	Fetched     int
	New         int
	Skipped     int
	MediaQueued int
}

// SyncChat fetches up to count messages of history for one chat and persists
// what is not already stored. Messages that fail to parse are skipped
// individually; a failed history fetch is recorded in the chat's sync status
// and returned as an error.
func (s *Syncer) SyncChat(ctx context.Context, chatID string, count int) (*ChatResult, error) {
	if count <= 0 {
		count = s.opts.MessagesPerChat
	}
	res := &ChatResult{ChatID: chatID}

	chatRowID, err := s.ensureChat(chatID)
	if err != nil {
		return nil, err
	}

	raws, err := s.client.GetChatHistoryPaginated(ctx, chatID, count)
	if err != nil {
		_ = s.store.UpdateSyncStatus(chatRowID, "", 0, err.Error())
		return nil, fmt.Errorf("fetch history for %s: %w", chatID, err)
	}
	res.Fetched = len(raws)

	// Newest first, as the API returns them.
	parsed := make([]*greenapi.Message, 0, len(raws))
	for _, raw := range raws {
		msg, err := greenapi.ParseMessage(raw)
		if err != nil {
			s.logger.Debug("skipping unparseable message", "chat", chatID, "error", err)
			res.Skipped++
			continue
		}
		parsed = append(parsed, msg)
	}

	extIDs := make([]string, len(parsed))
	for i, m := range parsed {
		extIDs[i] = m.ID
	}
	existing, err := s.store.ExistingMessageIDs(chatRowID, extIDs)
	if err != nil {
		return nil, err
	}

	for _, msg := range parsed {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, ok := existing[msg.ID]; ok {
			continue
		}
		if err := s.persistMessage(chatID, chatRowID, msg, res); err != nil {
			s.logger.Warn("failed to persist message", "chat", chatID, "message", msg.ID, "error", err)
			res.Skipped++
		}
	}

	newestID := ""
	if len(parsed) > 0 {
		newestID = parsed[0].ID
	}
	if err := s.store.UpdateSyncStatus(chatRowID, newestID, int64(res.New), ""); err != nil {
		return nil, err
	}

	s.logger.Info("chat synced",
		"chat", chatID,
		"fetched", res.Fetched,
		"new", res.New,
		"media_queued", res.MediaQueued)
	return res, nil
}

// ensureChat creates or refreshes the chat row, linking it to its peer
// contact or group.
func (s *Syncer) ensureChat(chatID string) (int64, error) {
	params := store.ChatParams{WhatsAppChatID: chatID}

	if store.ChatTypeForID(chatID) == store.ChatTypePrivate {
		contactID, err := s.store.UpsertContact(store.ContactParams{
			Phone:      store.PhoneForWhatsAppID(chatID),
			WhatsAppID: chatID,
		})
		if err != nil {
			return 0, err
		}
		params.ContactID = contactID
	} else {
		groupID, err := s.store.UpsertGroup(store.GroupParams{WhatsAppGroupID: chatID})
		if err != nil {
			return 0, err
		}
		params.GroupID = groupID
	}

	return s.store.UpsertChat(params)
}

// persistMessage stores one parsed message, its sender and any media queue
// entry.
func (s *Syncer) persistMessage(chatID string, chatRowID int64, msg *greenapi.Message, res *ChatResult) error {
	var senderID int64
	if msg.SenderPhone != "" {
		var err error
		senderID, err = s.store.UpsertContact(store.ContactParams{
			Phone: msg.SenderPhone,
			Name:  msg.SenderName,
		})
		if err != nil {
			return err
		}
		if store.ChatTypeForID(chatID) == store.ChatTypeGroup {
			if group, err := s.store.GetGroupByWhatsAppID(chatID); err == nil && group != nil {
				_ = s.store.AddGroupMember(group.ID, senderID, "")
			}
		}
	}

	params := store.MessageParams{
		ChatID:          chatRowID,
		ExternalID:      msg.ID,
		SenderContactID: senderID,
		Type:            string(msg.Kind),
		Content:         msg.Content,
		Timestamp:       msg.Timestamp,
		Outgoing:        msg.Outgoing,
		Forwarded:       msg.Forwarded,
		ReplyToID:       msg.ReplyToID,
	}
	if msg.Media != nil {
		params.MediaURL = msg.Media.URL
		params.MediaFilename = msg.Media.FileName
		params.MediaMimeType = msg.Media.MimeType
		params.MediaSizeBytes = msg.Media.SizeBytes
	}
	if msg.Location != nil {
		lat, lon := msg.Location.Latitude, msg.Location.Longitude
		params.Latitude = &lat
		params.Longitude = &lon
		params.LocationName = msg.Location.Name
		params.LocationAddress = msg.Location.Address
	}
	if msg.Contact != nil {
		params.SharedContactName = msg.Contact.DisplayName
		params.SharedContactPhone = msg.Contact.Phone
		params.SharedContactVCard = msg.Contact.VCard
	}

	msgRowID, err := s.store.CreateMessage(params)
	if err != nil {
		return err
	}
	res.New++

	if msg.HasMedia() {
		if err := s.store.EnqueueMedia(msgRowID, msg.Media.URL); err != nil {
			return err
		}
		res.MediaQueued++
	}
	return nil
}

// sleepCtx pauses for d unless the context is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
