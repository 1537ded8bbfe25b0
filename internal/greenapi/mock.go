package greenapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// MockAPI is a mock implementation of the Green API for testing.
// Chat histories are served newest-first, paged by the requested count,
// with a per-chat cursor that advances across calls. ResetCursors starts
// a fresh "remote fetch" without changing the stored history.
type MockAPI struct {
	mu sync.Mutex

	// State to return from GetState
	State *InstanceState

	// Contacts and chats to return
	Contacts []ContactInfo
	Chats    []ChatInfo

	// History indexed by chat ID, newest first
	History map[string][]json.RawMessage

	// Media bodies indexed by URL
	Media map[string]string

	// Error injection
	StateError   error
	ChatsError   error
	HistoryError map[string]error // Per-chat errors

	// Call tracking for assertions
	StateCalls    int
	ChatsCalls    int
	HistoryCalls  []string
	SendCalls     []string
	DownloadCalls []string

	cursors map[string]int
}

// NewMockAPI creates a new mock API with empty state.
func NewMockAPI() *MockAPI {
	return &MockAPI{
		State:        &InstanceState{State: "authorized"},
		History:      make(map[string][]json.RawMessage),
		Media:        make(map[string]string),
		HistoryError: make(map[string]error),
		cursors:      make(map[string]int),
	}
}

// AddTextMessage appends a synthetic text message to a chat's history.
// Messages must be added newest-first to match the API's ordering.
func (m *MockAPI) AddTextMessage(chatID, id, text string, ts time.Time, outgoing bool) {
	direction := "incoming"
	if outgoing {
		direction = "outgoing"
	}
	raw := fmt.Sprintf(`{"idMessage":%q,"type":%q,"timestamp":%d,"chatId":%q,"textMessageData":{"textMessage":%q}}`,
		id, direction, ts.Unix(), chatID, text)
	m.AddRawMessage(chatID, json.RawMessage(raw))
}

// AddImageMessage appends a synthetic image message with a download URL.
func (m *MockAPI) AddImageMessage(chatID, id, caption, url string, ts time.Time) {
	raw := fmt.Sprintf(`{"idMessage":%q,"type":"incoming","timestamp":%d,"chatId":%q,"imageMessageData":{"downloadUrl":%q,"caption":%q,"fileName":"photo.jpg","mimeType":"image/jpeg"}}`,
		id, ts.Unix(), chatID, url, caption)
	m.AddRawMessage(chatID, json.RawMessage(raw))
}

// AddRawMessage appends a raw JSON message to a chat's history.
func (m *MockAPI) AddRawMessage(chatID string, raw json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.History[chatID] = append(m.History[chatID], raw)
}

// HistoryCallCount returns how many history fetches have been made.
func (m *MockAPI) HistoryCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.HistoryCalls)
}

// ResetCursors rewinds all per-chat paging cursors, simulating a fresh
// fetch against an unchanged remote history.
func (m *MockAPI) ResetCursors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors = make(map[string]int)
}

// GetState returns the mock instance state.
func (m *MockAPI) GetState(ctx context.Context) (*InstanceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StateCalls++

	if m.StateError != nil {
		return nil, m.StateError
	}
	return m.State, nil
}

// GetContacts returns the mock contact list.
func (m *MockAPI) GetContacts(ctx context.Context) ([]ContactInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Contacts, nil
}

// GetChats returns the mock chat list.
func (m *MockAPI) GetChats(ctx context.Context) ([]ChatInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatsCalls++

	if m.ChatsError != nil {
		return nil, m.ChatsError
	}
	return m.Chats, nil
}

// GetChatHistory serves the next page of a chat's history.
func (m *MockAPI) GetChatHistory(ctx context.Context, chatID string, count int) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HistoryCalls = append(m.HistoryCalls, chatID)

	if err := m.HistoryError[chatID]; err != nil {
		return nil, err
	}

	if count <= 0 || count > maxHistoryCount {
		count = maxHistoryCount
	}

	history := m.History[chatID]
	offset := m.cursors[chatID]
	if offset >= len(history) {
		return nil, nil
	}

	end := offset + count
	if end > len(history) {
		end = len(history)
	}
	m.cursors[chatID] = end

	return history[offset:end], nil
}

// GetChatHistoryPaginated mirrors the real client's pagination loop.
func (m *MockAPI) GetChatHistoryPaginated(ctx context.Context, chatID string, total int) ([]json.RawMessage, error) {
	var all []json.RawMessage

	for len(all) < total {
		remaining := total - len(all)
		batch := remaining
		if batch > maxHistoryCount {
			batch = maxHistoryCount
		}

		page, err := m.GetChatHistory(ctx, chatID, batch)
		if err != nil {
			return all, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		if len(page) < batch {
			break
		}
	}

	return all, nil
}

// GetChatHistoryByRange filters paginated history to [start, end].
func (m *MockAPI) GetChatHistoryByRange(ctx context.Context, chatID string, start, end time.Time, max int) ([]json.RawMessage, error) {
	all, err := m.GetChatHistoryPaginated(ctx, chatID, max)
	if err != nil {
		return nil, err
	}

	var filtered []json.RawMessage
	for _, raw := range all {
		ts, tsErr := peekTimestamp(raw)
		if tsErr != nil {
			continue
		}
		if ts.Before(start) {
			break
		}
		if !ts.After(end) {
			filtered = append(filtered, raw)
		}
	}
	return filtered, nil
}

// SendMessage records the call and returns a synthetic ID.
func (m *MockAPI) SendMessage(ctx context.Context, chatID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendCalls = append(m.SendCalls, chatID)
	return fmt.Sprintf("mock-%d", len(m.SendCalls)), nil
}

// SendFileByURL records the call and returns a synthetic ID.
func (m *MockAPI) SendFileByURL(ctx context.Context, chatID, fileURL, filename, caption string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendCalls = append(m.SendCalls, chatID)
	return fmt.Sprintf("mock-%d", len(m.SendCalls)), nil
}

// DownloadMedia serves a registered media body.
func (m *MockAPI) DownloadMedia(ctx context.Context, mediaURL string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DownloadCalls = append(m.DownloadCalls, mediaURL)

	body, ok := m.Media[mediaURL]
	if !ok {
		return nil, "", &APIError{StatusCode: 404, Endpoint: "media", Body: "not found"}
	}
	return io.NopCloser(strings.NewReader(body)), "application/octet-stream", nil
}

// Close is a no-op.
func (m *MockAPI) Close() error { return nil }

// Ensure MockAPI implements the API interface.
var _ API = (*MockAPI)(nil)
