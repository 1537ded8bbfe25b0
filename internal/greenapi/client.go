package greenapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.green-api.com"
	defaultTimeout = 30 * time.Second

	// maxRetries is the number of attempts for transient failures.
	maxRetries = 3

	// maxHistoryCount is the API's per-request message limit.
	maxHistoryCount = 100

	// pageDelay is the pause between pagination requests, on top of the
	// limiter's pacing.
	pageDelay = 500 * time.Millisecond
)

// APIError is a non-2xx response from the Green API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("green api %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Temporary reports whether the error is worth retrying.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client implements the Green API interface over HTTP.
type Client struct {
	httpClient *http.Client
	limiter    *Limiter
	logger     *slog.Logger
	baseURL    string // https://api.green-api.com/waInstance<id>
	token      string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithLimiter sets a custom rate limiter.
func WithLimiter(l *Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithBaseURL overrides the API base URL (tests, self-hosted instances).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Green API client for the given instance credentials.
func NewClient(idInstance, apiToken string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		baseURL:    defaultBaseURL,
		token:      apiToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = fmt.Sprintf("%s/waInstance%s", c.baseURL, idInstance)

	if c.limiter == nil {
		c.limiter = NewLimiter(time.Second)
	}

	return c
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// request makes an HTTP request with rate limiting and retry logic.
// payload may be nil for GET requests.
func (c *Client) request(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	reqURL := fmt.Sprintf("%s/%s/%s", c.baseURL, endpoint, c.token)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt)
			c.logger.Debug("retrying request", "attempt", attempt, "backoff", backoff, "endpoint", endpoint)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		// New reader per attempt so the body can be re-read on retry.
		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue // Retry on network errors
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: truncate(string(respBody), 200)}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			// Back off beyond normal pacing; the provider is throttling us.
			c.logger.Debug("rate limited, backing off 30s", "endpoint", endpoint, "attempt", attempt)
			c.limiter.Throttle(30 * time.Second)
			lastErr = apiErr
			continue

		case resp.StatusCode >= 500:
			lastErr = apiErr
			continue

		default: // 4xx - permanent, don't retry
			return nil, apiErr
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// calculateBackoff returns the backoff duration for a retry attempt.
// Exponential with full jitter: attempt 1 waits up to 2s, attempt 2 up to 4s.
func calculateBackoff(attempt int) time.Duration {
	base := float64(uint(1) << uint(attempt))
	jittered := rand.Float64() * base
	return time.Duration(jittered * float64(time.Second))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Green API JSON response types (unexported, used only for JSON unmarshaling).

type stateResponse struct {
	StateInstance string `json:"stateInstance"`
}

type contactResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type chatResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archive"`
}

type sendResponse struct {
	IDMessage string `json:"idMessage"`
}

// GetState returns the current instance authorization state.
func (c *Client) GetState(ctx context.Context) (*InstanceState, error) {
	data, err := c.request(ctx, http.MethodGet, "getStateInstance", nil)
	if err != nil {
		return nil, err
	}

	var resp stateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}

	return &InstanceState{State: resp.StateInstance}, nil
}

// GetContacts returns the account's contact list.
func (c *Client) GetContacts(ctx context.Context) ([]ContactInfo, error) {
	data, err := c.request(ctx, http.MethodGet, "getContacts", nil)
	if err != nil {
		return nil, err
	}

	var resp []contactResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse contacts: %w", err)
	}

	contacts := make([]ContactInfo, len(resp))
	for i, ct := range resp {
		contacts[i] = ContactInfo{ID: ct.ID, Name: ct.Name, Type: ct.Type}
	}
	return contacts, nil
}

// GetChats returns all chats known to the account.
func (c *Client) GetChats(ctx context.Context) ([]ChatInfo, error) {
	data, err := c.request(ctx, http.MethodGet, "getChats", nil)
	if err != nil {
		return nil, err
	}

	var resp []chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse chats: %w", err)
	}

	chats := make([]ChatInfo, len(resp))
	for i, ch := range resp {
		chats[i] = ChatInfo{ID: ch.ID, Name: ch.Name, Archived: ch.Archived}
	}
	return chats, nil
}

// GetChatHistory returns up to count messages for a chat, newest first.
// Messages are returned raw so that a malformed entry can be skipped during
// parsing without discarding the batch.
func (c *Client) GetChatHistory(ctx context.Context, chatID string, count int) ([]json.RawMessage, error) {
	if count <= 0 || count > maxHistoryCount {
		count = maxHistoryCount
	}

	payload := struct {
		ChatID string `json:"chatId"`
		Count  int    `json:"count"`
	}{ChatID: chatID, Count: count}

	data, err := c.request(ctx, http.MethodPost, "getChatHistory", payload)
	if err != nil {
		return nil, err
	}

	var messages []json.RawMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse chat history: %w", err)
	}
	return messages, nil
}

// GetChatHistoryPaginated accumulates pages of history until total messages
// are retrieved or a short page signals end of history.
func (c *Client) GetChatHistoryPaginated(ctx context.Context, chatID string, total int) ([]json.RawMessage, error) {
	var all []json.RawMessage

	for len(all) < total {
		remaining := total - len(all)
		batch := remaining
		if batch > maxHistoryCount {
			batch = maxHistoryCount
		}

		c.logger.Debug("fetching history page", "chat", chatID, "count", batch, "retrieved", len(all))

		page, err := c.GetChatHistory(ctx, chatID, batch)
		if err != nil {
			// Return what we have alongside the error; the caller decides
			// whether a partial history is usable.
			return all, err
		}

		if len(page) == 0 {
			break
		}

		all = append(all, page...)

		// A short page means we've reached the start of the history.
		if len(page) < batch {
			break
		}

		if len(all) < total {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(pageDelay):
			}
		}
	}

	c.logger.Debug("history fetch complete", "chat", chatID, "messages", len(all))
	return all, nil
}

// GetChatHistoryByRange returns messages with timestamps in [start, end].
// The API returns messages in descending timestamp order, so paging stops as
// soon as a message older than start is seen instead of fetching the full max.
func (c *Client) GetChatHistoryByRange(ctx context.Context, chatID string, start, end time.Time, max int) ([]json.RawMessage, error) {
	var filtered []json.RawMessage
	fetched := 0

	for fetched < max {
		remaining := max - fetched
		batch := remaining
		if batch > maxHistoryCount {
			batch = maxHistoryCount
		}

		page, err := c.GetChatHistory(ctx, chatID, batch)
		if err != nil {
			return filtered, err
		}
		if len(page) == 0 {
			break
		}
		fetched += len(page)

		crossedStart := false
		for _, raw := range page {
			ts, tsErr := peekTimestamp(raw)
			if tsErr != nil {
				c.logger.Warn("skipping message with unparseable timestamp", "chat", chatID, "error", tsErr)
				continue
			}

			if ts.Before(start) {
				// Descending order: everything after this is older still.
				crossedStart = true
				break
			}
			if !ts.After(end) {
				filtered = append(filtered, raw)
			}
		}

		if crossedStart || len(page) < batch {
			break
		}

		if fetched < max {
			select {
			case <-ctx.Done():
				return filtered, ctx.Err()
			case <-time.After(pageDelay):
			}
		}
	}

	return filtered, nil
}

// peekTimestamp extracts just the timestamp from a raw message.
func peekTimestamp(raw json.RawMessage) (time.Time, error) {
	var m struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return time.Time{}, err
	}
	if m.Timestamp == 0 {
		return time.Time{}, fmt.Errorf("message has no timestamp")
	}
	return unixTimestamp(m.Timestamp), nil
}

// unixTimestamp converts a Green API timestamp to time.Time.
// The API reports seconds; values that large are milliseconds.
func unixTimestamp(ts int64) time.Time {
	if ts > 1e10 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

// SendMessage sends a text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) (string, error) {
	payload := struct {
		ChatID  string `json:"chatId"`
		Message string `json:"message"`
	}{ChatID: chatID, Message: text}

	data, err := c.request(ctx, http.MethodPost, "sendMessage", payload)
	if err != nil {
		return "", err
	}

	var resp sendResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parse send response: %w", err)
	}
	return resp.IDMessage, nil
}

// SendFileByURL sends a file referenced by URL to a chat.
func (c *Client) SendFileByURL(ctx context.Context, chatID, fileURL, filename, caption string) (string, error) {
	payload := struct {
		ChatID   string `json:"chatId"`
		URLFile  string `json:"urlFile"`
		FileName string `json:"fileName"`
		Caption  string `json:"caption,omitempty"`
	}{ChatID: chatID, URLFile: fileURL, FileName: filename, Caption: caption}

	data, err := c.request(ctx, http.MethodPost, "sendFileByUrl", payload)
	if err != nil {
		return "", err
	}

	var resp sendResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parse send response: %w", err)
	}
	return resp.IDMessage, nil
}

// DownloadMedia opens a streaming download of a media URL.
// Media URLs are pre-signed by the provider; no auth path is appended.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download media: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		resp.Body.Close()
		return nil, "", &APIError{StatusCode: resp.StatusCode, Endpoint: "media", Body: string(body)}
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// Ensure Client implements the API interface.
var _ API = (*Client)(nil)
