package greenapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient("1101", "token",
		WithBaseURL(srv.URL),
		WithLimiter(NewLimiter(0)),
	)
	return client, srv
}

func TestRequestURLShape(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"stateInstance":"authorized"}`)
	}))

	state, err := client.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if !state.Authorized() {
		t.Error("expected authorized state")
	}
	if gotPath != "/waInstance1101/getStateInstance/token" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestRequestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"stateInstance":"authorized"}`)
	}))

	if _, err := client.GetState(context.Background()); err != nil {
		t.Fatalf("GetState after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestRequestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"bad credentials"}`)
	}))

	_, err := client.GetState(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if apiErr.Temporary() {
		t.Error("4xx should not be temporary")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", got)
	}
}

func TestRequestGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetState(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "max retries exceeded") {
		t.Errorf("error = %v", err)
	}
	if got := calls.Load(); got != maxRetries {
		t.Errorf("calls = %d, want %d", got, maxRetries)
	}
}

func TestGetChatHistoryClampsCount(t *testing.T) {
	var gotCount int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			ChatID string `json:"chatId"`
			Count  int    `json:"count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		gotCount = payload.Count
		fmt.Fprint(w, `[]`)
	}))

	if _, err := client.GetChatHistory(context.Background(), "1@c.us", 500); err != nil {
		t.Fatalf("GetChatHistory: %v", err)
	}
	if gotCount != maxHistoryCount {
		t.Errorf("count sent = %d, want %d", gotCount, maxHistoryCount)
	}
}

// historyHandler serves pages from a fixed message list, newest first,
// advancing an offset per request like the mock does.
func historyHandler(t *testing.T, messages []string) http.HandlerFunc {
	var offset int
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Count int `json:"count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}

		end := offset + payload.Count
		if end > len(messages) {
			end = len(messages)
		}
		page := messages[offset:end]
		offset = end

		fmt.Fprintf(w, "[%s]", strings.Join(page, ","))
	}
}

func textMsg(id string, ts int64) string {
	return fmt.Sprintf(`{"idMessage":%q,"type":"incoming","timestamp":%d,"chatId":"1@c.us","textMessageData":{"textMessage":"m"}}`, id, ts)
}

func TestPaginationBoundedByTotal(t *testing.T) {
	// Remote has 250 messages; ask for 150.
	var messages []string
	for i := 0; i < 250; i++ {
		messages = append(messages, textMsg(fmt.Sprintf("m%d", i), int64(2000000-i)))
	}

	client, _ := newTestClient(t, historyHandler(t, messages))

	got, err := client.GetChatHistoryPaginated(context.Background(), "1@c.us", 150)
	if err != nil {
		t.Fatalf("GetChatHistoryPaginated: %v", err)
	}
	if len(got) != 150 {
		t.Errorf("messages = %d, want 150", len(got))
	}
}

func TestPaginationStopsAtShortPage(t *testing.T) {
	// Remote has 120 messages; ask for 1000. Second page is short (20).
	var messages []string
	for i := 0; i < 120; i++ {
		messages = append(messages, textMsg(fmt.Sprintf("m%d", i), int64(2000000-i)))
	}

	client, _ := newTestClient(t, historyHandler(t, messages))

	got, err := client.GetChatHistoryPaginated(context.Background(), "1@c.us", 1000)
	if err != nil {
		t.Fatalf("GetChatHistoryPaginated: %v", err)
	}
	if len(got) != 120 {
		t.Errorf("messages = %d, want 120", len(got))
	}
}

func TestDateRangeShortCircuit(t *testing.T) {
	base := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	// Descending timestamps, one hour apart. Far more messages than one page
	// so paging past the range start would be observable as extra requests.
	var messages []string
	for i := 0; i < 250; i++ {
		messages = append(messages, textMsg(fmt.Sprintf("m%d", i), base.Add(-time.Duration(i)*time.Hour).Unix()))
	}

	var requests atomic.Int32
	inner := historyHandler(t, messages)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		inner(w, r)
	}))

	start := base.Add(-10 * time.Hour)
	end := base.Add(-2 * time.Hour)
	got, err := client.GetChatHistoryByRange(context.Background(), "1@c.us", start, end, 1000)
	if err != nil {
		t.Fatalf("GetChatHistoryByRange: %v", err)
	}

	// Messages m2..m10 inclusive fall in the window.
	if len(got) != 9 {
		t.Fatalf("messages = %d, want 9", len(got))
	}
	for _, raw := range got {
		ts, err := peekTimestamp(raw)
		if err != nil {
			t.Fatal(err)
		}
		if ts.Before(start) {
			t.Errorf("message at %v is before range start %v", ts, start)
		}
		if ts.After(end) {
			t.Errorf("message at %v is after range end %v", ts, end)
		}
	}

	// The range start falls inside the first page, so paging stops there.
	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}
