package store_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/eyalbarash/whatsapp-chat-storage/internal/store"
	"github.com/eyalbarash/whatsapp-chat-storage/internal/testutil"
)

func TestCreateMessageRoundTrip(t *testing.T) {
	st := testutil.NewTestStore(t)
	contactID := createContact(t, st, "15551234", "Alice")
	chatID := createChat(t, st, "15551234@c.us")

	ts := time.Date(2026, 2, 14, 8, 30, 0, 0, time.UTC)
	lat, lon := 32.0853, 34.7818
	_, err := st.CreateMessage(store.MessageParams{
		ChatID:          chatID,
		ExternalID:      "loc-1",
		SenderContactID: contactID,
		Type:            "location",
		Timestamp:       ts,
		Latitude:        &lat,
		Longitude:       &lon,
		LocationName:    "Tel Aviv",
	})
	testutil.MustNoErr(t, err, "CreateMessage")

	msgs, err := st.MessagesByChat(chatID, 0)
	testutil.MustNoErr(t, err, "MessagesByChat")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.ExternalID != "loc-1" || m.Type != "location" {
		t.Errorf("got %q/%q, want loc-1/location", m.ExternalID, m.Type)
	}
	if !m.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", m.Timestamp, ts)
	}
	if m.SenderName.String != "Alice" {
		t.Errorf("SenderName = %q, want Alice", m.SenderName.String)
	}
}

func TestCreateMessageRejectsDuplicate(t *testing.T) {
	st := testutil.NewTestStore(t)
	chatID := createChat(t, st, "15551234@c.us")

	createTextMessage(t, st, chatID, "dup", time.Now())
	_, err := st.CreateMessage(store.MessageParams{
		ChatID:     chatID,
		ExternalID: "dup",
		Timestamp:  time.Now(),
	})
	if err == nil {
		t.Fatal("expected unique constraint error for duplicate external id")
	}

	// Same external id in a different chat is fine.
	otherChat := createChat(t, st, "other@c.us")
	createTextMessage(t, st, otherChat, "dup", time.Now())
}

func TestMessageExists(t *testing.T) {
	st := testutil.NewTestStore(t)
	chatID := createChat(t, st, "15551234@c.us")
	createTextMessage(t, st, chatID, "m1", time.Now())

	exists, err := st.MessageExists(chatID, "m1")
	testutil.MustNoErr(t, err, "MessageExists")
	if !exists {
		t.Error("m1 should exist")
	}
	exists, err = st.MessageExists(chatID, "m2")
	testutil.MustNoErr(t, err, "MessageExists m2")
	if exists {
		t.Error("m2 should not exist")
	}
}

func TestExistingMessageIDs(t *testing.T) {
	st := testutil.NewTestStore(t)
	chatID := createChat(t, st, "15551234@c.us")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	stored := make(map[string]int64)
	for i := 0; i < 5; i++ {
		extID := fmt.Sprintf("m-%d", i)
		stored[extID] = createTextMessage(t, st, chatID, extID, base.Add(time.Duration(i)*time.Minute))
	}

	got, err := st.ExistingMessageIDs(chatID, []string{"m-0", "m-2", "m-4", "m-99"})
	testutil.MustNoErr(t, err, "ExistingMessageIDs")

	if len(got) != 3 {
		t.Fatalf("got %d ids, want 3: %v", len(got), got)
	}
	for _, extID := range []string{"m-0", "m-2", "m-4"} {
		if got[extID] != stored[extID] {
			t.Errorf("%s = %d, want %d", extID, got[extID], stored[extID])
		}
	}
}

func TestExistingMessageIDsLargeBatch(t *testing.T) {
	st := testutil.NewTestStore(t)
	chatID := createChat(t, st, "15551234@c.us")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var asked []string
	// More than one chunk's worth of parameters.
	for i := 0; i < 600; i++ {
		extID := fmt.Sprintf("m-%d", i)
		asked = append(asked, extID)
		if i%2 == 0 {
			createTextMessage(t, st, chatID, extID, base.Add(time.Duration(i)*time.Second))
		}
	}

	got, err := st.ExistingMessageIDs(chatID, asked)
	testutil.MustNoErr(t, err, "ExistingMessageIDs")
	if len(got) != 300 {
		t.Errorf("got %d ids, want 300", len(got))
	}
}

func TestMessagesByChatOrderAndLimit(t *testing.T) {
	st := testutil.NewTestStore(t)
	chatID := createChat(t, st, "15551234@c.us")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		createTextMessage(t, st, chatID, fmt.Sprintf("m-%d", i), base.Add(time.Duration(i)*time.Hour))
	}

	msgs, err := st.MessagesByChat(chatID, 2)
	testutil.MustNoErr(t, err, "MessagesByChat")
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ExternalID != "m-4" || msgs[1].ExternalID != "m-3" {
		t.Errorf("order = %s, %s; want m-4, m-3", msgs[0].ExternalID, msgs[1].ExternalID)
	}

	n, err := st.CountMessagesForChat(chatID)
	testutil.MustNoErr(t, err, "CountMessagesForChat")
	if n != 5 {
		t.Errorf("count = %d, want 5", n)
	}
}
