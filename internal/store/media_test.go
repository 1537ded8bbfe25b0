package store_test

import (
	"testing"
	"time"

	"github.com/eyalbarash/whatsapp-chat-storage/internal/store"
	"github.com/eyalbarash/whatsapp-chat-storage/internal/testutil"
)

func createMediaMessage(t *testing.T, st *store.Store, chatID int64, extID, url string) int64 {
	t.Helper()
	id, err := st.CreateMessage(store.MessageParams{
		ChatID:        chatID,
		ExternalID:    extID,
		Type:          "image",
		Timestamp:     time.Now(),
		MediaURL:      url,
		MediaFilename: "photo.jpg",
		MediaMimeType: "image/jpeg",
	})
	testutil.MustNoErr(t, err, "createMediaMessage")
	return id
}

func TestEnqueueMediaIsIdempotent(t *testing.T) {
	st := testutil.NewTestStore(t)
	chatID := createChat(t, st, "15551234@c.us")
	msgID := createMediaMessage(t, st, chatID, "m1", "https://media.example/a.jpg")

	testutil.MustNoErr(t, st.EnqueueMedia(msgID, "https://media.example/a.jpg"), "first enqueue")
	testutil.MustNoErr(t, st.EnqueueMedia(msgID, "https://media.example/a.jpg"), "second enqueue")

	pending, err := st.PendingMedia(0, 3)
	testutil.MustNoErr(t, err, "PendingMedia")
	if len(pending) != 1 {
		t.Fatalf("got %d entries, want 1", len(pending))
	}
	e := pending[0]
	if e.MessageID != msgID || e.Status != store.MediaStatusPending {
		t.Errorf("entry = %+v", e)
	}
	if e.MediaFilename.String != "photo.jpg" || e.MediaMimeType.String != "image/jpeg" {
		t.Errorf("message metadata not joined: %+v", e)
	}
}

func TestMediaDownloadLifecycle(t *testing.T) {
	st := testutil.NewTestStore(t)
	chatID := createChat(t, st, "15551234@c.us")
	msgID := createMediaMessage(t, st, chatID, "m1", "https://media.example/a.jpg")
	testutil.MustNoErr(t, st.EnqueueMedia(msgID, "https://media.example/a.jpg"), "enqueue")

	pending, _ := st.PendingMedia(0, 3)
	queueID := pending[0].QueueID

	testutil.MustNoErr(t, st.MarkMediaDownloading(queueID), "MarkMediaDownloading")
	testutil.MustNoErr(t, st.CompleteMediaDownload(queueID, "/media/images/a.jpg", "/media/thumbnails/a.jpg"), "Complete")

	// Completed entries leave the pending set.
	pending, err := st.PendingMedia(0, 3)
	testutil.MustNoErr(t, err, "PendingMedia after complete")
	if len(pending) != 0 {
		t.Errorf("got %d pending entries after completion", len(pending))
	}

	// The message row points at the local file.
	msgs, err := st.MessagesByChat(chatID, 0)
	testutil.MustNoErr(t, err, "MessagesByChat")
	if msgs[0].LocalMediaPath.String != "/media/images/a.jpg" {
		t.Errorf("LocalMediaPath = %q", msgs[0].LocalMediaPath.String)
	}
}

func TestFailedMediaRetriesUntilAttemptLimit(t *testing.T) {
	st := testutil.NewTestStore(t)
	chatID := createChat(t, st, "15551234@c.us")
	msgID := createMediaMessage(t, st, chatID, "m1", "https://media.example/a.jpg")
	testutil.MustNoErr(t, st.EnqueueMedia(msgID, "https://media.example/a.jpg"), "enqueue")

	for attempt := 0; attempt < 3; attempt++ {
		pending, err := st.PendingMedia(0, 3)
		testutil.MustNoErr(t, err, "PendingMedia")
		if len(pending) != 1 {
			t.Fatalf("attempt %d: got %d entries, want 1", attempt, len(pending))
		}
		queueID := pending[0].QueueID
		testutil.MustNoErr(t, st.MarkMediaDownloading(queueID), "MarkMediaDownloading")
		testutil.MustNoErr(t, st.FailMediaDownload(queueID, "timeout"), "FailMediaDownload")
	}

	// Attempt limit reached; the entry is no longer offered.
	pending, err := st.PendingMedia(0, 3)
	testutil.MustNoErr(t, err, "PendingMedia after limit")
	if len(pending) != 0 {
		t.Errorf("got %d entries after attempt limit", len(pending))
	}
}

func TestPendingMediaLimit(t *testing.T) {
	st := testutil.NewTestStore(t)
	chatID := createChat(t, st, "15551234@c.us")

	for i := 0; i < 5; i++ {
		url := "https://media.example/" + string(rune('a'+i)) + ".jpg"
		msgID := createMediaMessage(t, st, chatID, "m"+string(rune('0'+i)), url)
		testutil.MustNoErr(t, st.EnqueueMedia(msgID, url), "enqueue")
	}

	pending, err := st.PendingMedia(2, 3)
	testutil.MustNoErr(t, err, "PendingMedia")
	if len(pending) != 2 {
		t.Errorf("got %d entries, want 2", len(pending))
	}
}

func TestPruneCompletedMedia(t *testing.T) {
	st := testutil.NewTestStore(t)
	chatID := createChat(t, st, "15551234@c.us")
	msgID := createMediaMessage(t, st, chatID, "m1", "https://media.example/a.jpg")
	testutil.MustNoErr(t, st.EnqueueMedia(msgID, "https://media.example/a.jpg"), "enqueue")

	pending, _ := st.PendingMedia(0, 3)
	testutil.MustNoErr(t, st.CompleteMediaDownload(pending[0].QueueID, "/media/images/a.jpg", ""), "complete")

	n, err := st.PruneCompletedMedia(time.Now().Add(time.Hour))
	testutil.MustNoErr(t, err, "PruneCompletedMedia")
	if n != 1 {
		t.Errorf("pruned %d rows, want 1", n)
	}
}
