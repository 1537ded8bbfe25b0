package media_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eyalbarash/whatsapp-chat-storage/internal/greenapi"
	"github.com/eyalbarash/whatsapp-chat-storage/internal/media"
	"github.com/eyalbarash/whatsapp-chat-storage/internal/store"
	"github.com/eyalbarash/whatsapp-chat-storage/internal/testutil"
)

func setupFetcher(t *testing.T) (*store.Store, *greenapi.MockAPI, *media.Fetcher, string) {
	t.Helper()
	st := testutil.NewTestStore(t)
	api := greenapi.NewMockAPI()
	root := t.TempDir()
	f := media.NewFetcher(st, api, root)
	return st, api, f, root
}

func enqueueImage(t *testing.T, st *store.Store, extID, url string) int64 {
	t.Helper()
	chatID, err := st.UpsertChat(store.ChatParams{WhatsAppChatID: "15551234@c.us"})
	testutil.MustNoErr(t, err, "UpsertChat")
	msgID, err := st.CreateMessage(store.MessageParams{
		ChatID:        chatID,
		ExternalID:    extID,
		Type:          "image",
		Timestamp:     time.Now(),
		MediaURL:      url,
		MediaFilename: "photo.jpg",
	})
	testutil.MustNoErr(t, err, "CreateMessage")
	testutil.MustNoErr(t, st.EnqueueMedia(msgID, url), "EnqueueMedia")
	return msgID
}

func TestFetcherDownloadsPendingMedia(t *testing.T) {
	st, api, f, root := setupFetcher(t)

	url := "https://media.example/a"
	enqueueImage(t, st, "m1", url)
	api.Media[url] = "fake image bytes"

	res, err := f.Run(context.Background(), 0)
	testutil.MustNoErr(t, err, "Run")
	if res.Downloaded != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v, want 1 downloaded", res)
	}

	// Queue entry is done.
	pending, err := st.PendingMedia(0, 3)
	testutil.MustNoErr(t, err, "PendingMedia")
	if len(pending) != 0 {
		t.Errorf("%d entries still pending", len(pending))
	}

	// File landed in the images dir with the original extension.
	entries, err := os.ReadDir(filepath.Join(root, media.DirImages))
	testutil.MustNoErr(t, err, "read images dir")
	if len(entries) != 1 {
		t.Fatalf("got %d files in images dir, want 1", len(entries))
	}
	if !strings.HasSuffix(entries[0].Name(), ".jpg") {
		t.Errorf("file = %q, want .jpg suffix", entries[0].Name())
	}

	// The message row points at the file.
	chat, _ := st.GetChatByWhatsAppID("15551234@c.us")
	msgs, err := st.MessagesByChat(chat.ID, 0)
	testutil.MustNoErr(t, err, "MessagesByChat")
	if !msgs[0].LocalMediaPath.Valid {
		t.Error("LocalMediaPath not set on message")
	} else if data, err := os.ReadFile(msgs[0].LocalMediaPath.String); err != nil || string(data) != "fake image bytes" {
		t.Errorf("stored file mismatch: %v %q", err, data)
	}
}

func TestFetcherRecordsFailures(t *testing.T) {
	st, _, f, _ := setupFetcher(t)

	// No media registered for the URL, so the download 404s.
	enqueueImage(t, st, "m1", "https://media.example/missing")

	res, err := f.Run(context.Background(), 0)
	testutil.MustNoErr(t, err, "Run")
	if res.Failed != 1 || res.Downloaded != 0 {
		t.Fatalf("result = %+v, want 1 failed", res)
	}

	// Entry stays eligible for retry.
	pending, err := st.PendingMedia(0, 3)
	testutil.MustNoErr(t, err, "PendingMedia")
	if len(pending) != 1 {
		t.Fatalf("got %d pending entries, want 1", len(pending))
	}
	if pending[0].Status != store.MediaStatusFailed || pending[0].Attempts != 1 {
		t.Errorf("entry = %+v, want failed with 1 attempt", pending[0])
	}
}

func TestFetcherHonorsLimit(t *testing.T) {
	st, api, f, _ := setupFetcher(t)

	for _, extID := range []string{"m1", "m2", "m3"} {
		url := "https://media.example/" + extID
		enqueueImage(t, st, extID, url)
		api.Media[url] = "bytes"
	}

	res, err := f.Run(context.Background(), 2)
	testutil.MustNoErr(t, err, "Run")
	if res.Downloaded != 2 {
		t.Errorf("Downloaded = %d, want 2", res.Downloaded)
	}

	pending, _ := st.PendingMedia(0, 3)
	if len(pending) != 1 {
		t.Errorf("got %d pending entries, want 1", len(pending))
	}
}

func TestFetcherStopsOnCancel(t *testing.T) {
	st, api, f, _ := setupFetcher(t)

	url := "https://media.example/a"
	enqueueImage(t, st, "m1", url)
	api.Media[url] = "bytes"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Run(ctx, 0); err == nil {
		t.Fatal("expected context error")
	}
}
