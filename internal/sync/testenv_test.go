package sync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/eyalbarash/whatsapp-chat-storage/internal/greenapi"
	"github.com/eyalbarash/whatsapp-chat-storage/internal/store"
)

const (
	testPrivateChat = "15551234@c.us"
	testGroupChat   = "120363100000000001@g.us"
)

type TestEnv struct {
	Store   *store.Store
	Mock    *greenapi.MockAPI
	Syncer  *Syncer
	TmpDir  string
	Context context.Context
}

func newTestEnv(t *testing.T, opt ...*Options) *TestEnv {
	t.Helper()

	if len(opt) > 1 {
		t.Fatalf("newTestEnv: at most one *Options allowed, got %d", len(opt))
	}

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	var o *Options
	if len(opt) > 0 {
		o = opt[0]
	} else {
		o = testOptions(tmpDir)
	}

	mock := greenapi.NewMockAPI()
	return &TestEnv{
		Store:   st,
		Mock:    mock,
		Syncer:  New(mock, st, o),
		TmpDir:  tmpDir,
		Context: context.Background(),
	}
}

// testOptions returns defaults with the pacing delays zeroed so tests run
// fast, and persistence paths rooted in the test's temp dir.
func testOptions(tmpDir string) *Options {
	o := DefaultOptions()
	o.ChatDelay = 0
	o.BatchPause = 0
	o.CheckpointPath = filepath.Join(tmpDir, "sync_progress.json")
	o.StatusPath = filepath.Join(tmpDir, "incremental_status.json")
	return o
}

// SetOptions replaces the Syncer with one configured by the given modifier.
func (e *TestEnv) SetOptions(t *testing.T, mod func(*Options)) {
	t.Helper()
	opts := testOptions(e.TmpDir)
	mod(opts)
	e.Syncer = New(e.Mock, e.Store, opts)
}

// mustSyncChat runs a single-chat sync and fails the test on error.
func mustSyncChat(t *testing.T, env *TestEnv, chatID string, count int) *ChatResult {
	t.Helper()
	res, err := env.Syncer.SyncChat(env.Context, chatID, count)
	if err != nil {
		t.Fatalf("SyncChat(%s): %v", chatID, err)
	}
	return res
}

// mustCountMessages returns the stored message count for a WhatsApp chat ID.
func mustCountMessages(t *testing.T, env *TestEnv, chatID string) int64 {
	t.Helper()
	chat, err := env.Store.GetChatByWhatsAppID(chatID)
	if err != nil {
		t.Fatalf("GetChatByWhatsAppID: %v", err)
	}
	if chat == nil {
		return 0
	}
	n, err := env.Store.CountMessagesForChat(chat.ID)
	if err != nil {
		t.Fatalf("CountMessagesForChat: %v", err)
	}
	return n
}
