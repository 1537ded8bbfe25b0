package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/eyalbarash/whatsapp-chat-storage/internal/greenapi"
	"github.com/eyalbarash/whatsapp-chat-storage/internal/store"
)

const defaultMaxAttempts = 3

// Fetcher drains the media download queue: it streams each attachment to the
// staging directory, verifies and names it by content hash, moves it into the
// type subdirectory and records the local path on the message row.
type Fetcher struct {
	store       *store.Store
	downloader  greenapi.MediaDownloader
	layout      Layout
	logger      *slog.Logger
	maxAttempts int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger used for per-download progress.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// WithMaxAttempts overrides the per-entry attempt limit.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) { f.maxAttempts = n }
}

// NewFetcher creates a Fetcher storing files under root.
func NewFetcher(st *store.Store, dl greenapi.MediaDownloader, root string, opts ...Option) *Fetcher {
	f := &Fetcher{
		store:       st,
		downloader:  dl,
		layout:      Layout{Root: root},
		logger:      slog.Default(),
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Result summarizes one queue drain.
type Result struct {
	Downloaded int
	Failed     int
	Skipped    int
}

// Run processes up to limit pending queue entries (zero means all).
// Individual download failures are recorded on their queue entry and do not
// stop the drain; the context cancels the whole run.
func (f *Fetcher) Run(ctx context.Context, limit int) (*Result, error) {
	if err := f.layout.EnsureDirs(); err != nil {
		return nil, err
	}

	entries, err := f.store.PendingMedia(limit, f.maxAttempts)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := f.store.MarkMediaDownloading(entry.QueueID); err != nil {
			return res, err
		}

		localPath, thumbPath, err := f.fetchOne(ctx, entry)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			f.logger.Warn("media download failed",
				"queue_id", entry.QueueID,
				"message_id", entry.ExternalID,
				"error", err)
			if ferr := f.store.FailMediaDownload(entry.QueueID, err.Error()); ferr != nil {
				return res, ferr
			}
			res.Failed++
			continue
		}

		if err := f.store.CompleteMediaDownload(entry.QueueID, localPath, thumbPath); err != nil {
			return res, err
		}
		f.logger.Debug("media downloaded",
			"message_id", entry.ExternalID,
			"path", localPath)
		res.Downloaded++
	}
	return res, nil
}

// fetchOne downloads a single attachment and returns the final local path and
// the thumbnail path (empty when no thumbnail applies).
func (f *Fetcher) fetchOne(ctx context.Context, entry store.MediaQueueEntry) (string, string, error) {
	body, contentType, err := f.downloader.DownloadMedia(ctx, entry.MediaURL)
	if err != nil {
		return "", "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(f.layout.TempDir(), "download-*")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), body); err != nil {
		tmp.Close()
		return "", "", fmt.Errorf("write media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", fmt.Errorf("close temp file: %w", err)
	}

	hash := hex.EncodeToString(hasher.Sum(nil))
	ext := f.pickExtension(entry, contentType, tmpPath)
	name := hash[:16] + ext

	finalPath := filepath.Join(f.layout.DirFor(entry.MessageType), name)
	if _, err := os.Stat(finalPath); err == nil {
		// Same content already on disk; reuse it.
	} else if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", "", fmt.Errorf("move media into place: %w", err)
	}

	thumbPath := ""
	if entry.MessageType == "image" || entry.MessageType == "sticker" {
		thumbPath = filepath.Join(f.layout.ThumbnailDir(), hash[:16]+".jpg")
		if err := WriteThumbnail(finalPath, thumbPath); err != nil {
			// Thumbnails are best-effort; the download itself succeeded.
			f.logger.Debug("thumbnail generation failed", "path", finalPath, "error", err)
			thumbPath = ""
		}
	}

	return finalPath, thumbPath, nil
}

// pickExtension chooses a file extension, preferring the original filename,
// then the declared content type, then content sniffing.
func (f *Fetcher) pickExtension(entry store.MediaQueueEntry, contentType, path string) string {
	if entry.MediaFilename.Valid {
		if ext := filepath.Ext(entry.MediaFilename.String); ext != "" {
			return strings.ToLower(ext)
		}
	}

	declared := contentType
	if declared == "" && entry.MediaMimeType.Valid {
		declared = entry.MediaMimeType.String
	}
	if declared != "" && declared != "application/octet-stream" {
		if mt := mimetype.Lookup(declared); mt != nil && mt.Extension() != "" {
			return mt.Extension()
		}
	}

	if mt, err := mimetype.DetectFile(path); err == nil && mt.Extension() != "" {
		return mt.Extension()
	}
	return ".bin"
}
