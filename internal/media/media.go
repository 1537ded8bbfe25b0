// Package media downloads message attachments queued by the sync layer and
// stores them on disk, partitioned by message type.
package media

import (
	"fmt"
	"os"
	"path/filepath"
)

// Subdirectories under the media root, one per message type plus thumbnails
// and a staging area for in-flight downloads.
const (
	DirImages     = "images"
	DirVideos     = "videos"
	DirAudio      = "audio"
	DirVoice      = "voice"
	DirDocuments  = "documents"
	DirStickers   = "stickers"
	DirThumbnails = "thumbnails"
	DirTemp       = "temp"
)

var allDirs = []string{
	DirImages, DirVideos, DirAudio, DirVoice,
	DirDocuments, DirStickers, DirThumbnails, DirTemp,
}

// Layout resolves on-disk paths under a media root directory.
type Layout struct {
	Root string
}

// EnsureDirs creates the media root and all type subdirectories.
func (l Layout) EnsureDirs() error {
	for _, d := range allDirs {
		if err := os.MkdirAll(filepath.Join(l.Root, d), 0755); err != nil {
			return fmt.Errorf("create media dir %s: %w", d, err)
		}
	}
	return nil
}

// DirFor returns the subdirectory for a message type. Unknown types land in
// documents.
func (l Layout) DirFor(messageType string) string {
	switch messageType {
	case "image":
		return filepath.Join(l.Root, DirImages)
	case "video":
		return filepath.Join(l.Root, DirVideos)
	case "audio":
		return filepath.Join(l.Root, DirAudio)
	case "voice":
		return filepath.Join(l.Root, DirVoice)
	case "sticker":
		return filepath.Join(l.Root, DirStickers)
	default:
		return filepath.Join(l.Root, DirDocuments)
	}
}

// TempDir returns the staging directory for in-flight downloads.
func (l Layout) TempDir() string {
	return filepath.Join(l.Root, DirTemp)
}

// ThumbnailDir returns the directory for generated thumbnails.
func (l Layout) ThumbnailDir() string {
	return filepath.Join(l.Root, DirThumbnails)
}
