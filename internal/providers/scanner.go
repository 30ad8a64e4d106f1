package providers

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/mediapruner/queue/internal/queue"
)

var videoExtensions = map[string]bool{
	".mkv": true,
	".mp4": true,
	".avi": true,
	".m4v": true,
	".mov": true,
	".wmv": true,
}

// FilesystemScanner implements queue.DirectoryScanner by walking a
// library path and collecting video files.
type FilesystemScanner struct{}

// NewFilesystemScanner creates a filesystem-backed directory scanner.
func NewFilesystemScanner() *FilesystemScanner {
	return &FilesystemScanner{}
}

func (s *FilesystemScanner) walk(ctx context.Context, root string) ([]queue.ScanEntry, error) {
	var entries []queue.ScanEntry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if videoExtensions[strings.ToLower(filepath.Ext(path))] {
			entries = append(entries, queue.ScanEntry{Path: path})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ScanMovieDirectory walks a movie library path for video files.
func (s *FilesystemScanner) ScanMovieDirectory(ctx context.Context, path string) ([]queue.ScanEntry, error) {
	return s.walk(ctx, path)
}

// ScanTVShowDirectory walks a TV library path for video files.
func (s *FilesystemScanner) ScanTVShowDirectory(ctx context.Context, path string) ([]queue.ScanEntry, error) {
	return s.walk(ctx, path)
}
