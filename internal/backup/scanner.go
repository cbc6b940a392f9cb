// Package backup copies local media files into the default bucket, either on
// demand or on a schedule.
package backup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var mediaExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "bmp": {}, "webp": {}, "svg": {},
	"mp4": {}, "avi": {}, "mov": {}, "wmv": {}, "flv": {}, "webm": {},
	"mp3": {}, "wav": {}, "ogg": {}, "wma": {}, "flac": {},
	"pdf": {}, "doc": {}, "docx": {}, "xls": {}, "xlsx": {}, "ppt": {}, "pptx": {},
	"zip": {}, "rar": {}, "7z": {}, "tar": {}, "gz": {},
}

// MediaFile is a file found under the uploads directory.
type MediaFile struct {
	Path    string
	RelPath string // slash-separated, relative to the uploads root
	Size    int64
	ModTime time.Time
}

// IsMediaFile reports whether name carries a backed-up extension.
func IsMediaFile(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	_, ok := mediaExtensions[ext]
	return ok
}

// ScanMedia walks root and returns every media file in lexical order.
func ScanMedia(ctx context.Context, root string) ([]MediaFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("uploads directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("uploads directory not found: %s is not a directory", root)
	}

	var files []MediaFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() || !IsMediaFile(d.Name()) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, MediaFile{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return files, nil
}
