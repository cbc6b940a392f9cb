package service

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/s3master/internal/domain"
	"github.com/andresuchdata/s3master/internal/storage"
)

type FileService struct {
	client   storage.ObjectStoreClient
	endpoint string
}

func NewFileService(client storage.ObjectStoreClient, endpoint string) *FileService {
	if endpoint == "" {
		endpoint = storage.DefaultEndpoint
	}
	return &FileService{client: client, endpoint: endpoint}
}

// ListFiles shows one level of bucket under prefix, emulating folders from
// the key structure.
func (s *FileService) ListFiles(ctx context.Context, bucket, prefix string) (*domain.FileListing, error) {
	prefix = normalizePrefix(prefix)
	entries, err := s.client.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}

	listing := &domain.FileListing{
		Bucket:  bucket,
		Prefix:  prefix,
		Folders: make([]domain.FileItem, 0),
		Files:   make([]domain.FileItem, 0),
	}
	folders := make(map[string]int)

	for _, e := range entries {
		rest := strings.TrimPrefix(e.Key, prefix)
		if rest == "" {
			continue
		}
		if name, _, nested := strings.Cut(rest, "/"); nested {
			idx, seen := folders[name]
			if !seen {
				idx = len(listing.Folders)
				folders[name] = idx
				listing.Folders = append(listing.Folders, domain.FileItem{
					Name:      name,
					Key:       prefix + name + "/",
					Type:      domain.ItemTypeFolder,
					SizeHuman: FormatBytes(0),
				})
			}
			if rest == name+"/" {
				listing.Folders[idx].LastModified = e.LastModified
			}
			continue
		}
		listing.Files = append(listing.Files, domain.FileItem{
			Name:         rest,
			Key:          e.Key,
			Type:         domain.ItemTypeFile,
			Size:         e.Size,
			SizeHuman:    FormatBytes(e.Size),
			LastModified: e.LastModified,
			MimeType:     MimeType(rest, nil),
		})
	}

	sort.SliceStable(listing.Folders, func(i, j int) bool { return listing.Folders[i].Name < listing.Folders[j].Name })
	return listing, nil
}

// UploadFile stores data as prefix/name with a detected content type and
// returns the key.
func (s *FileService) UploadFile(ctx context.Context, bucket, prefix, name string, data []byte) (string, error) {
	fileName := SanitizeFileName(name)
	if fileName == "" {
		return "", invalid("UploadFile", "Invalid file data")
	}
	key := normalizePrefix(prefix) + fileName
	key, err := s.client.PutObject(ctx, bucket, key, data, MimeType(fileName, data))
	if err != nil {
		return "", err
	}
	log.Info().Str("bucket", bucket).Str("key", key).Int("size", len(data)).Msg("file uploaded")
	return key, nil
}

func (s *FileService) DeleteFile(ctx context.Context, bucket, key string) error {
	if strings.TrimSpace(key) == "" {
		return invalid("DeleteFile", storage.UserMessage(storage.ErrEmptyKey))
	}
	return s.client.DeleteObject(ctx, bucket, key)
}

// CreateFolder writes an empty directory marker and returns its key.
func (s *FileService) CreateFolder(ctx context.Context, bucket, prefix, name string) (string, error) {
	folder := SanitizeFileName(name)
	if folder == "" {
		return "", invalid("CreateFolder", "Folder name cannot be empty")
	}
	return s.client.PutObject(ctx, bucket, normalizePrefix(prefix)+folder+"/", nil, mimeDirectory)
}

// RenameFile moves oldKey to newName within the same directory by copying
// the body and deleting the original.
func (s *FileService) RenameFile(ctx context.Context, bucket, oldKey, newName string) (string, error) {
	oldKey = strings.TrimLeft(oldKey, "/")
	fileName := SanitizeFileName(newName)
	if oldKey == "" || fileName == "" {
		return "", invalid("RenameFile", "Old key and new name cannot be empty")
	}
	newKey := fileName
	if dir := path.Dir(oldKey); dir != "." {
		newKey = dir + "/" + fileName
	}
	if newKey == oldKey {
		return newKey, nil
	}

	obj, err := s.client.GetObject(ctx, bucket, oldKey)
	if err != nil {
		return "", err
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = MimeType(fileName, obj.Body)
	}
	if _, err := s.client.PutObject(ctx, bucket, newKey, obj.Body, contentType); err != nil {
		return "", err
	}
	if err := s.client.DeleteObject(ctx, bucket, oldKey); err != nil {
		return "", fmt.Errorf("copied to %s but could not remove %s: %w", newKey, oldKey, err)
	}
	return newKey, nil
}

// FileURL is the unsigned path-style URL of key.
func (s *FileService) FileURL(bucket, key string) (string, error) {
	if bucket == "" || strings.Trim(key, "/") == "" {
		return "", invalid("FileURL", "Bucket and key are required")
	}
	return storage.ObjectURL(s.endpoint, bucket, key), nil
}
