package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/s3master/internal/domain"
	"github.com/andresuchdata/s3master/internal/settings"
	"github.com/andresuchdata/s3master/internal/storage"
)

type BucketService struct {
	client   storage.ObjectStoreClient
	creds    storage.CredentialSource
	settings *settings.Settings
}

func NewBucketService(client storage.ObjectStoreClient, creds storage.CredentialSource, st *settings.Settings) *BucketService {
	return &BucketService{client: client, creds: creds, settings: st}
}

func (s *BucketService) ListBuckets(ctx context.Context) ([]storage.Bucket, error) {
	return s.client.ListBuckets(ctx)
}

// CreateBucket checks the name and region locally before asking the store.
func (s *BucketService) CreateBucket(ctx context.Context, name, region string) error {
	name = strings.TrimSpace(name)
	if err := storage.ValidateBucketName(name); err != nil {
		return &storage.Error{Kind: storage.KindValidation, Op: "CreateBucket", Message: storage.UserMessage(err), Err: err}
	}
	region = strings.TrimSpace(region)
	if region != "" {
		if _, ok := storage.RegionName(region); !ok {
			return invalid("CreateBucket", fmt.Sprintf("Unknown region: %s", region))
		}
	}
	if err := s.client.CreateBucket(ctx, name, region); err != nil {
		return err
	}
	log.Info().Str("bucket", name).Str("region", region).Msg("bucket created")
	return nil
}

// DeleteBucket removes the bucket and forgets it as the default.
func (s *BucketService) DeleteBucket(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := s.client.DeleteBucket(ctx, name); err != nil {
		return err
	}
	if current, err := s.settings.DefaultBucket(ctx); err == nil && current == name {
		if err := s.settings.SetDefaultBucket(ctx, ""); err != nil {
			log.Warn().Err(err).Str("bucket", name).Msg("failed to clear default bucket")
		}
	}
	log.Info().Str("bucket", name).Msg("bucket deleted")
	return nil
}

// BucketExists looks name up in the account's bucket list.
func (s *BucketService) BucketExists(ctx context.Context, name string) (bool, error) {
	buckets, err := s.client.ListBuckets(ctx)
	if err != nil {
		return false, err
	}
	for _, b := range buckets {
		if b.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// BucketLocation reports the configured region; the legacy API offers no
// location query over path-style requests.
func (s *BucketService) BucketLocation(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", invalid("BucketLocation", storage.UserMessage(storage.ErrEmptyBucketName))
	}
	exists, err := s.BucketExists(ctx, name)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", invalid("BucketLocation", "Bucket does not exist")
	}
	if region := s.creds.Current().Region; region != "" {
		return region, nil
	}
	return storage.DefaultRegion, nil
}

func (s *BucketService) BucketStats(ctx context.Context, name string) (*domain.BucketStats, error) {
	objects, err := s.client.ListObjects(ctx, name, "")
	if err != nil {
		return nil, err
	}
	stats := &domain.BucketStats{Bucket: name, ObjectCount: len(objects)}
	for _, o := range objects {
		stats.TotalSize += o.Size
	}
	stats.TotalSizeHuman = FormatBytes(stats.TotalSize)
	return stats, nil
}

// SetDefaultBucket persists name after confirming it exists.
func (s *BucketService) SetDefaultBucket(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("SetDefaultBucket", storage.UserMessage(storage.ErrEmptyBucketName))
	}
	exists, err := s.BucketExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return invalid("SetDefaultBucket", "Bucket does not exist")
	}
	if err := s.settings.SetDefaultBucket(ctx, name); err != nil {
		return fmt.Errorf("save default bucket: %w", err)
	}
	return nil
}

func (s *BucketService) DefaultBucket(ctx context.Context) (string, error) {
	return s.settings.DefaultBucket(ctx)
}

// TestConnection lists buckets with the current credentials and returns how
// many were visible.
func (s *BucketService) TestConnection(ctx context.Context) (int, error) {
	buckets, err := s.client.ListBuckets(ctx)
	if err != nil {
		return 0, err
	}
	return len(buckets), nil
}
