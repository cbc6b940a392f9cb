package storage

import (
	"context"
	"time"
)

// Credentials is an immutable snapshot of the account used to sign requests.
type Credentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Region          string `json:"region"`
}

// Configured reports whether both halves of the key pair are present.
func (c Credentials) Configured() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// CredentialSource hands out the current credentials. Implementations must
// return a copy so that a request keeps using the snapshot it started with.
type CredentialSource interface {
	Current() Credentials
}

// StaticCredentials is a CredentialSource that never rotates.
type StaticCredentials Credentials

// Current returns the wrapped credentials.
func (s StaticCredentials) Current() Credentials {
	return Credentials(s)
}

// Bucket is a listed bucket.
type Bucket struct {
	Name         string    `json:"name"`
	CreationDate time.Time `json:"creation_date"`
}

// ObjectEntry is one <Contents> record of an object listing.
type ObjectEntry struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
	Size         uint64    `json:"size"`
	StorageClass string    `json:"storage_class,omitempty"`
	ETag         string    `json:"etag,omitempty"`
}

// Object is a downloaded object body.
type Object struct {
	Key         string
	ContentType string
	Body        []byte
}

// ObjectStoreClient captures the S3 operations the admin backend needs.
// Every method either returns its payload with a nil error or a *Error.
type ObjectStoreClient interface {
	ListBuckets(ctx context.Context) ([]Bucket, error)
	CreateBucket(ctx context.Context, bucket, region string) error
	DeleteBucket(ctx context.Context, bucket string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectEntry, error)
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error)
	GetObject(ctx context.Context, bucket, key string) (*Object, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}
