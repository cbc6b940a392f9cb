package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// SDKConfig encapsulates the connection info for the minio-go backed client.
type SDKConfig struct {
	Endpoint string
	UseSSL   bool
}

// SDKClient implements ObjectStoreClient with minio-go, which signs with
// SigV4. A fresh minio client is built per call from the current credential
// snapshot so rotation takes effect immediately.
type SDKClient struct {
	host    string
	secure  bool
	creds   CredentialSource
	timeout time.Duration
}

// NewSDKClient builds an SDKClient. Endpoint may carry a scheme; without one
// UseSSL decides.
func NewSDKClient(creds CredentialSource, cfg SDKConfig) (*SDKClient, error) {
	if creds == nil {
		return nil, fmt.Errorf("credential source must be provided")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		endpoint = fmt.Sprintf("%s://%s", scheme, strings.TrimPrefix(endpoint, "//"))
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", cfg.Endpoint)
	}

	return &SDKClient{
		host:    u.Host,
		secure:  u.Scheme == "https",
		creds:   creds,
		timeout: RequestTimeout,
	}, nil
}

// withTimeout bounds one operation the same way RESTClient bounds a request.
func (c *SDKClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *SDKClient) client(op string) (*minio.Client, Credentials, error) {
	snap := c.creds.Current()
	if !snap.Configured() {
		return nil, snap, configurationError(op)
	}
	region := snap.Region
	if region == "" {
		region = DefaultRegion
	}
	mc, err := minio.New(c.host, &minio.Options{
		Creds:        credentials.NewStaticV4(snap.AccessKeyID, snap.SecretAccessKey, ""),
		Secure:       c.secure,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, snap, transportError(op, err)
	}
	return mc, snap, nil
}

func (c *SDKClient) ListBuckets(ctx context.Context) ([]Bucket, error) {
	mc, _, err := c.client("ListBuckets")
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	infos, err := mc.ListBuckets(ctx)
	if err != nil {
		return nil, toStorageError("ListBuckets", err)
	}
	buckets := make([]Bucket, 0, len(infos))
	for _, b := range infos {
		buckets = append(buckets, Bucket{Name: b.Name, CreationDate: b.CreationDate.UTC()})
	}
	return buckets, nil
}

func (c *SDKClient) CreateBucket(ctx context.Context, bucket, region string) error {
	if err := ValidateBucketName(bucket); err != nil {
		return validationError("CreateBucket", err)
	}
	mc, snap, err := c.client("CreateBucket")
	if err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if region == "" {
		region = snap.Region
	}
	if region == "" {
		region = DefaultRegion
	}
	if err := mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return toStorageError("CreateBucket", err)
	}
	return nil
}

func (c *SDKClient) DeleteBucket(ctx context.Context, bucket string) error {
	if err := ValidateBucketName(bucket); err != nil {
		return validationError("DeleteBucket", err)
	}
	mc, _, err := c.client("DeleteBucket")
	if err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := mc.RemoveBucket(ctx, bucket); err != nil {
		return toStorageError("DeleteBucket", err)
	}
	return nil
}

func (c *SDKClient) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectEntry, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return nil, validationError("ListObjects", err)
	}
	mc, _, err := c.client("ListObjects")
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	objects := make([]ObjectEntry, 0)
	for obj := range mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, toStorageError("ListObjects", obj.Err)
		}
		if prefix != "" && obj.Key == prefix {
			continue
		}
		size := uint64(0)
		if obj.Size > 0 {
			size = uint64(obj.Size)
		}
		objects = append(objects, ObjectEntry{
			Key:          obj.Key,
			LastModified: obj.LastModified.UTC(),
			Size:         size,
			StorageClass: obj.StorageClass,
			ETag:         strings.Trim(obj.ETag, `"`),
		})
	}
	return objects, nil
}

func (c *SDKClient) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if err := ValidateBucketName(bucket); err != nil {
		return "", validationError("PutObject", err)
	}
	if err := ValidateKey(key); err != nil {
		return "", validationError("PutObject", err)
	}
	mc, _, err := c.client("PutObject")
	if err != nil {
		return "", err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if contentType == "" {
		contentType = contentTypeBinary
	}
	_, err = mc.PutObject(ctx, bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", toStorageError("PutObject", err)
	}
	return key, nil
}

func (c *SDKClient) GetObject(ctx context.Context, bucket, key string) (*Object, error) {
	key = strings.TrimLeft(key, "/")
	if err := ValidateBucketName(bucket); err != nil {
		return nil, validationError("GetObject", err)
	}
	if err := ValidateKey(key); err != nil {
		return nil, validationError("GetObject", err)
	}
	mc, _, err := c.client("GetObject")
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	obj, err := mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, toStorageError("GetObject", err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, toStorageError("GetObject", err)
	}
	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, toStorageError("GetObject", err)
	}
	return &Object{Key: key, ContentType: info.ContentType, Body: body}, nil
}

func (c *SDKClient) DeleteObject(ctx context.Context, bucket, key string) error {
	key = strings.TrimLeft(key, "/")
	if err := ValidateBucketName(bucket); err != nil {
		return validationError("DeleteObject", err)
	}
	if err := ValidateKey(key); err != nil {
		return validationError("DeleteObject", err)
	}
	mc, _, err := c.client("DeleteObject")
	if err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := mc.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return toStorageError("DeleteObject", err)
	}
	return nil
}

// toStorageError maps a minio-go failure onto the shared error model: an
// answer carrying an S3 error code is remote, anything else is transport.
func toStorageError(op string, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "" {
		return transportError(op, err)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	serr := remoteError(op, status, ErrorDocument{Code: resp.Code, Message: resp.Message})
	serr.Err = err
	return serr
}

var _ ObjectStoreClient = (*SDKClient)(nil)
