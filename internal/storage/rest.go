package storage

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultEndpoint is the path-style S3 service root.
const DefaultEndpoint = "https://s3.amazonaws.com"

const (
	contentTypeXML    = "application/xml"
	contentTypeBinary = "application/octet-stream"
	s3Namespace       = "http://s3.amazonaws.com/doc/2006-03-01/"
)

// RESTClient talks to an S3-compatible endpoint with hand-built requests
// signed by the legacy v2 scheme. It keeps no mutable state and is safe for
// concurrent use.
type RESTClient struct {
	endpoint  *url.URL
	creds     CredentialSource
	transport Transport
	now       func() time.Time
}

type restOptions struct {
	endpoint  string
	transport Transport
	now       func() time.Time
}

// Option configures a RESTClient.
type Option func(*restOptions)

// WithEndpoint points the client at another S3-compatible service root.
func WithEndpoint(endpoint string) Option {
	return func(o *restOptions) { o.endpoint = endpoint }
}

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) Option {
	return func(o *restOptions) { o.transport = t }
}

// WithClock replaces the clock used for the Date header.
func WithClock(now func() time.Time) Option {
	return func(o *restOptions) { o.now = now }
}

// NewRESTClient builds a client reading credentials from creds on every call.
func NewRESTClient(creds CredentialSource, opts ...Option) (*RESTClient, error) {
	if creds == nil {
		return nil, fmt.Errorf("credential source must be provided")
	}

	o := restOptions{endpoint: DefaultEndpoint, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = NewHTTPTransport(nil)
	}

	endpoint, err := parseEndpoint(o.endpoint)
	if err != nil {
		return nil, err
	}

	return &RESTClient{
		endpoint:  endpoint,
		creds:     creds,
		transport: o.transport,
		now:       o.now,
	}, nil
}

func parseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: missing host", raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	return u, nil
}

// Endpoint returns the service root the client signs against.
func (c *RESTClient) Endpoint() string {
	return c.endpoint.String()
}

// ListBuckets returns every bucket owned by the account.
func (c *RESTClient) ListBuckets(ctx context.Context) ([]Bucket, error) {
	resp, err := c.do(ctx, c.creds.Current(), call{
		op:      "ListBuckets",
		method:  http.MethodGet,
		success: []int{http.StatusOK},
	})
	if err != nil {
		return nil, err
	}
	return ParseBucketList(resp.Body)
}

type createBucketConfiguration struct {
	XMLName            xml.Name `xml:"CreateBucketConfiguration"`
	Xmlns              string   `xml:"xmlns,attr"`
	LocationConstraint string   `xml:"LocationConstraint"`
}

// CreateBucket creates bucket in region. An empty region falls back to the
// credentials' region and then to DefaultRegion; the default region is sent
// without a location constraint since the service rejects one.
func (c *RESTClient) CreateBucket(ctx context.Context, bucket, region string) error {
	creds := c.creds.Current()
	if region == "" {
		region = creds.Region
	}
	if region == "" {
		region = DefaultRegion
	}

	var body []byte
	if region != DefaultRegion {
		payload, err := xml.Marshal(createBucketConfiguration{
			Xmlns:              s3Namespace,
			LocationConstraint: region,
		})
		if err != nil {
			return &Error{Kind: KindValidation, Op: "CreateBucket", Message: "encode bucket configuration", Err: err}
		}
		body = append([]byte(xml.Header), payload...)
	}

	_, err := c.do(ctx, creds, call{
		op:          "CreateBucket",
		method:      http.MethodPut,
		bucket:      bucket,
		body:        body,
		contentType: contentTypeXML,
		success:     []int{http.StatusOK, http.StatusCreated},
	})
	return err
}

// DeleteBucket removes an empty bucket. Only 204 counts as success.
func (c *RESTClient) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := c.do(ctx, c.creds.Current(), call{
		op:      "DeleteBucket",
		method:  http.MethodDelete,
		bucket:  bucket,
		success: []int{http.StatusNoContent},
	})
	return err
}

// ListObjects lists the keys of bucket that start with prefix.
func (c *RESTClient) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectEntry, error) {
	var query string
	if prefix != "" {
		query = "prefix=" + url.QueryEscape(prefix)
	}
	resp, err := c.do(ctx, c.creds.Current(), call{
		op:      "ListObjects",
		method:  http.MethodGet,
		bucket:  bucket,
		query:   query,
		success: []int{http.StatusOK},
	})
	if err != nil {
		return nil, err
	}
	return ParseObjectList(resp.Body, prefix)
}

// PutObject stores body under key and returns the key written.
func (c *RESTClient) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if contentType == "" {
		contentType = contentTypeBinary
	}
	_, err := c.do(ctx, c.creds.Current(), call{
		op:          "PutObject",
		method:      http.MethodPut,
		bucket:      bucket,
		key:         key,
		needsKey:    true,
		body:        body,
		contentType: contentType,
		success:     []int{http.StatusOK, http.StatusCreated},
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// GetObject downloads key.
func (c *RESTClient) GetObject(ctx context.Context, bucket, key string) (*Object, error) {
	key = strings.TrimLeft(key, "/")
	resp, err := c.do(ctx, c.creds.Current(), call{
		op:       "GetObject",
		method:   http.MethodGet,
		bucket:   bucket,
		key:      key,
		needsKey: true,
		success:  []int{http.StatusOK},
	})
	if err != nil {
		return nil, err
	}
	return &Object{
		Key:         key,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}, nil
}

// DeleteObject removes key. Only 204 counts as success.
func (c *RESTClient) DeleteObject(ctx context.Context, bucket, key string) error {
	key = strings.TrimLeft(key, "/")
	_, err := c.do(ctx, c.creds.Current(), call{
		op:       "DeleteObject",
		method:   http.MethodDelete,
		bucket:   bucket,
		key:      key,
		needsKey: true,
		success:  []int{http.StatusNoContent},
	})
	return err
}

type call struct {
	op          string
	method      string
	bucket      string
	key         string
	needsKey    bool
	query       string
	body        []byte
	contentType string
	success     []int
}

func (c *RESTClient) do(ctx context.Context, creds Credentials, cl call) (*Response, error) {
	if !creds.Configured() {
		return nil, configurationError(cl.op)
	}
	if cl.op != "ListBuckets" {
		if err := ValidateBucketName(cl.bucket); err != nil {
			return nil, validationError(cl.op, err)
		}
	}
	if cl.needsKey {
		if err := ValidateKey(cl.key); err != nil {
			return nil, validationError(cl.op, err)
		}
	}

	resource := c.resourcePath(cl.bucket, cl.key)
	if cl.query != "" {
		resource += "?" + cl.query
	}
	target := c.endpoint.Scheme + "://" + c.endpoint.Host + resource

	date := c.now().UTC().Format(http.TimeFormat)
	sts := NewStringToSign(cl.method, resource, cl.contentType, cl.body, date)

	header := make(http.Header)
	header.Set("Date", date)
	header.Set("Authorization", AuthorizationHeader(creds.AccessKeyID, Sign(creds.SecretAccessKey, sts)))
	if len(cl.body) > 0 {
		header.Set("Content-Type", sts.ContentType)
	}

	resp, err := c.transport.Send(ctx, &Request{
		Method:  cl.method,
		URL:     target,
		Header:  header,
		Body:    cl.body,
		Timeout: RequestTimeout,
	})
	if err != nil {
		log.Debug().Err(err).Str("op", cl.op).Str("bucket", cl.bucket).Msg("s3 transport failure")
		return nil, transportError(cl.op, err)
	}

	for _, code := range cl.success {
		if resp.StatusCode == code {
			return resp, nil
		}
	}

	doc := ParseError(resp.Body)
	if doc.Message == "" {
		doc.Message = fmt.Sprintf("unexpected status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	serr := remoteError(cl.op, resp.StatusCode, doc)
	log.Debug().
		Str("op", cl.op).
		Str("bucket", cl.bucket).
		Str("key", cl.key).
		Int("status", resp.StatusCode).
		Str("code", serr.Code).
		Msg("s3 request rejected")
	return nil, serr
}

// resourcePath is the escaped request path, which doubles as the canonical
// resource for signing.
func (c *RESTClient) resourcePath(bucket, key string) string {
	var b strings.Builder
	b.WriteString(c.endpoint.EscapedPath())
	b.WriteByte('/')
	if bucket == "" {
		return b.String()
	}
	b.WriteString(url.PathEscape(bucket))
	if key != "" {
		b.WriteByte('/')
		b.WriteString(escapeKey(key))
	}
	return b.String()
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// ObjectURL returns the unsigned path-style URL of key.
func ObjectURL(endpoint, bucket, key string) string {
	return strings.TrimSuffix(endpoint, "/") + "/" + url.PathEscape(bucket) + "/" + escapeKey(strings.TrimLeft(key, "/"))
}

var _ ObjectStoreClient = (*RESTClient)(nil)
