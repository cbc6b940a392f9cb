package storage

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// ErrorDocument is the payload of an S3 <Error> response.
type ErrorDocument struct {
	Code    string
	Message string
}

type listAllMyBucketsResult struct {
	XMLName xml.Name `xml:"ListAllMyBucketsResult"`
	Buckets []struct {
		Name         string `xml:"Name"`
		CreationDate string `xml:"CreationDate"`
	} `xml:"Buckets>Bucket"`
}

type listBucketResult struct {
	XMLName  xml.Name `xml:"ListBucketResult"`
	Contents []struct {
		Key          string `xml:"Key"`
		LastModified string `xml:"LastModified"`
		ETag         string `xml:"ETag"`
		Size         uint64 `xml:"Size"`
		StorageClass string `xml:"StorageClass"`
	} `xml:"Contents"`
}

type errorResponse struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// ParseBucketList decodes a ListAllMyBucketsResult document. A document
// without buckets yields an empty, non-nil slice.
func ParseBucketList(body []byte) ([]Bucket, error) {
	var res listAllMyBucketsResult
	if err := decodeXML(body, &res); err != nil {
		return nil, parseFailure("ListBuckets", err)
	}
	buckets := make([]Bucket, 0, len(res.Buckets))
	for _, b := range res.Buckets {
		buckets = append(buckets, Bucket{
			Name:         b.Name,
			CreationDate: parseTimestamp(b.CreationDate),
		})
	}
	return buckets, nil
}

// ParseObjectList decodes a ListBucketResult document, dropping the entry
// whose key equals prefix (the directory marker of the listed folder).
func ParseObjectList(body []byte, prefix string) ([]ObjectEntry, error) {
	var res listBucketResult
	if err := decodeXML(body, &res); err != nil {
		return nil, parseFailure("ListObjects", err)
	}
	objects := make([]ObjectEntry, 0, len(res.Contents))
	for _, c := range res.Contents {
		if prefix != "" && c.Key == prefix {
			continue
		}
		objects = append(objects, ObjectEntry{
			Key:          c.Key,
			LastModified: parseTimestamp(c.LastModified),
			Size:         c.Size,
			StorageClass: c.StorageClass,
			ETag:         strings.Trim(c.ETag, `"`),
		})
	}
	return objects, nil
}

// ParseError decodes an <Error> document. Bodies that are empty, truncated,
// not XML, or carry no code come back as a ParseError document holding the
// raw body.
func ParseError(body []byte) ErrorDocument {
	var res errorResponse
	if err := decodeXML(body, &res); err != nil || res.Code == "" {
		return ErrorDocument{Code: CodeParseError, Message: strings.TrimSpace(string(body))}
	}
	return ErrorDocument{Code: res.Code, Message: res.Message}
}

func decodeXML(body []byte, v any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := xml.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode xml: %w", err)
	}
	return nil
}

// parseTimestamp accepts the ISO-8601 forms S3 and compatible stores emit and
// returns the zero time for anything else.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, time.RFC1123, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
