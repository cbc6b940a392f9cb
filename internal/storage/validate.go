package storage

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrEmptyBucketName   = errors.New("bucket name is empty")
	ErrInvalidBucketName = errors.New("invalid bucket name")
	ErrEmptyKey          = errors.New("object key is empty")
)

// userMessages holds the text shown to admins for each validation error.
var userMessages = map[error]string{
	ErrEmptyBucketName:   "Bucket name cannot be empty",
	ErrInvalidBucketName: "Invalid bucket name. Bucket names must be between 3-63 characters, contain only lowercase letters, numbers, dots, and hyphens.",
	ErrEmptyKey:          "File key cannot be empty",
}

// UserMessage returns the display text for a validation error, or
// err.Error() for anything else.
func UserMessage(err error) string {
	for sentinel, msg := range userMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return err.Error()
}

var (
	bucketCharsPattern = regexp.MustCompile(`^[a-z0-9.-]+$`)
	ipv4Pattern        = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// ValidateBucketName applies the bucket naming rules: 3-63 characters of
// lowercase letters, digits, dots and hyphens, alphanumeric at both ends, no
// consecutive dots and not shaped like an IPv4 address.
func ValidateBucketName(name string) error {
	if name == "" {
		return ErrEmptyBucketName
	}
	if len(name) < 3 || len(name) > 63 {
		return ErrInvalidBucketName
	}
	if !bucketCharsPattern.MatchString(name) {
		return ErrInvalidBucketName
	}
	if strings.Contains(name, "..") {
		return ErrInvalidBucketName
	}
	if !isAlnum(name[0]) || !isAlnum(name[len(name)-1]) {
		return ErrInvalidBucketName
	}
	if ipv4Pattern.MatchString(name) {
		return ErrInvalidBucketName
	}
	return nil
}

// ValidateKey rejects empty object keys.
func ValidateKey(key string) error {
	if strings.TrimLeft(key, "/") == "" {
		return ErrEmptyKey
	}
	return nil
}

func isAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('0' <= c && c <= '9')
}
