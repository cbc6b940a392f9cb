package storage

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an operation failed.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindConfiguration means credentials are missing; no request was sent.
	KindConfiguration
	// KindValidation means a bucket name or key was rejected locally.
	KindValidation
	// KindTransport means no HTTP status was obtained (DNS, TCP, TLS, timeout).
	KindTransport
	// KindRemote means the store answered with a non-success status or a body
	// that could not be parsed.
	KindRemote
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Well-known remote error codes.
const (
	CodeParseError          = "ParseError"
	CodeBucketAlreadyExists = "BucketAlreadyExists"
	CodeInvalidBucketName   = "InvalidBucketName"
	CodeNoSuchBucket        = "NoSuchBucket"
	CodeNoSuchKey           = "NoSuchKey"
)

var friendlyMessages = map[string]string{
	CodeBucketAlreadyExists: "This bucket name is already taken. Please choose a different name.",
	CodeInvalidBucketName:   "Invalid bucket name. Bucket names must be between 3-63 characters and can only contain lowercase letters, numbers, dots, and hyphens.",
}

// Error is the failure arm of every ObjectStoreClient operation.
type Error struct {
	Kind       ErrorKind
	Op         string
	Code       string
	Message    string
	StatusCode int
	Err        error
}

// Error renders a single line suitable for showing to an operator.
func (e *Error) Error() string {
	if e.Kind == KindRemote && e.Code != "" {
		if _, ok := friendlyMessages[e.Code]; ok {
			return e.Message
		}
		return e.Code + ": " + e.Message
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a *Error anywhere in err's chain.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// CodeOf returns the remote error code of err, if any.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func configurationError(op string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Op:      op,
		Message: "AWS credentials are not configured.",
	}
}

func validationError(op string, err error) *Error {
	return &Error{
		Kind:    KindValidation,
		Op:      op,
		Message: UserMessage(err),
		Err:     err,
	}
}

func transportError(op string, err error) *Error {
	return &Error{
		Kind:    KindTransport,
		Op:      op,
		Message: fmt.Sprintf("request failed: %v", err),
		Err:     err,
	}
}

func parseFailure(op string, err error) *Error {
	return &Error{
		Kind:    KindRemote,
		Op:      op,
		Code:    CodeParseError,
		Message: "Failed to parse response",
		Err:     err,
	}
}

// remoteError maps a parsed <Error> document to a *Error, replacing the
// message of well-known codes with stable text.
func remoteError(op string, status int, doc ErrorDocument) *Error {
	msg := doc.Message
	if friendly, ok := friendlyMessages[doc.Code]; ok {
		msg = friendly
	}
	return &Error{
		Kind:       KindRemote,
		Op:         op,
		Code:       doc.Code,
		Message:    msg,
		StatusCode: status,
	}
}
