package storage

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strings"
)

// StringToSign is the canonical request of the legacy (v2) signing scheme.
type StringToSign struct {
	Method      string
	ContentMD5  string
	ContentType string
	Date        string
	Resource    string
}

// NewStringToSign builds the canonical request for one outgoing call. The
// Content-Type line is empty whenever the body is, and Content-MD5 is never
// sent by this client.
func NewStringToSign(method, resource, contentType string, body []byte, date string) StringToSign {
	if len(body) == 0 {
		contentType = ""
	}
	return StringToSign{
		Method:      strings.ToUpper(method),
		ContentType: contentType,
		Date:        date,
		Resource:    resource,
	}
}

func (s StringToSign) String() string {
	var b strings.Builder
	b.WriteString(s.Method)
	b.WriteByte('\n')
	b.WriteString(s.ContentMD5)
	b.WriteByte('\n')
	b.WriteString(s.ContentType)
	b.WriteByte('\n')
	b.WriteString(s.Date)
	b.WriteByte('\n')
	b.WriteString(s.Resource)
	return b.String()
}

// Sign returns base64(HMAC-SHA1(secret, sts)).
func Sign(secret string, sts StringToSign) string {
	h := hmac.New(sha1.New, []byte(secret))
	h.Write([]byte(sts.String()))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// AuthorizationHeader formats the Authorization value for a signature.
func AuthorizationHeader(accessKeyID, signature string) string {
	return "AWS " + accessKeyID + ":" + signature
}
