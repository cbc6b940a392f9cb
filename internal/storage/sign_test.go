package storage

import "testing"

func TestSignMatchesPublishedExample(t *testing.T) {
	t.Parallel()
	sts := NewStringToSign("GET", "/johnsmith/photos/puppy.jpg", "", nil, "Tue, 27 Mar 2007 19:36:42 +0000")
	if got, want := sts.String(), "GET\n\n\nTue, 27 Mar 2007 19:36:42 +0000\n/johnsmith/photos/puppy.jpg"; got != want {
		t.Fatalf("unexpected string to sign: %q", got)
	}
	sig := Sign("wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY", sts)
	if sig != "bWq2s1WEIj+Ydj0vQ697zp+IXMU=" {
		t.Fatalf("unexpected signature: %q", sig)
	}
}

func TestSignIsDeterministic(t *testing.T) {
	t.Parallel()
	sts := NewStringToSign("PUT", "/bucket/key.txt", "text/plain", []byte("hello"), "Mon, 02 Jan 2006 15:04:05 GMT")
	if Sign("secret", sts) != Sign("secret", sts) {
		t.Fatal("expected identical signatures for identical input")
	}
}

func TestSignChangesWithEveryInput(t *testing.T) {
	t.Parallel()
	base := NewStringToSign("PUT", "/bucket/key.txt", "text/plain", []byte("hello"), "Mon, 02 Jan 2006 15:04:05 GMT")
	want := Sign("secret", base)

	variants := map[string]StringToSign{
		"method":   NewStringToSign("POST", "/bucket/key.txt", "text/plain", []byte("hello"), "Mon, 02 Jan 2006 15:04:05 GMT"),
		"resource": NewStringToSign("PUT", "/bucket/other.txt", "text/plain", []byte("hello"), "Mon, 02 Jan 2006 15:04:05 GMT"),
		"type":     NewStringToSign("PUT", "/bucket/key.txt", "image/png", []byte("hello"), "Mon, 02 Jan 2006 15:04:05 GMT"),
		"date":     NewStringToSign("PUT", "/bucket/key.txt", "text/plain", []byte("hello"), "Mon, 02 Jan 2006 15:04:06 GMT"),
	}
	for name, sts := range variants {
		if Sign("secret", sts) == want {
			t.Fatalf("changing %s did not change the signature", name)
		}
	}
	if Sign("other-secret", base) == want {
		t.Fatal("changing the secret did not change the signature")
	}
}

func TestStringToSignDropsContentTypeForEmptyBody(t *testing.T) {
	t.Parallel()
	sts := NewStringToSign("delete", "/bucket", "application/xml", nil, "d")
	if sts.ContentType != "" {
		t.Fatalf("expected empty content type, got %q", sts.ContentType)
	}
	if sts.Method != "DELETE" {
		t.Fatalf("expected upper-cased method, got %q", sts.Method)
	}
	if got := sts.String(); got != "DELETE\n\n\nd\n/bucket" {
		t.Fatalf("unexpected string to sign: %q", got)
	}
}

func TestAuthorizationHeader(t *testing.T) {
	t.Parallel()
	if got := AuthorizationHeader("AKID", "c2ln"); got != "AWS AKID:c2ln" {
		t.Fatalf("unexpected header: %q", got)
	}
}
