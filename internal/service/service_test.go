package service

import (
	"context"
	"strings"
	"testing"

	"github.com/andresuchdata/s3master/internal/domain"
	"github.com/andresuchdata/s3master/internal/settings"
	"github.com/andresuchdata/s3master/internal/storage"
	"github.com/andresuchdata/s3master/internal/storage/s3test"
)

var testCreds = storage.Credentials{AccessKeyID: "AKIDTEST", SecretAccessKey: "test-secret", Region: "eu-west-1"}

type fixture struct {
	srv      *s3test.Server
	client   *storage.RESTClient
	settings *settings.Settings
	buckets  *BucketService
	files    *FileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := s3test.NewServer(testCreds)
	t.Cleanup(srv.Close)

	creds := storage.StaticCredentials(testCreds)
	client, err := storage.NewRESTClient(creds, storage.WithEndpoint(srv.URL()))
	if err != nil {
		t.Fatalf("NewRESTClient: %v", err)
	}
	st := settings.New(settings.NewMemoryStore())
	return &fixture{
		srv:      srv,
		client:   client,
		settings: st,
		buckets:  NewBucketService(client, creds, st),
		files:    NewFileService(client, srv.URL()),
	}
}

func TestBucketServiceLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if err := f.buckets.CreateBucket(ctx, " site-media ", "eu-west-1"); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	if ok, err := f.buckets.BucketExists(ctx, "site-media"); err != nil || !ok {
		t.Fatalf("expected bucket to exist: %v %v", ok, err)
	}
	if ok, _ := f.buckets.BucketExists(ctx, "other-bucket"); ok {
		t.Fatal("unexpected bucket")
	}
	if loc, err := f.buckets.BucketLocation(ctx, "site-media"); err != nil || loc != "eu-west-1" {
		t.Fatalf("unexpected location %q err=%v", loc, err)
	}
	if n, err := f.buckets.TestConnection(ctx); err != nil || n != 1 {
		t.Fatalf("unexpected connection test: %d %v", n, err)
	}

	if err := f.buckets.SetDefaultBucket(ctx, "missing-bucket"); storage.KindOf(err) != storage.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := f.buckets.SetDefaultBucket(ctx, "site-media"); err != nil {
		t.Fatalf("SetDefaultBucket: %v", err)
	}
	if b, _ := f.buckets.DefaultBucket(ctx); b != "site-media" {
		t.Fatalf("unexpected default %q", b)
	}

	if err := f.buckets.DeleteBucket(ctx, "site-media"); err != nil {
		t.Fatalf("DeleteBucket: %v", err)
	}
	if b, _ := f.buckets.DefaultBucket(ctx); b != "" {
		t.Fatalf("expected default cleared, got %q", b)
	}
}

func TestBucketServiceRejectsBadInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if err := f.buckets.CreateBucket(ctx, "", ""); err == nil || err.Error() != "Bucket name cannot be empty" {
		t.Fatalf("expected empty name error, got %v", err)
	}
	if err := f.buckets.CreateBucket(ctx, "fine-name", "moon-1"); storage.KindOf(err) != storage.KindValidation {
		t.Fatalf("expected region error, got %v", err)
	}
	if len(f.srv.Requests()) != 0 {
		t.Fatal("expected no requests for rejected input")
	}
}

func TestBucketStats(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_ = f.buckets.CreateBucket(ctx, "stats-bucket", "")
	_, _ = f.client.PutObject(ctx, "stats-bucket", "a.txt", []byte(strings.Repeat("a", 1024)), "")
	_, _ = f.client.PutObject(ctx, "stats-bucket", "dir/b.txt", []byte(strings.Repeat("b", 1024)), "")

	stats, err := f.buckets.BucketStats(ctx, "stats-bucket")
	if err != nil {
		t.Fatalf("BucketStats: %v", err)
	}
	if stats.ObjectCount != 2 || stats.TotalSize != 2048 || stats.TotalSizeHuman != "2.0 KiB" {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestFileServiceListing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_ = f.buckets.CreateBucket(ctx, "browse", "")
	for _, key := range []string{"uploads/zeta/", "uploads/alpha/one.jpg", "uploads/alpha/two.jpg", "uploads/readme.txt", "other/skip.txt"} {
		if _, err := f.client.PutObject(ctx, "browse", key, []byte("x"), ""); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}

	listing, err := f.files.ListFiles(ctx, "browse", "/uploads")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if listing.Prefix != "uploads/" {
		t.Fatalf("unexpected prefix %q", listing.Prefix)
	}
	if len(listing.Folders) != 2 || listing.Folders[0].Name != "alpha" || listing.Folders[1].Name != "zeta" {
		t.Fatalf("unexpected folders: %+v", listing.Folders)
	}
	if listing.Folders[0].Key != "uploads/alpha/" || listing.Folders[0].Type != domain.ItemTypeFolder {
		t.Fatalf("unexpected folder item: %+v", listing.Folders[0])
	}
	if len(listing.Files) != 1 || listing.Files[0].Name != "readme.txt" || listing.Files[0].MimeType != "text/plain" {
		t.Fatalf("unexpected files: %+v", listing.Files)
	}
	items := listing.Items()
	if len(items) != 3 || items[0].Type != domain.ItemTypeFolder || items[2].Type != domain.ItemTypeFile {
		t.Fatalf("expected folders before files: %+v", items)
	}
}

func TestFileServiceUploadRenameDelete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	_ = f.buckets.CreateBucket(ctx, "files", "")

	key, err := f.files.UploadFile(ctx, "files", "photos", "My Holiday (1).JPG", []byte("jpegdata"))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if key != "photos/My-Holiday-1.JPG" {
		t.Fatalf("unexpected key %q", key)
	}
	if _, ctype, _ := f.srv.Object("files", key); ctype != "image/jpeg" {
		t.Fatalf("unexpected content type %q", ctype)
	}

	newKey, err := f.files.RenameFile(ctx, "files", key, "beach.jpg")
	if err != nil {
		t.Fatalf("RenameFile: %v", err)
	}
	if newKey != "photos/beach.jpg" {
		t.Fatalf("unexpected new key %q", newKey)
	}
	if _, _, ok := f.srv.Object("files", key); ok {
		t.Fatal("old key still present after rename")
	}
	if body, _, ok := f.srv.Object("files", newKey); !ok || string(body) != "jpegdata" {
		t.Fatalf("renamed object missing or changed: %q", body)
	}

	if err := f.files.DeleteFile(ctx, "files", newKey); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, _, ok := f.srv.Object("files", newKey); ok {
		t.Fatal("object still present after delete")
	}
}

func TestFileServiceCreateFolder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	_ = f.buckets.CreateBucket(ctx, "folders", "")

	key, err := f.files.CreateFolder(ctx, "folders", "2024", "new folder")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if key != "2024/new-folder/" {
		t.Fatalf("unexpected folder key %q", key)
	}
	listing, err := f.files.ListFiles(ctx, "folders", "2024")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(listing.Folders) != 1 || listing.Folders[0].Name != "new-folder" {
		t.Fatalf("unexpected listing: %+v", listing)
	}
	if _, err := f.files.CreateFolder(ctx, "folders", "", "  "); storage.KindOf(err) != storage.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFileURL(t *testing.T) {
	t.Parallel()
	files := NewFileService(nil, "")
	url, err := files.FileURL("media", "/dir/a b.png")
	if err != nil {
		t.Fatalf("FileURL: %v", err)
	}
	if url != "https://s3.amazonaws.com/media/dir/a%20b.png" {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := files.FileURL("media", ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestMimeTypeAndSanitize(t *testing.T) {
	t.Parallel()
	if got := MimeType("REPORT.PDF", nil); got != "application/pdf" {
		t.Fatalf("unexpected mime %q", got)
	}
	if got := MimeType("unknown.bin", nil); got != "application/octet-stream" {
		t.Fatalf("unexpected fallback %q", got)
	}
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if got := MimeType("noext", png); got != "image/png" {
		t.Fatalf("expected sniffed png, got %q", got)
	}

	cases := map[string]string{
		"../../etc/passwd":   "passwd",
		"  spaced  name.txt": "spaced-name.txt",
		`C:\Users\me\a.doc`:  "a.doc",
		"--weird__.":         "weird",
		"/":                  "",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
