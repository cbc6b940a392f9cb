package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/s3master/internal/domain"
	"github.com/andresuchdata/s3master/internal/repository"
	"github.com/andresuchdata/s3master/internal/service"
	"github.com/andresuchdata/s3master/internal/settings"
	"github.com/andresuchdata/s3master/internal/storage"
	"github.com/andresuchdata/s3master/internal/storage/s3test"
)

var testCreds = storage.Credentials{AccessKeyID: "AKIDBACKUP", SecretAccessKey: "backup-secret", Region: "us-east-1"}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestScanMedia(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "2024/05/photo.jpg", "jpeg")
	writeFile(t, root, "notes.txt", "text")
	writeFile(t, root, "top.PNG", "png")

	files, err := ScanMedia(context.Background(), root)
	if err != nil {
		t.Fatalf("ScanMedia: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 media files, got %d: %+v", len(files), files)
	}
	if files[0].RelPath != "2024/05/photo.jpg" || files[1].RelPath != "top.PNG" {
		t.Fatalf("unexpected paths %q %q", files[0].RelPath, files[1].RelPath)
	}
	if files[0].Size != 4 {
		t.Fatalf("unexpected size %d", files[0].Size)
	}

	if _, err := ScanMedia(context.Background(), filepath.Join(root, "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestIsDue(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		bs   domain.BackupSettings
		last time.Time
		want bool
	}{
		{"disabled", domain.BackupSettings{AutoBackup: false, Schedule: ScheduleHourly}, time.Time{}, false},
		{"immediate", domain.BackupSettings{AutoBackup: true, Schedule: ScheduleImmediate}, time.Time{}, false},
		{"never ran", domain.BackupSettings{AutoBackup: true, Schedule: ScheduleDaily}, time.Time{}, true},
		{"hourly elapsed", domain.BackupSettings{AutoBackup: true, Schedule: ScheduleHourly}, now.Add(-time.Hour), true},
		{"hourly pending", domain.BackupSettings{AutoBackup: true, Schedule: ScheduleHourly}, now.Add(-59 * time.Minute), false},
		{"six hours", domain.BackupSettings{AutoBackup: true, Schedule: ScheduleSixHours}, now.Add(-5 * time.Hour), false},
		{"weekly", domain.BackupSettings{AutoBackup: true, Schedule: ScheduleWeekly}, now.Add(-8 * 24 * time.Hour), true},
		{"monthly", domain.BackupSettings{AutoBackup: true, Schedule: ScheduleMonthly}, now.Add(-29 * 24 * time.Hour), false},
		{"custom", domain.BackupSettings{AutoBackup: true, Schedule: ScheduleCustom, CustomHours: 3}, now.Add(-3 * time.Hour), true},
		{"custom zero hours", domain.BackupSettings{AutoBackup: true, Schedule: ScheduleCustom}, time.Time{}, false},
		{"unknown", domain.BackupSettings{AutoBackup: true, Schedule: "fortnightly"}, time.Time{}, false},
	}
	for _, tc := range cases {
		if got := IsDue(tc.bs, tc.last, now); got != tc.want {
			t.Errorf("%s: IsDue = %v, want %v", tc.name, got, tc.want)
		}
	}

	if err := ValidateSettings(domain.BackupSettings{Schedule: "fortnightly"}); err == nil {
		t.Fatal("expected unknown schedule to be rejected")
	}
	if err := ValidateSettings(settings.DefaultBackupSettings); err != nil {
		t.Fatalf("default settings rejected: %v", err)
	}
}

type runnerFixture struct {
	root     string
	srv      *s3test.Server
	repo     *repository.MemoryBackupRepository
	settings *settings.Settings
	runner   *Runner
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	srv := s3test.NewServer(testCreds)
	t.Cleanup(srv.Close)

	client, err := storage.NewRESTClient(storage.StaticCredentials(testCreds), storage.WithEndpoint(srv.URL()))
	if err != nil {
		t.Fatalf("NewRESTClient: %v", err)
	}
	ctx := context.Background()
	if err := client.CreateBucket(ctx, "site-backup", ""); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}

	st := settings.New(settings.NewMemoryStore())
	if err := st.SetDefaultBucket(ctx, "site-backup"); err != nil {
		t.Fatalf("SetDefaultBucket: %v", err)
	}

	root := t.TempDir()
	repo := repository.NewMemoryBackupRepository()
	runner := NewRunner(service.NewFileService(client, srv.URL()), repo, st, Options{
		UploadsDir: root,
		KeyPrefix:  "/wp-content/uploads/",
	})
	return &runnerFixture{root: root, srv: srv, repo: repo, settings: st, runner: runner}
}

func TestRunnerBackupFlow(t *testing.T) {
	t.Parallel()
	f := newRunnerFixture(t)
	ctx := context.Background()
	writeFile(t, f.root, "2024/05/photo.jpg", "jpeg-bytes")
	writeFile(t, f.root, "logo.png", "png")
	writeFile(t, f.root, "readme.txt", "skip me")

	report, err := f.runner.BackupNew(ctx)
	if err != nil {
		t.Fatalf("BackupNew: %v", err)
	}
	if report.Uploaded != 2 || report.Failed != 0 || report.Total != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Message != "Backup completed: 2 new files uploaded, 0 failed" {
		t.Fatalf("unexpected message %q", report.Message)
	}

	body, ctype, ok := f.srv.Object("site-backup", "wp-content/uploads/2024/05/photo.jpg")
	if !ok || string(body) != "jpeg-bytes" || ctype != "image/jpeg" {
		t.Fatalf("unexpected stored object ok=%v body=%q type=%q", ok, body, ctype)
	}
	if _, _, ok := f.srv.Object("site-backup", "wp-content/uploads/logo.png"); !ok {
		t.Fatal("expected top-level file under the key prefix")
	}

	report, err = f.runner.BackupNew(ctx)
	if err != nil {
		t.Fatalf("second BackupNew: %v", err)
	}
	if report.Message != "No new files to backup" || report.Skipped != 2 {
		t.Fatalf("unexpected second report %+v", report)
	}

	writeFile(t, f.root, "2024/06/clip.mp4", "video")
	stats, err := f.runner.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalFiles != 3 || stats.BackedUp != 2 || stats.Pending != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.TotalSize != int64(len("jpeg-bytes")+len("png")) {
		t.Fatalf("unexpected total size %d", stats.TotalSize)
	}
	if len(stats.Recent) != 2 || stats.Recent[0].Status != domain.BackupStatusSuccess {
		t.Fatalf("unexpected recent activity %+v", stats.Recent)
	}

	report, err = f.runner.BackupAll(ctx)
	if err != nil {
		t.Fatalf("BackupAll: %v", err)
	}
	if report.Message != "Backup completed: 3 successful, 0 failed" {
		t.Fatalf("unexpected message %q", report.Message)
	}

	if err := f.runner.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	stats, err = f.runner.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats after clear: %v", err)
	}
	if stats.BackedUp != 0 || stats.Pending != 3 || len(stats.Recent) != 0 {
		t.Fatalf("unexpected stats after clear %+v", stats)
	}
}

func TestRunnerBackupFile(t *testing.T) {
	t.Parallel()
	f := newRunnerFixture(t)
	ctx := context.Background()
	writeFile(t, f.root, "2024/07/My Photo.JPG", "jpeg")

	key, err := f.runner.BackupFile(ctx, "/2024/07/My Photo.JPG")
	if err != nil {
		t.Fatalf("BackupFile: %v", err)
	}
	if key != "wp-content/uploads/2024/07/My-Photo.JPG" {
		t.Fatalf("unexpected key %q", key)
	}
	if ok, _ := f.repo.IsBackedUp(ctx, "2024/07/My Photo.JPG"); !ok {
		t.Fatal("expected ledger entry")
	}

	if _, err := f.runner.BackupFile(ctx, "../outside.jpg"); storage.KindOf(err) != storage.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.runner.BackupFile(ctx, "2024"); storage.KindOf(err) != storage.KindValidation {
		t.Fatalf("expected validation error for directory, got %v", err)
	}
}

func TestRunnerNeedsDefaultBucket(t *testing.T) {
	t.Parallel()
	f := newRunnerFixture(t)
	ctx := context.Background()
	if err := f.settings.SetDefaultBucket(ctx, ""); err != nil {
		t.Fatalf("SetDefaultBucket: %v", err)
	}

	_, err := f.runner.BackupNew(ctx)
	if storage.KindOf(err) != storage.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	var se *storage.Error
	if !errors.As(err, &se) || se.Message != "No default bucket configured" {
		t.Fatalf("unexpected error %v", err)
	}
}

type flakyClient struct {
	storage.ObjectStoreClient

	mu       sync.Mutex
	failures int
	err      *storage.Error
	calls    int
}

func (c *flakyClient) PutObject(_ context.Context, _, key string, _ []byte, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failures != 0 {
		if c.failures > 0 {
			c.failures--
		}
		return "", c.err
	}
	return key, nil
}

func newFlakyRunner(t *testing.T, client *flakyClient, concurrency int) (*Runner, *[]time.Duration, string) {
	t.Helper()
	ctx := context.Background()
	st := settings.New(settings.NewMemoryStore())
	if err := st.SetDefaultBucket(ctx, "site-backup"); err != nil {
		t.Fatalf("SetDefaultBucket: %v", err)
	}
	root := t.TempDir()
	r := NewRunner(service.NewFileService(client, ""), repository.NewMemoryBackupRepository(), st, Options{
		UploadsDir:  root,
		Concurrency: concurrency,
		MaxAttempts: 3,
		Backoff:     time.Second,
	})
	var mu sync.Mutex
	var sleeps []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		sleeps = append(sleeps, d)
		return nil
	}
	return r, &sleeps, root
}

func TestRunnerRetriesTransportErrors(t *testing.T) {
	t.Parallel()
	client := &flakyClient{failures: 2, err: &storage.Error{Kind: storage.KindTransport, Op: "PutObject", Message: "connection reset"}}
	r, sleeps, root := newFlakyRunner(t, client, 1)
	writeFile(t, root, "a.jpg", "a")

	report, err := r.BackupNew(context.Background())
	if err != nil {
		t.Fatalf("BackupNew: %v", err)
	}
	if report.Uploaded != 1 || client.calls != 3 {
		t.Fatalf("expected success on third attempt, report=%+v calls=%d", report, client.calls)
	}
	if len(*sleeps) != 2 || (*sleeps)[0] != time.Second || (*sleeps)[1] != 2*time.Second {
		t.Fatalf("unexpected backoff %v", *sleeps)
	}
}

func TestRunnerDoesNotRetryRemoteErrors(t *testing.T) {
	t.Parallel()
	client := &flakyClient{failures: -1, err: &storage.Error{Kind: storage.KindRemote, Op: "PutObject", Code: "AccessDenied", StatusCode: 403, Message: "Access Denied"}}
	r, sleeps, root := newFlakyRunner(t, client, 2)
	writeFile(t, root, "a.jpg", "a")
	writeFile(t, root, "b.jpg", "b")

	report, err := r.BackupAll(context.Background())
	if err != nil {
		t.Fatalf("BackupAll: %v", err)
	}
	if report.Failed != 2 || report.Uploaded != 0 || client.calls != 2 || len(*sleeps) != 0 {
		t.Fatalf("unexpected report=%+v calls=%d sleeps=%v", report, client.calls, *sleeps)
	}
	if report.Message != "Backup completed: 0 successful, 2 failed" {
		t.Fatalf("unexpected message %q", report.Message)
	}
}

func TestRunnerStopsOnMissingCredentials(t *testing.T) {
	t.Parallel()
	client := &flakyClient{failures: -1, err: &storage.Error{Kind: storage.KindConfiguration, Op: "PutObject", Message: "S3 credentials not configured"}}
	r, _, root := newFlakyRunner(t, client, 1)
	writeFile(t, root, "a.jpg", "a")

	report, err := r.BackupNew(context.Background())
	if storage.KindOf(err) != storage.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if report == nil || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestSchedulerCheck(t *testing.T) {
	t.Parallel()
	f := newRunnerFixture(t)
	ctx := context.Background()
	writeFile(t, f.root, "a.jpg", "a")

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(f.runner, f.settings, time.Minute)
	s.now = func() time.Time { return now }

	report, err := s.Check(ctx)
	if err != nil || report != nil {
		t.Fatalf("expected nothing to run with auto backup off, got %+v %v", report, err)
	}

	if err := f.settings.SaveBackupSettings(ctx, domain.BackupSettings{AutoBackup: true, Schedule: ScheduleHourly}); err != nil {
		t.Fatalf("SaveBackupSettings: %v", err)
	}
	report, err = s.Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report == nil || report.Uploaded != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	last, err := f.settings.LastBackup(ctx)
	if err != nil || !last.Equal(now) {
		t.Fatalf("unexpected last backup %v err=%v", last, err)
	}

	recent, _ := f.repo.RecentActivity(ctx, 1)
	if len(recent) != 1 || recent[0].FilePath != "scheduled_backup" || recent[0].Status != domain.BackupStatusSuccess {
		t.Fatalf("unexpected activity %+v", recent)
	}

	report, err = s.Check(ctx)
	if err != nil || report != nil {
		t.Fatalf("expected no run within the hour, got %+v %v", report, err)
	}

	now = now.Add(time.Hour)
	if report, err = s.Check(ctx); err != nil || report == nil || report.Message != "No new files to backup" {
		t.Fatalf("unexpected hourly report %+v %v", report, err)
	}
}

func TestSchedulerRetriesAbortedRun(t *testing.T) {
	t.Parallel()
	f := newRunnerFixture(t)
	ctx := context.Background()
	writeFile(t, f.root, "a.jpg", "a")

	if err := f.settings.SaveBackupSettings(ctx, domain.BackupSettings{AutoBackup: true, Schedule: ScheduleHourly}); err != nil {
		t.Fatalf("SaveBackupSettings: %v", err)
	}
	if err := f.settings.SetDefaultBucket(ctx, ""); err != nil {
		t.Fatalf("SetDefaultBucket: %v", err)
	}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(f.runner, f.settings, time.Minute)
	s.now = func() time.Time { return now }

	if _, err := s.Check(ctx); storage.KindOf(err) != storage.KindValidation {
		t.Fatalf("expected missing bucket to fail the run, got %v", err)
	}
	if last, err := f.settings.LastBackup(ctx); err != nil || !last.IsZero() {
		t.Fatalf("aborted run must not be stamped, got %v err=%v", last, err)
	}
	recent, _ := f.repo.RecentActivity(ctx, 1)
	if len(recent) != 1 || recent[0].Status != domain.BackupStatusFailed {
		t.Fatalf("expected failed scheduled activity, got %+v", recent)
	}

	if err := f.settings.SetDefaultBucket(ctx, "site-backup"); err != nil {
		t.Fatalf("SetDefaultBucket: %v", err)
	}
	now = now.Add(time.Minute)
	report, err := s.Check(ctx)
	if err != nil || report == nil || report.Uploaded != 1 {
		t.Fatalf("expected the next tick to run, got %+v %v", report, err)
	}
	if last, _ := f.settings.LastBackup(ctx); !last.Equal(now) {
		t.Fatalf("unexpected last backup %v", last)
	}
}
