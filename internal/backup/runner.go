package backup

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/s3master/internal/domain"
	"github.com/andresuchdata/s3master/internal/repository"
	"github.com/andresuchdata/s3master/internal/service"
	"github.com/andresuchdata/s3master/internal/settings"
	"github.com/andresuchdata/s3master/internal/storage"
)

const recentActivityLimit = 10

// Options tunes a Runner.
type Options struct {
	UploadsDir  string
	KeyPrefix   string
	Concurrency int
	MaxAttempts int
	Backoff     time.Duration
}

// Runner uploads media files through the file service and keeps the ledger.
type Runner struct {
	files    *service.FileService
	repo     repository.BackupRepository
	settings *settings.Settings
	opts     Options
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewRunner(files *service.FileService, repo repository.BackupRepository, st *settings.Settings, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	opts.KeyPrefix = strings.Trim(opts.KeyPrefix, "/")

	return &Runner{
		files:    files,
		repo:     repo,
		settings: st,
		opts:     opts,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func noDefaultBucket() error {
	return &storage.Error{Kind: storage.KindValidation, Op: "Backup", Message: "No default bucket configured"}
}

func (r *Runner) defaultBucket(ctx context.Context) (string, error) {
	bucket, err := r.settings.DefaultBucket(ctx)
	if err != nil {
		return "", fmt.Errorf("read default bucket: %w", err)
	}
	if bucket == "" {
		return "", noDefaultBucket()
	}
	return bucket, nil
}

// prefixFor maps a file's directory under the uploads root onto the key
// prefix, e.g. 2024/05/a.jpg -> wp-content/uploads/2024/05.
func (r *Runner) prefixFor(relPath string) string {
	dir := path.Dir(relPath)
	switch {
	case dir == ".":
		return r.opts.KeyPrefix
	case r.opts.KeyPrefix == "":
		return dir
	default:
		return r.opts.KeyPrefix + "/" + dir
	}
}

// BackupFile uploads one file given relative to the uploads directory and
// returns its object key.
func (r *Runner) BackupFile(ctx context.Context, relPath string) (string, error) {
	bucket, err := r.defaultBucket(ctx)
	if err != nil {
		return "", err
	}

	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(relPath, `/\`)))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", &storage.Error{Kind: storage.KindValidation, Op: "Backup", Message: "File path must stay inside the uploads directory"}
	}
	full := filepath.Join(r.opts.UploadsDir, clean)
	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", relPath, err)
	}
	if info.IsDir() {
		return "", &storage.Error{Kind: storage.KindValidation, Op: "Backup", Message: "File path points to a directory"}
	}

	return r.backupOne(ctx, uuid.NewString(), bucket, MediaFile{
		Path:    full,
		RelPath: filepath.ToSlash(clean),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	})
}

func (r *Runner) backupOne(ctx context.Context, runID, bucket string, f MediaFile) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		r.logActivity(ctx, domain.BackupLogEntry{RunID: runID, FilePath: f.RelPath, Status: domain.BackupStatusFailed, Message: err.Error()})
		return "", fmt.Errorf("read %s: %w", f.RelPath, err)
	}

	var key string
	for attempt := 1; ; attempt++ {
		key, err = r.files.UploadFile(ctx, bucket, r.prefixFor(f.RelPath), path.Base(f.RelPath), data)
		if err == nil || storage.KindOf(err) != storage.KindTransport || attempt >= r.opts.MaxAttempts {
			break
		}
		log.Warn().Err(err).Str("file", f.RelPath).Int("attempt", attempt).Msg("backup upload failed, retrying")
		if serr := r.sleep(ctx, time.Duration(attempt)*r.opts.Backoff); serr != nil {
			err = serr
			break
		}
	}
	if err != nil {
		log.Error().Err(err).Str("file", f.RelPath).Str("bucket", bucket).Msg("failed to backup file")
		r.logActivity(ctx, domain.BackupLogEntry{RunID: runID, FilePath: f.RelPath, Status: domain.BackupStatusFailed, Message: err.Error()})
		return "", err
	}

	if err := r.repo.RecordBackup(ctx, domain.BackupRecord{
		FilePath: f.RelPath,
		S3Key:    key,
		Bucket:   bucket,
		FileSize: int64(len(data)),
	}); err != nil {
		return key, fmt.Errorf("record backup of %s: %w", f.RelPath, err)
	}
	r.logActivity(ctx, domain.BackupLogEntry{RunID: runID, FilePath: f.RelPath, S3Key: key, Status: domain.BackupStatusSuccess})
	return key, nil
}

func (r *Runner) logActivity(ctx context.Context, entry domain.BackupLogEntry) {
	if err := r.repo.LogActivity(ctx, entry); err != nil {
		log.Warn().Err(err).Str("file", entry.FilePath).Msg("failed to log backup activity")
	}
}

// BackupAll uploads every media file, whether or not it was backed up before.
func (r *Runner) BackupAll(ctx context.Context) (*domain.BackupReport, error) {
	return r.run(ctx, false)
}

// BackupNew uploads media files missing from the ledger.
func (r *Runner) BackupNew(ctx context.Context) (*domain.BackupReport, error) {
	return r.run(ctx, true)
}

func (r *Runner) run(ctx context.Context, onlyNew bool) (*domain.BackupReport, error) {
	bucket, err := r.defaultBucket(ctx)
	if err != nil {
		return nil, err
	}
	files, err := ScanMedia(ctx, r.opts.UploadsDir)
	if err != nil {
		return nil, err
	}

	report := &domain.BackupReport{RunID: uuid.NewString(), Total: len(files)}
	pending := files
	if onlyNew {
		done, err := r.repo.BackedUpPaths(ctx)
		if err != nil {
			return nil, err
		}
		pending = make([]MediaFile, 0, len(files))
		for _, f := range files {
			if _, ok := done[f.RelPath]; ok {
				report.Skipped++
				continue
			}
			pending = append(pending, f)
		}
		if len(pending) == 0 {
			report.Message = "No new files to backup"
			return report, nil
		}
	}

	log.Info().Str("run_id", report.RunID).Int("files", len(pending)).Str("bucket", bucket).Msg("backup started")

	var uploaded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for _, f := range pending {
		f := f
		g.Go(func() error {
			if _, err := r.backupOne(gctx, report.RunID, bucket, f); err != nil {
				failed.Add(1)
				// Missing credentials fail every file the same way.
				if storage.KindOf(err) == storage.KindConfiguration {
					return err
				}
				return nil
			}
			uploaded.Add(1)
			return nil
		})
	}
	waitErr := g.Wait()

	report.Uploaded = int(uploaded.Load())
	report.Failed = int(failed.Load())
	if onlyNew {
		report.Message = fmt.Sprintf("Backup completed: %d new files uploaded, %d failed", report.Uploaded, report.Failed)
	} else {
		report.Message = fmt.Sprintf("Backup completed: %d successful, %d failed", report.Uploaded, report.Failed)
	}
	log.Info().Str("run_id", report.RunID).Int("uploaded", report.Uploaded).Int("failed", report.Failed).Msg("backup finished")

	if waitErr != nil {
		return report, waitErr
	}
	return report, nil
}

// Stats compares the uploads directory with the ledger.
func (r *Runner) Stats(ctx context.Context) (*domain.BackupStats, error) {
	totals, err := r.repo.Totals(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := r.repo.RecentActivity(ctx, recentActivityLimit)
	if err != nil {
		return nil, err
	}
	done, err := r.repo.BackedUpPaths(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.BackupStats{
		BackedUp:       totals.Files,
		TotalSize:      totals.Bytes,
		TotalSizeHuman: service.FormatBytes(uint64(max(totals.Bytes, 0))),
		Recent:         recent,
	}

	files, err := ScanMedia(ctx, r.opts.UploadsDir)
	if err != nil {
		log.Warn().Err(err).Msg("backup stats: local scan failed")
	}
	stats.TotalFiles = len(files)
	for _, f := range files {
		if _, ok := done[f.RelPath]; !ok {
			stats.Pending++
		}
	}

	last, err := r.settings.LastBackup(ctx)
	if err != nil {
		return nil, err
	}
	if !last.IsZero() {
		stats.LastBackup = &last
	}
	return stats, nil
}

// Clear forgets every backed-up file, the activity log and the last run.
func (r *Runner) Clear(ctx context.Context) error {
	if err := r.repo.Clear(ctx); err != nil {
		return err
	}
	return r.settings.ClearLastBackup(ctx)
}
