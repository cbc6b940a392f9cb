package domain

import "time"

// Item types in a file listing.
const (
	ItemTypeFile   = "file"
	ItemTypeFolder = "folder"
)

// FileItem is one row of a bucket browser listing
type FileItem struct {
	Name         string    `json:"name"`
	Key          string    `json:"key"`
	Type         string    `json:"type"`
	Size         uint64    `json:"size"`
	SizeHuman    string    `json:"size_formatted"`
	LastModified time.Time `json:"last_modified,omitempty"`
	MimeType     string    `json:"mime_type,omitempty"`
}

// FileListing groups a folder's sub-folders ahead of its files
type FileListing struct {
	Bucket  string     `json:"bucket"`
	Prefix  string     `json:"prefix"`
	Folders []FileItem `json:"folders"`
	Files   []FileItem `json:"files"`
}

// Items returns folders followed by files.
func (l FileListing) Items() []FileItem {
	items := make([]FileItem, 0, len(l.Folders)+len(l.Files))
	items = append(items, l.Folders...)
	return append(items, l.Files...)
}

// BucketStats summarises a bucket's contents
type BucketStats struct {
	Bucket         string `json:"bucket"`
	ObjectCount    int    `json:"object_count"`
	TotalSize      uint64 `json:"total_size"`
	TotalSizeHuman string `json:"total_size_formatted"`
}

// BackupRecord marks a local file as copied to the store
type BackupRecord struct {
	FilePath   string    `json:"file_path" db:"file_path"`
	S3Key      string    `json:"s3_key" db:"s3_key"`
	Bucket     string    `json:"bucket" db:"bucket"`
	FileSize   int64     `json:"file_size" db:"file_size"`
	BackedUpAt time.Time `json:"backed_up_at" db:"backed_up_at"`
}

// Backup activity statuses.
const (
	BackupStatusSuccess = "success"
	BackupStatusFailed  = "failed"
)

// BackupLogEntry is one line of the backup activity log
type BackupLogEntry struct {
	ID        int64     `json:"id" db:"id"`
	RunID     string    `json:"run_id" db:"run_id"`
	FilePath  string    `json:"file_path" db:"file_path"`
	S3Key     string    `json:"s3_key" db:"s3_key"`
	Status    string    `json:"status" db:"status"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BackupTotals is what the ledger knows about completed backups
type BackupTotals struct {
	Files int   `json:"files" db:"files"`
	Bytes int64 `json:"bytes" db:"bytes"`
}

// BackupStats compares local media with the ledger
type BackupStats struct {
	TotalFiles     int              `json:"total_files"`
	BackedUp       int              `json:"backed_up"`
	Pending        int              `json:"pending"`
	TotalSize      int64            `json:"total_size"`
	TotalSizeHuman string           `json:"total_size_formatted"`
	LastBackup     *time.Time       `json:"last_backup,omitempty"`
	Recent         []BackupLogEntry `json:"recent_activity"`
}

// BackupReport summarises one backup run
type BackupReport struct {
	RunID    string `json:"run_id"`
	Total    int    `json:"total"`
	Uploaded int    `json:"uploaded"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Message  string `json:"message"`
}

// BackupSettings controls automatic backups
type BackupSettings struct {
	AutoBackup  bool   `json:"auto_backup"`
	Schedule    string `json:"schedule"`
	CustomHours int    `json:"custom_hours"`
}
