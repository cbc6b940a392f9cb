package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/s3master/internal/backup"
	"github.com/andresuchdata/s3master/internal/config"
	"github.com/andresuchdata/s3master/internal/domain"
	"github.com/andresuchdata/s3master/internal/repository"
	"github.com/andresuchdata/s3master/internal/repository/postgres"
	"github.com/andresuchdata/s3master/internal/service"
	"github.com/andresuchdata/s3master/internal/settings"
	"github.com/andresuchdata/s3master/internal/storage"
	"github.com/andresuchdata/s3master/pkg/logger"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "S3 endpoint URL",
			Value:   storage.DefaultEndpoint,
			EnvVars: []string{"S3_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "access-key",
			Usage:   "Access key ID",
			EnvVars: []string{"S3_ACCESS_KEY_ID"},
		},
		&cli.StringFlag{
			Name:    "secret-key",
			Usage:   "Secret access key",
			EnvVars: []string{"S3_SECRET_ACCESS_KEY"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "Default region",
			Value:   storage.DefaultRegion,
			EnvVars: []string{"S3_REGION"},
		},
		&cli.StringFlag{
			Name:    "mode",
			Usage:   "Client implementation: manual (signature v2) or sdk (minio-go)",
			Value:   config.ClientModeManual,
			EnvVars: []string{"S3_CLIENT_MODE"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "warn",
			EnvVars: []string{"LOG_LEVEL"},
		},
	}
}

func newClient(c *cli.Context) (storage.ObjectStoreClient, error) {
	creds := storage.StaticCredentials(storage.Credentials{
		AccessKeyID:     c.String("access-key"),
		SecretAccessKey: c.String("secret-key"),
		Region:          c.String("region"),
	})
	switch c.String("mode") {
	case config.ClientModeSDK:
		return storage.NewSDKClient(creds, storage.SDKConfig{Endpoint: c.String("endpoint"), UseSSL: true})
	case config.ClientModeManual:
		return storage.NewRESTClient(creds, storage.WithEndpoint(c.String("endpoint")))
	default:
		return nil, fmt.Errorf("unknown client mode %q", c.String("mode"))
	}
}

func newTable(c *cli.Context) *tabwriter.Writer {
	return tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
}

func listRegions(c *cli.Context) error {
	w := newTable(c)
	for _, r := range storage.Regions {
		fmt.Fprintf(w, "%s\t%s\n", r.Code, r.Name)
	}
	return w.Flush()
}

func listBuckets(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	buckets, err := client.ListBuckets(c.Context)
	if err != nil {
		return err
	}
	w := newTable(c)
	for _, b := range buckets {
		fmt.Fprintf(w, "%s\t%s\n", b.Name, b.CreationDate.Format(time.RFC3339))
	}
	return w.Flush()
}

func createBucket(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: s3ctl buckets create NAME", 2)
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	region := c.String("bucket-region")
	if region == "" {
		region = c.String("region")
	}
	if err := client.CreateBucket(c.Context, c.Args().First(), region); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "created %s in %s\n", c.Args().First(), region)
	return nil
}

func deleteBucket(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: s3ctl buckets delete NAME", 2)
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	if err := client.DeleteBucket(c.Context, c.Args().First()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", c.Args().First())
	return nil
}

func listObjects(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: s3ctl objects list BUCKET [--prefix P]", 2)
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	objects, err := client.ListObjects(c.Context, c.Args().First(), c.String("prefix"))
	if err != nil {
		return err
	}
	w := newTable(c)
	for _, o := range objects {
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.Key, service.FormatBytes(o.Size), o.LastModified.Format(time.RFC3339))
	}
	return w.Flush()
}

func putObject(c *cli.Context) error {
	if c.NArg() != 3 {
		return cli.Exit("usage: s3ctl objects put BUCKET KEY FILE", 2)
	}
	bucket, key, file := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	contentType := c.String("content-type")
	if contentType == "" {
		contentType = service.MimeType(file, data)
	}
	stored, err := client.PutObject(c.Context, bucket, key, data, contentType)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "uploaded %s (%s, %s)\n", stored, contentType, service.FormatBytes(uint64(len(data))))
	return nil
}

func getObject(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: s3ctl objects get BUCKET KEY [--out FILE]", 2)
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	obj, err := client.GetObject(c.Context, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	if out := c.String("out"); out != "" {
		return os.WriteFile(out, obj.Body, 0o644)
	}
	_, err = c.App.Writer.Write(obj.Body)
	return err
}

func deleteObject(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: s3ctl objects delete BUCKET KEY", 2)
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	if err := client.DeleteObject(c.Context, c.Args().Get(0), c.Args().Get(1)); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", c.Args().Get(1))
	return nil
}

func runBackup(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}

	var repo repository.BackupRepository = repository.NewMemoryBackupRepository()
	if dbURL := c.String("db-url"); dbURL != "" {
		db, err := postgres.OpenURL(dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		pg := postgres.NewBackupRepository(db)
		if err := pg.EnsureSchema(c.Context); err != nil {
			return err
		}
		repo = pg
	}

	st := settings.New(settings.NewMemoryStore())
	if err := st.SetDefaultBucket(c.Context, c.String("bucket")); err != nil {
		return err
	}
	runner := backup.NewRunner(service.NewFileService(client, c.String("endpoint")), repo, st, backup.Options{
		UploadsDir:  c.String("uploads-dir"),
		KeyPrefix:   c.String("key-prefix"),
		Concurrency: c.Int("concurrency"),
		MaxAttempts: c.Int("max-attempts"),
	})

	var report *domain.BackupReport
	if c.Bool("all") {
		report, err = runner.BackupAll(c.Context)
	} else {
		report, err = runner.BackupNew(c.Context)
	}
	if report != nil {
		fmt.Fprintln(c.App.Writer, report.Message)
	}
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d files failed", report.Failed), 1)
	}
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}

	app := &cli.App{
		Name:  "s3ctl",
		Usage: "Manage buckets, objects and media backups from the command line",
		Flags: globalFlags(),
		Before: func(c *cli.Context) error {
			logger.SetLevel(c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "regions",
				Usage:  "List supported regions",
				Action: listRegions,
			},
			{
				Name:  "buckets",
				Usage: "Bucket operations",
				Subcommands: []*cli.Command{
					{Name: "list", Usage: "List buckets", Action: listBuckets},
					{
						Name:  "create",
						Usage: "Create a bucket",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "bucket-region", Usage: "Region for the new bucket (defaults to --region)"},
						},
						Action: createBucket,
					},
					{Name: "delete", Usage: "Delete an empty bucket", Action: deleteBucket},
				},
			},
			{
				Name:  "objects",
				Usage: "Object operations",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List objects",
						Flags:  []cli.Flag{&cli.StringFlag{Name: "prefix"}},
						Action: listObjects,
					},
					{
						Name:   "put",
						Usage:  "Upload a file",
						Flags:  []cli.Flag{&cli.StringFlag{Name: "content-type"}},
						Action: putObject,
					},
					{
						Name:   "get",
						Usage:  "Download an object",
						Flags:  []cli.Flag{&cli.StringFlag{Name: "out", Aliases: []string{"o"}}},
						Action: getObject,
					},
					{Name: "delete", Usage: "Delete an object", Action: deleteObject},
				},
			},
			{
				Name:  "backup",
				Usage: "Back up a media directory into a bucket",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "bucket", Required: true, EnvVars: []string{"BACKUP_BUCKET"}},
					&cli.StringFlag{Name: "uploads-dir", Value: "./data/uploads", EnvVars: []string{"BACKUP_UPLOADS_DIR"}},
					&cli.StringFlag{Name: "key-prefix", Value: "wp-content/uploads", EnvVars: []string{"BACKUP_KEY_PREFIX"}},
					&cli.IntFlag{Name: "concurrency", Value: 4, EnvVars: []string{"BACKUP_CONCURRENCY"}},
					&cli.IntFlag{Name: "max-attempts", Value: 3, EnvVars: []string{"BACKUP_MAX_ATTEMPTS"}},
					&cli.BoolFlag{Name: "all", Usage: "Upload every file, not only new ones"},
					&cli.StringFlag{
						Name:    "db-url",
						Usage:   "Postgres URL for a persistent backup ledger",
						EnvVars: []string{"DATABASE_URL"},
					},
				},
				Action: runBackup,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
