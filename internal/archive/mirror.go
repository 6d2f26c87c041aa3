package archive

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sourcegraph/conc/pool"

	"github.com/westberg-lab/foldrun/internal/logging"
)

// Uploader stores one local file under an object key.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}

// Preparer is implemented by uploaders whose destination must be set up
// before the first upload. Mirror calls Prepare once, on first use.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// RemoteConfig configures the S3-compatible archive mirror.
type RemoteConfig struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Validate checks the remote configuration.
func (c RemoteConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("bucket is required")
	}
	return nil
}

// MinIOUploader uploads files with a minio client.
type MinIOUploader struct {
	client *minio.Client
	bucket string
	region string
}

// NewMinIOUploader creates an uploader for cfg.
func NewMinIOUploader(cfg RemoteConfig) (*MinIOUploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOUploader{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Prepare creates the bucket when it does not exist.
func (u *MinIOUploader) Prepare(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", u.bucket, err)
	}
	return nil
}

// Upload implements Uploader.
func (u *MinIOUploader) Upload(ctx context.Context, localPath, key string) error {
	_, err := u.client.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{})
	return err
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Mirror copies an archive directory to remote storage with bounded
// parallelism.
type Mirror struct {
	uploader    Uploader
	prefix      string
	concurrency int
	logger      *logging.Logger

	prepareOnce sync.Once
	prepareErr  error
}

// NewMirror creates a Mirror. Object keys are <prefix>/<archive name>/<relative path>.
func NewMirror(uploader Uploader, prefix string, concurrency int, logger *logging.Logger) *Mirror {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Mirror{uploader: uploader, prefix: strings.Trim(prefix, "/"), concurrency: concurrency, logger: logger}
}

// prepare sets up the remote destination once per Mirror.
func (m *Mirror) prepare(ctx context.Context) error {
	p, ok := m.uploader.(Preparer)
	if !ok {
		return nil
	}
	m.prepareOnce.Do(func() {
		m.prepareErr = p.Prepare(ctx)
	})
	return m.prepareErr
}

// Sync uploads every file under localDir and returns the number uploaded.
// The first upload error cancels the remaining uploads.
func (m *Mirror) Sync(ctx context.Context, localDir, name string) (int, error) {
	if err := m.prepare(ctx); err != nil {
		return 0, fmt.Errorf("prepare remote storage: %w", err)
	}

	var files []string
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", localDir, err)
	}

	keys := make([]string, len(files))
	for i, file := range files {
		rel, err := filepath.Rel(localDir, file)
		if err != nil {
			return 0, fmt.Errorf("relative path of %s: %w", file, err)
		}
		keys[i] = m.key(name, rel)
	}

	// Keys are resolved before any upload starts so every started upload is
	// waited on.
	uploaded := make([]bool, len(files))
	p := pool.New().WithMaxGoroutines(m.concurrency).WithContext(ctx).WithCancelOnError()
	for i, file := range files {
		key := keys[i]
		p.Go(func(ctx context.Context) error {
			if err := m.uploader.Upload(ctx, file, key); err != nil {
				return fmt.Errorf("upload %s: %w", key, err)
			}
			uploaded[i] = true
			m.logger.Debug("uploaded archive file", "key", key)
			return nil
		})
	}
	err = p.Wait()

	n := 0
	for _, ok := range uploaded {
		if ok {
			n++
		}
	}
	return n, err
}

func (m *Mirror) key(name, rel string) string {
	parts := []string{name, filepath.ToSlash(rel)}
	if m.prefix != "" {
		parts = append([]string{m.prefix}, parts...)
	}
	return path.Join(parts...)
}
