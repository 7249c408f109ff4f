package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/YuminosukeSato/housingrf/pkg/errors"
	"github.com/YuminosukeSato/housingrf/pkg/log"
)

const (
	// ArchiveURL is the public location of the California Housing archive.
	ArchiveURL = "https://ndownloader.figshare.com/files/5976036"
	// ArchiveName is the file name used for the on-disk cache entry.
	ArchiveName = "cal_housing.tgz"
)

// Source yields the raw California Housing bytes, either a gzipped tar
// archive or the bare comma-separated data file.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// DefaultCacheDir returns the per-user cache directory for downloaded data.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "housingrf")
}

// DefaultSource downloads the public archive once into DefaultCacheDir.
func DefaultSource() Source {
	return &HTTPSource{URL: ArchiveURL, CacheDir: DefaultCacheDir()}
}

// HTTPSource downloads the archive over HTTP(S). When CacheDir is set the
// archive is stored there and later calls are served from disk.
type HTTPSource struct {
	URL      string
	CacheDir string
	Client   *http.Client
}

func (s *HTTPSource) String() string {
	return s.URL
}

// CachePath returns the cache entry path, or "" when caching is disabled.
func (s *HTTPSource) CachePath() string {
	if s.CacheDir == "" {
		return ""
	}
	return filepath.Join(s.CacheDir, ArchiveName)
}

// Open returns the cached archive if present, otherwise downloads it.
func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	logger := log.GetLoggerWithName("dataset").With(log.SourceKey, s.URL)

	cachePath := s.CachePath()
	if cachePath != "" {
		if f, err := os.Open(cachePath); err == nil {
			logger.Debug("Using cached archive", log.PathKey, cachePath)
			return f, nil
		}
	}

	body, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if cachePath == "" {
		return body, nil
	}
	defer body.Close()

	if err := s.store(body, cachePath); err != nil {
		return nil, err
	}
	logger.Info("Downloaded archive", log.PathKey, cachePath)

	f, err := os.Open(cachePath)
	if err != nil {
		return nil, errors.Wrapf(err, "open cache entry %s", cachePath)
	}
	return f, nil
}

func (s *HTTPSource) fetch(ctx context.Context) (io.ReadCloser, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download archive")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Newf("download archive: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// store writes r to a temporary file next to path and renames it into place,
// so an interrupted download never leaves a truncated cache entry.
func (s *HTTPSource) store(r io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create cache directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ArchiveName+".*.part")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write archive")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "commit cache entry")
	}
	return nil
}

// FileSource reads a local archive or data file.
type FileSource struct {
	Path string
}

func (s *FileSource) String() string {
	return s.Path
}

// Open opens the file.
func (s *FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", s.Path)
	}
	return f, nil
}

// ObjectCredentials configures access to an S3-compatible object store.
type ObjectCredentials struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
}

// ObjectSource reads the archive from an S3-compatible bucket.
type ObjectSource struct {
	Bucket string
	Key    string
	Creds  ObjectCredentials
}

func (s *ObjectSource) String() string {
	return fmt.Sprintf("s3://%s/%s", s.Bucket, s.Key)
}

// Open fetches the object. The object is stat'ed first so that a missing key
// or a bad credential fails here rather than on the first read.
func (s *ObjectSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.Creds.Endpoint == "" {
		return nil, errors.New("object storage endpoint is not configured")
	}
	client, err := minio.New(s.Creds.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s.Creds.AccessKey, s.Creds.SecretKey, ""),
		Secure: s.Creds.UseSSL,
		Region: s.Creds.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create object storage client")
	}

	obj, err := client.GetObject(ctx, s.Bucket, s.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "get object %s", s)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, errors.Wrapf(err, "stat object %s", s)
	}
	log.GetLoggerWithName("dataset").Debug("Opened object", log.SourceKey, s.String())
	return obj, nil
}

// ParseSource chooses a Source for uri. An empty uri selects the public
// archive; http(s) URLs are downloaded into cacheDir; s3://bucket/key reads
// from object storage; anything else is a local path.
func ParseSource(uri, cacheDir string, creds ObjectCredentials) (Source, error) {
	if uri == "" {
		return &HTTPSource{URL: ArchiveURL, CacheDir: cacheDir}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.NewValidationError("dataset.source", err.Error(), uri)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return &HTTPSource{URL: uri, CacheDir: cacheDir}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, errors.NewValidationError("dataset.source", "expected s3://bucket/key", uri)
		}
		return &ObjectSource{Bucket: u.Host, Key: key, Creds: creds}, nil
	case "file":
		return &FileSource{Path: u.Path}, nil
	case "":
		return &FileSource{Path: uri}, nil
	default:
		return nil, errors.NewValidationError("dataset.source", "unsupported scheme", u.Scheme)
	}
}
