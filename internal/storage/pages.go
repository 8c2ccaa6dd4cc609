package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/kitguide/internal/domain"
)

// Page is one manual page image available to the corpus builder.
type Page struct {
	// Name is the base file name used for ordering.
	Name string
	// Source is the stable identifier stored as the record's image_source.
	Source string
	Size   int64
}

// PageSource lists manual page images and reads their bytes.
type PageSource interface {
	List(ctx context.Context) ([]Page, error)
	Read(ctx context.Context, source string) ([]byte, error)
}

// ImageLinker turns a stored image_source into something a client can fetch.
type ImageLinker interface {
	Link(ctx context.Context, source string) (string, error)
}

// IsImageName reports whether name has a page image extension (.jpg, .jpeg, .png).
func IsImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// LocalPageSource reads pages from a directory on disk. Subdirectories are ignored.
type LocalPageSource struct {
	Dir string
}

func NewLocalPageSource(dir string) *LocalPageSource {
	return &LocalPageSource{Dir: dir}
}

func (s *LocalPageSource) List(ctx context.Context) ([]Page, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.Wrap(domain.ErrNoPages, fmt.Errorf("directory %s does not exist", s.Dir))
		}
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	pages := make([]Page, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsImageName(entry.Name()) {
			continue
		}
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		pages = append(pages, Page{
			Name:   entry.Name(),
			Source: filepath.Join(s.Dir, entry.Name()),
			Size:   size,
		})
	}
	return pages, nil
}

func (s *LocalPageSource) Read(ctx context.Context, source string) ([]byte, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.Wrap(domain.ErrImageNotFound, fmt.Errorf("%s", source))
		}
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// Link returns local paths unchanged.
func (s *LocalPageSource) Link(ctx context.Context, source string) (string, error) {
	return source, nil
}

// S3PageSource reads pages stored under a bucket prefix.
type S3PageSource struct {
	client *S3Client
	prefix string
}

func NewS3PageSource(client *S3Client, prefix string) *S3PageSource {
	return &S3PageSource{client: client, prefix: prefix}
}

func (s *S3PageSource) List(ctx context.Context) ([]Page, error) {
	objects, err := s.client.ListObjects(ctx, s.prefix)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") || !IsImageName(obj.Key) {
			continue
		}
		pages = append(pages, Page{
			Name:   path.Base(obj.Key),
			Source: S3URI(s.client.Bucket(), obj.Key),
			Size:   obj.Size,
		})
	}
	return pages, nil
}

func (s *S3PageSource) Read(ctx context.Context, source string) ([]byte, error) {
	key, err := s.key(source)
	if err != nil {
		return nil, err
	}
	return s.client.GetObject(ctx, key)
}

// Link presigns a download URL for sources in this bucket; anything else is
// returned unchanged.
func (s *S3PageSource) Link(ctx context.Context, source string) (string, error) {
	bucket, key, ok := ParseS3URI(source)
	if !ok || bucket != s.client.Bucket() {
		return source, nil
	}
	return s.client.GenerateDownloadURL(ctx, key)
}

func (s *S3PageSource) key(source string) (string, error) {
	bucket, key, ok := ParseS3URI(source)
	if !ok {
		// Bare keys are accepted relative to the bucket.
		return source, nil
	}
	if bucket != s.client.Bucket() {
		return "", fmt.Errorf("source %s is not in bucket %s", source, s.client.Bucket())
	}
	return key, nil
}

// S3URI formats an s3://bucket/key URI.
func S3URI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

// ParseS3URI splits s3://bucket/key. ok is false for any other form.
func ParseS3URI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found || rest == "" {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Open returns the page source for corpusDir: an S3 source for s3://bucket/prefix
// URIs, a local directory otherwise.
func Open(ctx context.Context, corpusDir string, cfg S3ClientConfig) (PageSource, error) {
	bucket, prefix, ok := ParseS3URI(corpusDir)
	if !ok {
		return NewLocalPageSource(corpusDir), nil
	}

	cfg.Bucket = bucket
	if cfg.Endpoint != "" {
		cfg.UsePathStyle = true
	}
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewS3PageSource(client, prefix), nil
}
