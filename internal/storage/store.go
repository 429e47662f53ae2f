// Package storage abstracts the object layout the pipeline reads from and
// writes to. Keys are slash-separated and relative to the store root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var (
	ErrNotFound   = errors.New("object_not_found")
	ErrInvalidKey = errors.New("invalid_key")
	ErrInvalidURI = errors.New("invalid_uri")
)

// Store is the minimal object-store contract used by the source reader
// and the table writer.
type Store interface {
	// Glob returns the sorted keys of objects matching a doublestar
	// pattern relative to the root.
	Glob(ctx context.Context, pattern string) ([]string, error)
	// List returns the sorted keys of all objects under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	// DeletePrefix removes every object under prefix. A missing prefix
	// is not an error.
	DeletePrefix(ctx context.Context, prefix string) error
	// URI identifies the store root in logs.
	URI() string
}

// S3Config carries explicit credentials and endpoint settings for S3
// stores. Empty keys fall back to the SDK default credential chain.
type S3Config struct {
	Region          string
	Endpoint        string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
}

// Open returns the store for uri. s3://, s3a:// and s3n:// URIs open an
// S3 store rooted at bucket/prefix; anything else is a local directory.
func Open(uri string, s3cfg S3Config) (Store, error) {
	raw := strings.TrimSpace(uri)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURI)
	}
	scheme, rest, found := strings.Cut(raw, "://")
	if !found {
		return NewLocal(raw)
	}
	switch strings.ToLower(scheme) {
	case "file":
		return NewLocal(rest)
	case "s3", "s3a", "s3n":
		u, err := url.Parse("s3://" + rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidURI, raw, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("%w: %s: missing bucket", ErrInvalidURI, raw)
		}
		return NewS3(s3cfg, u.Host, strings.Trim(u.Path, "/"))
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, scheme)
	}
}

// Join builds a key from parts, dropping empty segments.
func Join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", nil
	}
	cleaned := path.Clean("/" + key)
	cleaned = strings.TrimPrefix(cleaned, "/")
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidKey, key)
		}
	}
	return cleaned, nil
}
