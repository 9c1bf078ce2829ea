package persistence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/neogan74/savekit/internal/logger"
)

// GCSEngine stores each slot as one object in a Cloud Storage bucket.
// The object's Updated attribute is the slot's modification time.
type GCSEngine struct {
	client *storage.Client
	bucket string
	prefix string
	log    logger.Logger
}

// NewGCSEngine connects to bucket. credentialsFile may be empty to use
// application default credentials.
func NewGCSEngine(ctx context.Context, bucket, prefix, credentialsFile string, log logger.Logger) (*GCSEngine, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket must be specified")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSEngine{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log,
	}, nil
}

func (g *GCSEngine) object(key string) *storage.ObjectHandle {
	name := key
	if g.prefix != "" {
		name = path.Join(g.prefix, key)
	}
	return g.client.Bucket(g.bucket).Object(name)
}

func (g *GCSEngine) Get(ctx context.Context, key string) (Object, error) {
	r, err := g.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return Object{}, ErrKeyNotFound
	}
	if err != nil {
		return Object{}, fmt.Errorf("failed to open GCS object %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return Object{}, fmt.Errorf("failed to read GCS object %s: %w", key, err)
	}
	return Object{Value: data, ModTime: r.Attrs.LastModified}, nil
}

func (g *GCSEngine) Set(ctx context.Context, key string, value []byte) (time.Time, error) {
	w := g.object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return time.Time{}, fmt.Errorf("failed to write GCS object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return time.Time{}, fmt.Errorf("failed to close GCS writer for %s: %w", key, err)
	}

	var mod time.Time
	if attrs := w.Attrs(); attrs != nil {
		mod = attrs.Updated
	}
	g.log.Debug("Uploaded slot",
		logger.String("bucket", g.bucket),
		logger.String("key", key),
		logger.Int("bytes", len(value)))
	return mod, nil
}

func (g *GCSEngine) ModTime(ctx context.Context, key string) (time.Time, error) {
	attrs, err := g.object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return time.Time{}, ErrKeyNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat GCS object %s: %w", key, err)
	}
	return attrs.Updated, nil
}

func (g *GCSEngine) Delete(ctx context.Context, key string) error {
	err := g.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %s: %w", key, err)
	}
	return nil
}

func (g *GCSEngine) List(ctx context.Context, prefix string) ([]string, error) {
	full := prefix
	if g.prefix != "" {
		full = g.prefix + "/" + prefix
	}
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: full})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list GCS objects: %w", err)
		}
		name := attrs.Name
		if g.prefix != "" {
			name = strings.TrimPrefix(name, g.prefix+"/")
		}
		keys = append(keys, name)
	}
	return keys, nil
}

func (g *GCSEngine) Close() error {
	return g.client.Close()
}
