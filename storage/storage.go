// Package storage mirrors a finished archive tree to a Cloud Storage
// bucket. The local filesystem stays the source of truth; the mirror is a
// full re-upload plus a prune of objects that no longer exist locally.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"
)

// Mirror uploads archive files to a bucket.
type Mirror struct {
	client *storage.Client
	logger *slog.Logger
	bucket string
}

// New creates a mirror targeting bucket.
func New(client *storage.Client, bucket string, logger *slog.Logger) *Mirror {
	return &Mirror{
		client: client,
		logger: logger,
		bucket: bucket,
	}
}

// Sync uploads every file under localDir to prefix/, then removes remote
// objects under prefix/ with no local counterpart. Object names use
// forward slashes regardless of platform.
func (m *Mirror) Sync(ctx context.Context, localDir, prefix string) error {
	uploaded := make(map[string]bool)

	err := filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		key := prefix + "/" + filepath.ToSlash(rel)

		if err := m.upload(ctx, path, key); err != nil {
			return err
		}
		uploaded[key] = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("sync %s: %w", localDir, err)
	}

	if err := m.prune(ctx, prefix, uploaded); err != nil {
		return err
	}

	m.logger.Info("Archive mirrored", "bucket", m.bucket, "prefix", prefix, "objects", len(uploaded))
	return nil
}

func (m *Mirror) upload(ctx context.Context, path, key string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	err = retry.Do(
		func() error {
			w := m.client.Bucket(m.bucket).Object(key).NewWriter(ctx)
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					m.logger.Warn("Failed to close writer after error", "key", key, "error", closeErr)
				}
				return fmt.Errorf("write object: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close object writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			m.logger.Info("Retrying upload after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("upload %s after retries: %w", key, err)
	}

	m.logger.Debug("Object uploaded", "key", key, "bytes", len(data))
	return nil
}

// prune deletes objects under prefix that were not part of this sync.
func (m *Mirror) prune(ctx context.Context, prefix string, keep map[string]bool) error {
	it := m.client.Bucket(m.bucket).Objects(ctx, &storage.Query{
		Prefix: strings.TrimSuffix(prefix, "/") + "/",
	})

	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("iterate bucket: %w", err)
		}
		if keep[attrs.Name] {
			continue
		}

		if err := m.client.Bucket(m.bucket).Object(attrs.Name).Delete(ctx); err != nil {
			if errors.Is(err, storage.ErrObjectNotExist) {
				continue
			}
			return fmt.Errorf("delete stale object %s: %w", attrs.Name, err)
		}
		m.logger.Info("Pruned stale object", "key", attrs.Name)
	}

	return nil
}
