// Package storage keeps uploaded files (member photos) behind a small blob-store interface.
package storage

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
)

type PutOptions struct {
	ContentType string
}

type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts *PutOptions) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// NewKey builds a unique key under prefix: photos/2025/02/3f2a9c1e.jpg.
// ext is trusted as given and must include the dot.
func NewKey(prefix, ext string) string {
	now := time.Now().UTC()
	return path.Join(prefix, now.Format("2006"), now.Format("01"), uuid.New().String()[:8]+ext)
}
