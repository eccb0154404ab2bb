// Package storage keeps generated media (voiceover audio) reachable by URL for the
// render service. Objects live until their owner calls Delete.
package storage

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"
)

type BlobStore interface {
	// Put stores data under key and returns a URL the render service can fetch.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// Key builds an object key under prefix for one user's video asset.
func Key(prefix, userID, videoID, ext string) string {
	name := uuid.NewString()
	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}
	return path.Join(strings.Trim(prefix, "/"), userID, videoID, name)
}
