// Package storage abstracts where source and edited rasters live. The API
// and worker only ever speak in keys; the backing store decides the layout.
package storage

import "context"

// Store persists immutable asset blobs under caller-chosen keys.
type Store interface {
	// Upload writes the blob and returns the canonical storage key.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Download reads the blob back by key.
	Download(ctx context.Context, key string) ([]byte, error)
	// PublicURL returns a URL clients can fetch the blob from.
	PublicURL(key string) string
}
