// Package blobstore handles file payloads. Table rows describe the tree;
// the bytes themselves live in an object store addressed by storage path.
package blobstore

import "context"

// ObjectStorage stores and retrieves raw file payloads.
type ObjectStorage interface {
	// Upload writes data under the given path and returns the stored path.
	Upload(ctx context.Context, path, contentType string, data []byte) (string, error)
	// Download returns the payload stored under path.
	Download(ctx context.Context, path string) ([]byte, error)
	// Remove deletes every given path. Missing paths are not an error.
	Remove(ctx context.Context, paths []string) error
}
