// Package storage keeps finished export artifacts in object storage so
// they can be downloaded after the job that produced them is gone.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	apperrors "github.com/mathhub/mdh-explorer/internal/errors"
	"github.com/mathhub/mdh-explorer/internal/export"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = apperrors.NewNotFoundError(apperrors.CodeObjectNotFound, "object not found")
	ErrUploadFailed   = apperrors.NewStorageError(apperrors.CodeUploadFailed, "upload failed", nil)
	ErrDownloadFailed = apperrors.NewStorageError(apperrors.CodeDownloadFailed, "download failed", nil)
	ErrDeleteFailed   = errors.New("delete failed")
)

// Object describes a stored object.
type Object struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	ETag        string `json:"etag,omitempty"`
}

// ObjectStorage abstracts object storage operations.
// Implementations are S3 and the local filesystem.
type ObjectStorage interface {
	// Put stores data under key and returns the stored object.
	Put(ctx context.Context, key, contentType string, data []byte) (*Object, error)

	// Get returns the object stored under key and its content.
	// A missing object yields ErrObjectNotFound.
	Get(ctx context.Context, key string) (*Object, []byte, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, key string) (bool, error)

	// ListObjects returns all object keys under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// MultipartUploadConfig holds configuration for multipart uploads.
type MultipartUploadConfig struct {
	// PartSize is the size of each part in bytes (default: 5MB).
	PartSize int64
}

// DefaultMultipartConfig returns the default multipart upload configuration.
func DefaultMultipartConfig() MultipartUploadConfig {
	return MultipartUploadConfig{
		PartSize: 5 * 1024 * 1024, // 5MB
	}
}

// ArtifactKey returns the key an artifact of the given export job is stored under.
func ArtifactKey(jobID, name string) string {
	return path.Join("exports", jobID, path.Base(name))
}

// SaveArtifact stores art under the key of job jobID.
func SaveArtifact(ctx context.Context, store ObjectStorage, jobID string, art *export.Artifact) (*Object, error) {
	if art == nil {
		return nil, apperrors.NewValidationError(apperrors.CodeInvalidRequest, "no artifact to store")
	}
	return store.Put(ctx, ArtifactKey(jobID, art.Name), art.ContentType, art.Data)
}

// LoadArtifact reads back an artifact stored by SaveArtifact.
func LoadArtifact(ctx context.Context, store ObjectStorage, key string) (*export.Artifact, error) {
	obj, data, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &export.Artifact{Name: path.Base(obj.Key), ContentType: obj.ContentType, Data: data}, nil
}

// contentTypeOf guesses the content type of key from its extension.
func contentTypeOf(key string) string {
	ext := path.Ext(key)
	switch ext {
	case ".sz":
		return "application/x-snappy-framed"
	case ".xz":
		return "application/x-xz"
	case ".mag":
		return "text/plain; charset=utf-8"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// cleanKey rejects keys that would escape the storage root.
func cleanKey(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || strings.HasPrefix(clean, "..") {
		return "", apperrors.NewValidationError(apperrors.CodeInvalidRequest, fmt.Sprintf("invalid object key %q", key))
	}
	return clean, nil
}
