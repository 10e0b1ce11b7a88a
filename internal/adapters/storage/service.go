// Package storage provides the S3-compatible object store used for attendance
// session folders and camper avatars. Folders are prefixes; a folder exists
// once its marker object has been written.
package storage

import (
	"context"
	"io"
)

// FolderMarker is the sentinel object written inside every provisioned folder.
const FolderMarker = ".folder_marker"

// FolderStore defines the object store operations the attendance workflows need.
type FolderStore interface {
	// FolderExists reports whether the folder marker is present under folder.
	FolderExists(ctx context.Context, bucket, folder string) (bool, error)

	// CreateFolder writes the folder marker. Creating an existing folder is a no-op.
	CreateFolder(ctx context.Context, bucket, folder string) error

	// CopyObject copies srcKey from srcBucket to dstKey in dstBucket.
	CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error

	// UploadFile stores reader under folder/fileName and returns the key.
	UploadFile(ctx context.Context, bucket, folder, fileName, contentType string, reader io.Reader, size int64) (string, error)

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	IsMinIOEnabled() bool
}
