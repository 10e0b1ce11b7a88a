package storage

import (
	"errors"
	"fmt"
	"mime"
	"strings"
)

var (
	ErrUnsupportedType = errors.New("file type not allowed")
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file too large")
)

// photoTypes are the formats the recognition service decodes.
var photoTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/heic": {},
}

// CheckPhoto rejects uploads the attendance flow cannot use. Parameters on the
// media type are ignored.
func CheckPhoto(contentType string, size int64) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
	}
	if _, ok := photoTypes[mediaType]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	return checkSize(size, MaxPhotoSize)
}

func checkSize(size, limit int64) error {
	switch {
	case size <= 0:
		return ErrEmptyFile
	case size > limit:
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, size, limit)
	}
	return nil
}
