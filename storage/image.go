// Package storage keeps lab-report images that accompany measurements.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"
)

var (
	// ErrImageTooLarge is returned for uploads above the configured size.
	ErrImageTooLarge = errors.New("image exceeds the maximum upload size")
	// ErrUnsupportedImageType is returned for anything that is not a jpeg, png, gif or webp image.
	ErrUnsupportedImageType = errors.New("only image files are allowed")
	// ErrUnknownRef is returned when a reference was not produced by the store it is handed to.
	ErrUnknownRef = errors.New("image reference does not belong to this store")
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageStore persists images and hands back an opaque reference to them.
type ImageStore interface {
	Put(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error)
	Delete(ctx context.Context, ref string) error
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// ValidateImage checks an upload against the allowed image types and the size limit.
// A non-positive max disables the size check.
func ValidateImage(contentType string, size, max int64) error {
	if _, ok := allowedImageTypes[mediaType(contentType)]; !ok {
		return ErrUnsupportedImageType
	}
	if max > 0 && size > max {
		return fmt.Errorf("%w (%d > %d bytes)", ErrImageTooLarge, size, max)
	}
	return nil
}

// objectName builds lab-report-<unixnano>-<random><ext>. The extension always follows
// the validated content type; the client's file name is ignored.
func objectName(contentType string, now time.Time) string {
	ext := allowedImageTypes[mediaType(contentType)]
	return fmt.Sprintf("lab-report-%d-%d%s", now.UnixNano(), rand.IntN(1e9), ext)
}
