// Package media externalizes inline images into files served under /uploads/.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

// URLPrefix is the path the upload directory is served under.
const URLPrefix = "/uploads/"

// MaxImageBytes caps a decoded upload.
const MaxImageBytes = 5 << 20

var (
	ErrNotDataURI       = errors.New("media: not a data URI")
	ErrUnsupportedImage = errors.New("media: unsupported image type")
	ErrTooLarge         = errors.New("media: image too large")
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Uploader stores an image and returns the URL it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, dataURI string) (string, error)
}

// IsDataURI reports whether s carries inline data rather than a URL.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// DiskUploader writes images into a directory.
type DiskUploader struct {
	dir     string
	baseURL string
}

// NewDiskUploader stores files in dir and builds URLs from baseURL, which
// may be empty for host-relative URLs.
func NewDiskUploader(dir, baseURL string) (*DiskUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskUploader{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory files are written to.
func (u *DiskUploader) Dir() string { return u.dir }

// Upload decodes a base64 data URI and writes it under a fresh name.
func (u *DiskUploader) Upload(ctx context.Context, dataURI string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mediaType, data, err := decode(dataURI)
	if err != nil {
		return "", err
	}
	ext, ok := extensions[mediaType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mediaType)
	}

	name := strings.ToLower(ulid.Make().String()) + ext
	if err := os.WriteFile(filepath.Join(u.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return u.baseURL + URLPrefix + name, nil
}

// decode splits "data:<type>;base64,<payload>".
func decode(uri string) (string, []byte, error) {
	if !IsDataURI(uri) {
		return "", nil, ErrNotDataURI
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	mediaType, params, _ := strings.Cut(header, ";")
	if params != "base64" {
		return "", nil, fmt.Errorf("%w: expected base64 encoding", ErrNotDataURI)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes {
		return "", nil, ErrTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode image: %w", err)
	}
	return strings.ToLower(mediaType), data, nil
}
