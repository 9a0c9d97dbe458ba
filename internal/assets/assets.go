package assets

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Size names a rendition of an uploaded image.
type Size string

const (
	SizeThumbnail Size = "thumbnail"
	SizeMedium    Size = "medium"
	SizeFull      Size = "full"
)

var (
	// ErrUnsupportedType is returned for uploads that are not images.
	ErrUnsupportedType = eris.New("unsupported asset content type")
	// ErrReadOnly is returned when the store cannot accept uploads.
	ErrReadOnly = eris.New("asset store is read only")
)

var imageExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// Store resolves asset references to URLs and accepts uploads.
type Store interface {
	ImageURL(ctx context.Context, ref string, size Size) (string, bool)
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// NewUploadKey builds the object key for a branding image uploaded to a company portal.
func NewUploadKey(companyID, contentType string) (string, error) {
	ext, ok := imageExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", eris.Wrapf(ErrUnsupportedType, "content type %q", contentType)
	}
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return "", eris.New("company id is required")
	}
	return path.Join("branding", companyID, uuid.NewString()+ext), nil
}

// objectKey maps a reference and rendition to the stored object key. Full size is the original.
func objectKey(ref string, size Size) string {
	ref = strings.TrimLeft(strings.TrimSpace(ref), "/")
	if size == "" || size == SizeFull {
		return ref
	}
	return path.Join(string(size), ref)
}

// URLStore serves assets from a static CDN prefix.
type URLStore struct {
	baseURL string
}

// NewURLStore constructs a read only store rooted at baseURL.
func NewURLStore(baseURL string) (*URLStore, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, eris.New("asset base url is required")
	}
	return &URLStore{baseURL: baseURL}, nil
}

func (s *URLStore) ImageURL(_ context.Context, ref string, size Size) (string, bool) {
	if strings.TrimSpace(ref) == "" {
		return "", false
	}
	if isAbsolute(ref) {
		return ref, true
	}
	return s.baseURL + "/" + objectKey(ref, size), true
}

func (s *URLStore) Put(context.Context, string, io.Reader, int64, string) error {
	return ErrReadOnly
}

func isAbsolute(ref string) bool {
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://")
}
