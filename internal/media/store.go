package media

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrStoreDisabled indicates that render archiving is switched off.
var ErrStoreDisabled = errors.New("media store disabled")

// Object is a rendered image ready to be archived.
type Object struct {
	// Prefix groups objects, e.g. a report ID.
	Prefix      string
	Name        string
	ContentType string
	Data        []byte
}

// StoredObject is the canonical key of an archived object and, when the
// backend exposes one, a URL for reading it.
type StoredObject struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

// Store hides the backing implementation for archiving renders.
type Store interface {
	Put(ctx context.Context, obj Object) (StoredObject, error)
}

type disabledStore struct{}

func (disabledStore) Put(_ context.Context, _ Object) (StoredObject, error) {
	return StoredObject{}, ErrStoreDisabled
}

// Disabled returns a store that always signals disabled archiving.
func Disabled() Store {
	return disabledStore{}
}

// ExtensionFor maps an image MIME type to a file extension.
func ExtensionFor(contentType string) string {
	switch normalizeType(contentType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func objectKey(prefix, name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 10 {
		ext = ext[:10]
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." || base == "/" {
		base = "render"
	}
	key := base + "-" + uuid.NewString() + ext
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}
