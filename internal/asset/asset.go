// Package asset stores uploaded images and removes them again.
//
// Entities never hold binary data, only object keys shaped like
//
//	{site}/{folder}/{uuid}{ext}
//
// e.g. "ngo/projects/5f0c…e1.jpg".  Keys are opaque to everything except
// this package and the public URL builder of the configured Store.
//
// Two Stores exist: S3Store for any S3-compatible bucket, and LocalStore for
// development, which writes under a directory served by the admin itself.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/yanizio/siteadmin/internal/site"
)

// Store is an object store.  Remove takes every key of one record at once so
// backends that support batch deletes issue a single request.
type Store interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error
	Remove(ctx context.Context, keys ...string) error
	URL(key string) string
}

var (
	ErrTooLarge      = errors.New("file too large")
	ErrUnsupported   = errors.New("unsupported file type")
	ErrInvalidFolder = errors.New("invalid folder")
	ErrInvalidKey    = errors.New("invalid asset path")
)

// DefaultMaxBytes caps uploads when the config leaves it unset.
const DefaultMaxBytes int64 = 10 << 20

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"image/avif": true,
}

var folderRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Upload is one file on its way into a Store.
type Upload struct {
	Site   site.Site
	Folder string
	Body   io.ReadSeeker
	Size   int64
}

// Saved describes a stored object.
type Saved struct {
	Path        string `json:"path"`
	URL         string `json:"url"`
	ContentType string `json:"-"`
	Size        int64  `json:"-"`
}

// Save sniffs the body, rejects anything but raster images, and writes it
// under a fresh key.
func Save(ctx context.Context, st Store, up Upload, maxBytes int64) (Saved, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if up.Size > maxBytes {
		return Saved{}, fmt.Errorf("%w: %s exceeds the %s limit", ErrTooLarge,
			humanize.IBytes(uint64(up.Size)), humanize.IBytes(uint64(maxBytes)))
	}
	if !folderRe.MatchString(up.Folder) {
		return Saved{}, fmt.Errorf("%w: %q", ErrInvalidFolder, up.Folder)
	}

	mt, err := mimetype.DetectReader(up.Body)
	if err != nil {
		return Saved{}, fmt.Errorf("sniff upload: %w", err)
	}
	if _, err := up.Body.Seek(0, io.SeekStart); err != nil {
		return Saved{}, fmt.Errorf("rewind upload: %w", err)
	}
	ctype := baseType(mt.String())
	if !allowedTypes[ctype] {
		return Saved{}, fmt.Errorf("%w: %s", ErrUnsupported, ctype)
	}

	key := NewKey(up.Site, up.Folder, mt.Extension())
	if err := st.Put(ctx, key, up.Body, up.Size, ctype); err != nil {
		return Saved{}, fmt.Errorf("store %s: %w", key, err)
	}
	return Saved{Path: key, URL: st.URL(key), ContentType: ctype, Size: up.Size}, nil
}

// NewKey returns a fresh object key.
func NewKey(s site.Site, folder, ext string) string {
	return s.String() + "/" + folder + "/" + uuid.NewString() + ext
}

// ValidateKey accepts only keys this package could have produced: a known
// site prefix, no empty or dot segments, and no leading slash.
func ValidateKey(key string) error {
	parts := strings.Split(key, "/")
	if len(parts) < 3 {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if _, err := site.Parse(parts[0]); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `\`) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// CheckOwned accepts key only when ValidateKey does and it sits under s.
// A row of one site may never point at another site's objects.
func CheckOwned(s site.Site, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if !strings.HasPrefix(key, s.String()+"/") {
		return fmt.Errorf("%w: %q is not under %s/", ErrInvalidKey, key, s)
	}
	return nil
}

func baseType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
