// Package media turns uploaded item photos into the image URL strings the
// ledger stores. The ledger keeps those strings opaque; this package only
// makes sure what goes in is an image data URI or a web URL.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxImageBytes caps uploads when no limit is configured.
const DefaultMaxImageBytes = 2 << 20

var (
	// ErrNotImage is returned when the content is not a recognised image.
	ErrNotImage = errors.New("content is not an image")

	// ErrTooLarge is returned when the content exceeds the read limit.
	ErrTooLarge = errors.New("image exceeds size limit")

	// ErrBadImageURL is returned for image URLs that are neither data URIs
	// nor http(s) URLs.
	ErrBadImageURL = errors.New("image url must be a data URI or an http(s) URL")
)

// DataURI encodes data as a base64 data URI, using the sniffed MIME type.
func DataURI(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNotImage
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mtype.String())
	}
	return "data:" + mtype.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ReadDataURI reads at most limit bytes from r and encodes them with
// DataURI. A limit <= 0 means DefaultMaxImageBytes.
func ReadDataURI(r io.Reader, limit int64) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return DataURI(data)
}

// NormalizeImageURL trims s and checks its scheme. Empty input is allowed
// and stays empty.
func NormalizeImageURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if strings.HasPrefix(s, "data:image/") {
		return s, nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrBadImageURL
	}
	return s, nil
}
