package media_test

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/jmerrifield20/lostfound/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngPixel is a 1x1 transparent PNG.
var pngPixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func TestDataURI_png(t *testing.T) {
	uri, err := media.DataURI(pngPixel)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"), uri)

	payload := strings.TrimPrefix(uri, "data:image/png;base64,")
	decoded, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	assert.Equal(t, pngPixel, decoded)
}

func TestDataURI_rejectsNonImages(t *testing.T) {
	_, err := media.DataURI([]byte("just some text"))
	assert.ErrorIs(t, err, media.ErrNotImage)

	_, err = media.DataURI(nil)
	assert.ErrorIs(t, err, media.ErrNotImage)
}

func TestReadDataURI_limit(t *testing.T) {
	_, err := media.ReadDataURI(bytes.NewReader(pngPixel), int64(len(pngPixel)-1))
	assert.ErrorIs(t, err, media.ErrTooLarge)

	uri, err := media.ReadDataURI(bytes.NewReader(pngPixel), int64(len(pngPixel)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png"))
}

func TestNormalizeImageURL(t *testing.T) {
	ok := map[string]string{
		"":                                "",
		"  https://cdn.example.com/a.jpg ": "https://cdn.example.com/a.jpg",
		"http://example.com/x.png":        "http://example.com/x.png",
		"data:image/png;base64,AAAA":      "data:image/png;base64,AAAA",
	}
	for in, want := range ok {
		got, err := media.NormalizeImageURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"javascript:alert(1)", "ftp://example.com/a.png", "data:text/html,hi", "not a url", "https://"} {
		_, err := media.NormalizeImageURL(in)
		assert.ErrorIs(t, err, media.ErrBadImageURL, in)
	}
}
