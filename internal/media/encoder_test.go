package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// pngHeader is enough for http.DetectContentType to recognise a PNG.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestEncodeDeclaredType(t *testing.T) {
	img, err := Encode(bytes.NewReader([]byte("jpeg-bytes")), "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", img.MIMEType)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")), img.Data)

	raw, err := img.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg-bytes"), raw)
	require.Equal(t, len("jpeg-bytes"), len(raw))
}

func TestEncodeSniffsUnknownDeclaredType(t *testing.T) {
	img, err := Encode(bytes.NewReader(pngHeader), "application/octet-stream")
	require.NoError(t, err)
	require.Equal(t, "image/png", img.MIMEType)

	img, err = Encode(bytes.NewReader(pngHeader), "IMAGE/JPG; charset=binary")
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", img.MIMEType)
}

func TestEncodeRejectsUnsupported(t *testing.T) {
	_, err := Encode(bytes.NewReader([]byte("just some text")), "text/plain")
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Encode(bytes.NewReader([]byte("GIF89a...")), "image/gif")
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestEncodeReaderFaultYieldsEmptyPayload(t *testing.T) {
	img, err := Encode(failingReader{}, "image/png")
	require.ErrorIs(t, err, ErrEncoding)
	require.True(t, img.Empty())
	require.Equal(t, "image/png", img.MIMEType)
}

func TestEncodeTooLarge(t *testing.T) {
	_, err := Encode(bytes.NewReader(make([]byte, MaxImageBytes+1)), "image/png")
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	}))
	t.Cleanup(ts.Close)

	img, err := Fetch(context.Background(), ts.Client(), ts.URL+"/room.png")
	require.NoError(t, err)
	require.Equal(t, "image/png", img.MIMEType)
	require.False(t, img.Empty())

	_, err = Fetch(context.Background(), ts.Client(), ts.URL+"/missing")
	require.Error(t, err)

	_, err = Fetch(context.Background(), ts.Client(), " ")
	require.Error(t, err)
}

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	obj, err := store.Put(context.Background(), Object{
		Prefix:      "report-1",
		Name:        "3d" + ExtensionFor("image/jpeg"),
		ContentType: "image/jpeg",
		Data:        []byte("render"),
	})
	require.NoError(t, err)
	require.Equal(t, "report-1", filepath.Dir(filepath.FromSlash(obj.Key)))
	require.Equal(t, ".jpg", filepath.Ext(obj.Key))

	written, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(obj.Key)))
	require.NoError(t, err)
	require.Equal(t, []byte("render"), written)

	_, err = store.Put(context.Background(), Object{Name: "empty.png"})
	require.Error(t, err)
}

func TestDisabledStore(t *testing.T) {
	_, err := Disabled().Put(context.Background(), Object{Data: []byte("x")})
	require.ErrorIs(t, err, ErrStoreDisabled)
}
