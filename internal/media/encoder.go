package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxImageBytes caps every room or furniture image.
const MaxImageBytes = 7 * 1024 * 1024

var (
	// ErrEncoding indicates the image could not be read to completion.
	ErrEncoding = errors.New("media: could not read image")
	// ErrUnsupportedType indicates an image outside PNG/JPEG/WEBP.
	ErrUnsupportedType = errors.New("media: unsupported image type (PNG, JPEG or WEBP required)")
	// ErrTooLarge indicates an image above MaxImageBytes.
	ErrTooLarge = fmt.Errorf("media: image exceeds %d bytes", MaxImageBytes)
)

var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// InlineImage is the base64-plus-MIME form the model expects for inline data.
type InlineImage struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// Empty reports whether the payload carries no data.
func (i InlineImage) Empty() bool {
	return i.Data == ""
}

// Bytes decodes the payload.
func (i InlineImage) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(i.Data)
	if err != nil {
		return nil, fmt.Errorf("media: decode inline image: %w", err)
	}
	return data, nil
}

// Size returns the decoded size without decoding.
func (i InlineImage) Size() int {
	return base64.StdEncoding.DecodedLen(len(i.Data))
}

// Encode reads the blob once and returns its inline form. A reader fault
// yields an empty payload together with ErrEncoding; callers must treat an
// empty payload from a non-empty blob as a failed upload.
func Encode(r io.Reader, declaredType string) (InlineImage, error) {
	if r == nil {
		return InlineImage{}, ErrEncoding
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return InlineImage{MIMEType: normalizeType(declaredType)}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return EncodeBytes(data, declaredType)
}

// EncodeBytes is Encode for data already in memory.
func EncodeBytes(data []byte, declaredType string) (InlineImage, error) {
	if len(data) > MaxImageBytes {
		return InlineImage{}, ErrTooLarge
	}
	mime, err := DetectType(data, declaredType)
	if err != nil {
		return InlineImage{}, err
	}
	return InlineImage{
		Data:     base64.StdEncoding.EncodeToString(data),
		MIMEType: mime,
	}, nil
}

// DetectType trusts an allowed declared type and sniffs otherwise.
func DetectType(data []byte, declaredType string) (string, error) {
	if mime := normalizeType(declaredType); allowedTypes[mime] {
		return mime, nil
	}
	if len(data) == 0 {
		return "", ErrUnsupportedType
	}
	sniffed := normalizeType(http.DetectContentType(data))
	if !allowedTypes[sniffed] {
		return "", ErrUnsupportedType
	}
	return sniffed, nil
}

func normalizeType(raw string) string {
	mime := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	if mime == "image/jpg" {
		mime = "image/jpeg"
	}
	return mime
}

// Fetch downloads an image (e.g. the sample room) and encodes it.
func Fetch(ctx context.Context, client *http.Client, url string) (InlineImage, error) {
	if strings.TrimSpace(url) == "" {
		return InlineImage{}, fmt.Errorf("media: empty image URL")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return InlineImage{}, fmt.Errorf("media: fetch %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return InlineImage{}, fmt.Errorf("media: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return InlineImage{}, fmt.Errorf("media: image status %d", resp.StatusCode)
	}
	return Encode(resp.Body, resp.Header.Get("Content-Type"))
}
