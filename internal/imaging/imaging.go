package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net/http"

	_ "golang.org/x/image/webp" // register WebP decoder
)

// DefaultMaxSize is the upload ceiling when none is configured (10 MiB).
const DefaultMaxSize int64 = 10 * 1024 * 1024

// AllowedMIME lists the accepted upload types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Info describes an upload that passed validation.
type Info struct {
	MIME   string
	Format string
	Width  int
	Height int
}

// Validate checks an upload before it is sent: size within maxSize, a
// sniffed type in AllowedMIME, and a header that decodes to a non-empty
// image. The type is sniffed from the bytes, never taken from a file name.
// maxSize <= 0 means DefaultMaxSize.
func Validate(data []byte, maxSize int64) (*Info, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image is empty")
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("image is %d bytes, larger than the %d byte limit", len(data), maxSize)
	}

	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("unsupported image format: %s (only JPEG, PNG and WebP accepted)", detected)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image has no pixels (%dx%d)", cfg.Width, cfg.Height)
	}

	return &Info{
		MIME:   detected,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}
