package images

import (
	"strings"

	"github.com/pkg/errors"
)

// ImageFormat is a still image encoding, named by its file extension.
type ImageFormat string

const (
	// FormatJPEG is lossy and honours the JPEG quality setting.
	FormatJPEG ImageFormat = "jpg"
	// FormatPNG is lossless.
	FormatPNG ImageFormat = "png"
)

// ParseImageFormat accepts jpg, jpeg or png in any case.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	}
	return "", errors.Errorf("unsupported image format %q", s)
}

// Extension returns the file extension without the leading dot.
func (f ImageFormat) Extension() string {
	return string(f)
}
