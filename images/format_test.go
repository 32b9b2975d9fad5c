package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImageFormat(t *testing.T) {
	for in, want := range map[string]ImageFormat{
		"jpg":  FormatJPEG,
		"JPEG": FormatJPEG,
		".png": FormatPNG,
		"PNG":  FormatPNG,
	} {
		got, err := ParseImageFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseImageFormat("webp")
	assert.Error(t, err)
	assert.Equal(t, "jpg", FormatJPEG.Extension())
}
