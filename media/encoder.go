package media

import (
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"gocv.io/x/gocv"
)

// DefaultJPEGQuality matches the quality used for still exports unless configured.
const DefaultJPEGQuality = 95

// StillEncoder writes a single frame to an image file.
type StillEncoder interface {
	Encode(frame gocv.Mat, path string) error
}

// ImageEncoder is a StillEncoder backed by OpenCV's image codecs.
//
// The format is chosen from the destination extension. JPEG output honours
// Quality; PNG is lossless. When MaxWidth is set, wider frames are downscaled
// with Lanczos resampling before encoding, keeping the aspect ratio.
type ImageEncoder struct {
	// Quality is the JPEG quality, 0-100. Zero selects DefaultJPEGQuality.
	Quality int
	// MaxWidth bounds the output width in pixels. Zero disables downscaling.
	MaxWidth uint
}

// Encode implements StillEncoder.
func (e ImageEncoder) Encode(frame gocv.Mat, path string) error {
	if frame.Empty() {
		return kindf(ErrOutputCreate, nil, "encode %s: empty frame", path)
	}

	out := frame
	if e.MaxWidth > 0 && uint(frame.Cols()) > e.MaxWidth {
		scaled, err := e.downscale(frame)
		if err != nil {
			return kindf(ErrOutputCreate, err, "downscale %s", path)
		}
		defer scaled.Close()
		out = scaled
	}

	var params []int
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		quality := e.Quality
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		params = []int{int(gocv.IMWriteJpegQuality), quality}
	}

	if !gocv.IMWriteWithParams(path, out, params) {
		return kindf(ErrOutputCreate, nil, "write %s", path)
	}
	return nil
}

func (e ImageEncoder) downscale(frame gocv.Mat) (gocv.Mat, error) {
	img, err := frame.ToImage()
	if err != nil {
		return gocv.NewMat(), err
	}
	resized := resize.Resize(e.MaxWidth, 0, img, resize.Lanczos3)
	return gocv.ImageToMatRGB(resized)
}
