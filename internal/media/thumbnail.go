package media

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	thumbnailMaxDim      = 320
	thumbnailJPEGQuality = 85
)

// WriteThumbnail decodes the image at srcPath and writes a JPEG thumbnail,
// at most 320px on the long edge, to dstPath. Aspect ratio is preserved and
// images already within bounds are re-encoded without scaling.
func WriteThumbnail(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > thumbnailMaxDim || h > thumbnailMaxDim {
		if w >= h {
			h = h * thumbnailMaxDim / w
			w = thumbnailMaxDim
		} else {
			w = w * thumbnailMaxDim / h
			h = thumbnailMaxDim
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create thumbnail: %w", err)
	}

	if err := jpeg.Encode(dst, img, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return dst.Close()
}
