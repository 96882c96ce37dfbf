package mediaproc

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
)

// FitDimensions scales (width, height) so the longer side equals bound,
// preserving aspect ratio. Images already inside the box are unchanged.
func FitDimensions(width, height, bound int) (int, int) {
	if width <= bound && height <= bound {
		return width, height
	}
	if width >= height {
		return bound, height * bound / width
	}
	return width * bound / height, bound
}

// ResizeImage downscales the image so its longer side fits the bounding box,
// resampling with Lanczos. The output keeps PNG for PNG inputs (alpha) and
// encodes everything else as JPEG. Undecodable or exotic pixel formats are a
// fatal error.
func ResizeImage(bs []byte, bound int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("resize: decoding image: %w", err)
	}

	size := img.Bounds().Size()
	width, height := FitDimensions(size.X, size.Y, bound)
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("resize: degenerate dimensions %dx%d", width, height)
	}

	resized := imaging.Resize(img, width, height, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if format == "png" {
		err = png.Encode(buf, resized)
	} else {
		err = jpeg.Encode(buf, resized, &jpeg.Options{Quality: 92})
	}
	if err != nil {
		return nil, fmt.Errorf("resize: encoding image: %w", err)
	}

	return buf.Bytes(), nil
}
