package storage

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// DefaultThumbMaxDim bounds the longer edge of derived thumbnails.
const DefaultThumbMaxDim = 320

// GenerateThumbnail downsizes the image so its longer edge is at most
// maxDim pixels and re-encodes it as JPEG. Images already within bounds are
// still re-encoded so thumbnails have a uniform format.
func GenerateThumbnail(data []byte, maxDim int) ([]byte, error) {
	if maxDim <= 0 {
		maxDim = DefaultThumbMaxDim
	}
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("storage: decode image: %w", err)
	}
	thumb := imaging.Fit(src, maxDim, maxDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(82)); err != nil {
		return nil, fmt.Errorf("storage: encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
