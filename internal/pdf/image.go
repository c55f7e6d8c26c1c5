package pdf

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/Epistemic-Technology/study-mcp/internal/assets"
	"github.com/Epistemic-Technology/study-mcp/models"
)

// NewImageAsset decodes an extracted image and re-encodes it as PNG no wider
// than maxWidth. Pixel dimensions, byte length and fingerprint describe the
// original bytes, which is what deduplication and complexity routing look at.
func NewImageAsset(id string, pageNumber int, raw []byte, maxWidth int) (models.ImageAsset, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return models.ImageAsset{}, fmt.Errorf("decode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Resize(src, maxWidth)); err != nil {
		return models.ImageAsset{}, fmt.Errorf("encode: %w", err)
	}

	bounds := src.Bounds()
	return models.ImageAsset{
		ID:          id,
		PageNumber:  pageNumber,
		PixelWidth:  bounds.Dx(),
		PixelHeight: bounds.Dy(),
		ByteLength:  len(raw),
		Fingerprint: assets.Fingerprint(raw),
		Bytes:       buf.Bytes(),
		StorageName: id + ".png",
	}, nil
}

// Resize scales src down to maxWidth keeping its aspect ratio. Images that
// already fit are returned unchanged.
func Resize(src image.Image, maxWidth int) image.Image {
	bounds := src.Bounds()
	if maxWidth <= 0 || bounds.Dx() <= maxWidth {
		return src
	}
	height := max(1, bounds.Dy()*maxWidth/bounds.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
