package assets

import "github.com/Epistemic-Technology/study-mcp/models"

// Thresholds decide when an image needs the complex description tier
type Thresholds struct {
	ComplexWidth int
	ComplexBytes int
}

// Classify returns TierComplex when the image is wider than ComplexWidth or
// its encoded size exceeds ComplexBytes, TierSimple otherwise.
func Classify(img models.ImageAsset, th Thresholds) models.Tier {
	size := img.ByteLength
	if size == 0 {
		size = len(img.Bytes)
	}
	if img.PixelWidth > th.ComplexWidth || size > th.ComplexBytes {
		return models.TierComplex
	}
	return models.TierSimple
}

// Route splits images by tier. Relative order inside each tier matches the input.
func Route(images []models.ImageAsset, th Thresholds) map[models.Tier][]models.ImageAsset {
	routed := make(map[models.Tier][]models.ImageAsset, 2)
	for _, img := range images {
		tier := Classify(img, th)
		routed[tier] = append(routed[tier], img)
	}
	return routed
}
