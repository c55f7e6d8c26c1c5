// Package assets filters and classifies the images extracted from a document
// before they are sent for description.
package assets

import (
	"fmt"

	"github.com/Epistemic-Technology/study-mcp/models"
)

// sampleTarget is the approximate number of bytes sampled per image
const sampleTarget = 1024

// DedupStats reports what Deduplicate removed
type DedupStats struct {
	Decorative int
	Duplicates int
}

// Fingerprint computes a cheap content key for an image. Bytes are sampled at
// a stride proportional to the length and folded into a 32-bit multiplicative
// hash, which is joined with the raw length as "hash-length".
// Collisions are possible and accepted.
func Fingerprint(data []byte) string {
	stride := len(data) / sampleTarget
	if stride < 1 {
		stride = 1
	}
	var hash uint32
	for i := 0; i < len(data); i += stride {
		hash = hash*31 + uint32(data[i])
	}
	return fmt.Sprintf("%08x-%d", hash, len(data))
}

// Deduplicate drops images smaller than minDimension in either direction and
// then keeps only the first occurrence of each fingerprint. The fingerprint
// taken at extraction is used when present, otherwise Bytes is fingerprinted.
// Order of the surviving images is preserved.
func Deduplicate(images []models.ImageAsset, minDimension int) ([]models.ImageAsset, DedupStats) {
	var stats DedupStats
	seen := make(map[string]bool, len(images))
	kept := make([]models.ImageAsset, 0, len(images))
	for _, img := range images {
		if img.PixelWidth < minDimension || img.PixelHeight < minDimension {
			stats.Decorative++
			continue
		}
		key := img.Fingerprint
		if key == "" {
			key = Fingerprint(img.Bytes)
		}
		if seen[key] {
			stats.Duplicates++
			continue
		}
		seen[key] = true
		kept = append(kept, img)
	}
	return kept, stats
}

// CollectImages flattens the images of all pages in document order
func CollectImages(pages []models.Page) []models.ImageAsset {
	var images []models.ImageAsset
	for _, page := range pages {
		images = append(images, page.Images...)
	}
	return images
}
