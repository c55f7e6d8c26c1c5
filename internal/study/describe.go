package study

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Epistemic-Technology/study-mcp/internal/assets"
	"github.com/Epistemic-Technology/study-mcp/internal/llm"
	"github.com/Epistemic-Technology/study-mcp/models"
)

const noDescription = "(no description)"

// Batch is one description request worth of images, all of the same tier
type Batch struct {
	Tier   models.Tier
	Images []models.ImageAsset
}

// DescriptionSet holds the descriptions produced for the surviving images
type DescriptionSet struct {
	// Descriptions in surviving-image order
	Descriptions []models.ImageDescription
	// Undescribed lists surviving images whose block was missing from a
	// multi-image batch response
	Undescribed []string

	byID      map[string]models.ImageDescription
	surviving map[string]bool
}

func newDescriptionSet(images []models.ImageAsset) *DescriptionSet {
	set := &DescriptionSet{
		byID:      make(map[string]models.ImageDescription, len(images)),
		surviving: make(map[string]bool, len(images)),
	}
	for _, img := range images {
		set.surviving[img.ID] = true
	}
	return set
}

// Surviving reports whether the image passed deduplication
func (d *DescriptionSet) Surviving(imageID string) bool {
	return d != nil && d.surviving[imageID]
}

// Lookup returns the description of an image if one was produced
func (d *DescriptionSet) Lookup(imageID string) (models.ImageDescription, bool) {
	if d == nil {
		return models.ImageDescription{}, false
	}
	desc, ok := d.byID[imageID]
	return desc, ok
}

// TextFor returns the description text, or "(no description)" when missing
func (d *DescriptionSet) TextFor(imageID string) string {
	if desc, ok := d.Lookup(imageID); ok && strings.TrimSpace(desc.Text) != "" {
		return desc.Text
	}
	return noDescription
}

// ChunkBatches splits images into consecutive batches of at most size
// images. Order is preserved within and across batches.
func ChunkBatches(tier models.Tier, images []models.ImageAsset, size int) []Batch {
	if size <= 0 {
		size = 1
	}
	batches := make([]Batch, 0, (len(images)+size-1)/size)
	for start := 0; start < len(images); start += size {
		end := min(start+size, len(images))
		batches = append(batches, Batch{Tier: tier, Images: images[start:end]})
	}
	return batches
}

// PlanBatches chunks each tier's images, simple tier first
func PlanBatches(routed map[models.Tier][]models.ImageAsset, size int) []Batch {
	var batches []Batch
	for _, tier := range []models.Tier{models.TierSimple, models.TierComplex} {
		batches = append(batches, ChunkBatches(tier, routed[tier], size)...)
	}
	return batches
}

// DescribeImages routes the surviving images by tier, sends every batch
// concurrently and collects one description per image. A failed request fails
// the whole stage.
func DescribeImages(ctx context.Context, rt Runtime, images []models.ImageAsset, pages []models.Page) (*DescriptionSet, error) {
	set := newDescriptionSet(images)
	if len(images) == 0 {
		return set, nil
	}

	routed := assets.Route(images, assets.Thresholds{
		ComplexWidth: rt.Config.ComplexWidthThreshold,
		ComplexBytes: rt.Config.ComplexBytesThreshold,
	})
	batches := PlanBatches(routed, rt.Config.DescriptionBatchSize)
	rt.Log.Info("Describing %d images in %d batches (%d simple, %d complex)",
		len(images), len(batches), len(routed[models.TierSimple]), len(routed[models.TierComplex]))

	pageText := make(map[int]string, len(pages))
	for _, page := range pages {
		pageText[page.Number] = page.Text
	}

	type batchResult struct {
		found   map[string]string
		missing []string
	}
	results, err := llm.FanOut(ctx, batches, rt.Config.MaxConcurrency, func(ctx context.Context, idx int, batch Batch) (batchResult, error) {
		req := llm.Request{
			Purpose:         "describe",
			Model:           rt.Config.Models.ForTier(batch.Tier),
			Parts:           describeParts(batch, pageText, rt.Config.PageContextChars),
			MaxOutputTokens: rt.Config.DescriptionMaxTokens,
			Temperature:     rt.temperature(),
		}
		resp, err := rt.generate(ctx, req)
		if err != nil {
			return batchResult{}, fmt.Errorf("describe batch %d (%s): %w", idx+1, batch.Tier, err)
		}
		found, missing := ParseDescriptions(resp.Text, batch)
		return batchResult{found: found, missing: missing}, nil
	})
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		for id, text := range res.found {
			set.byID[id] = models.ImageDescription{ImageID: id, Text: text}
		}
		set.Undescribed = append(set.Undescribed, res.missing...)
	}
	for _, img := range images {
		desc, ok := set.byID[img.ID]
		if !ok {
			continue
		}
		desc.PageNumber = img.PageNumber
		set.byID[img.ID] = desc
		set.Descriptions = append(set.Descriptions, desc)
	}
	if len(set.Undescribed) > 0 {
		rt.Log.Warn("%d image(s) left undescribed: %s", len(set.Undescribed), strings.Join(set.Undescribed, ", "))
	}
	return set, nil
}

func describeParts(batch Batch, pageText map[int]string, contextChars int) []llm.Part {
	parts := []llm.Part{llm.TextPart(describePrompt(batch))}
	for _, img := range batch.Images {
		parts = append(parts,
			llm.TextPart(describeImageContext(img, clip(pageText[img.PageNumber], contextChars))),
			llm.ImagePart(img.StorageName, img.Bytes),
		)
	}
	return parts
}

// ParseDescriptions splits a batch response into per-image blocks keyed by
// image id. A single-image batch without its marker gets the whole response.
// In a multi-image batch an image without a marker is reported as missing.
func ParseDescriptions(text string, batch Batch) (found map[string]string, missing []string) {
	found = make(map[string]string, len(batch.Images))
	for _, img := range batch.Images {
		marker := imageMarker(img.ID)
		start := strings.Index(text, marker)
		if start < 0 {
			if len(batch.Images) == 1 {
				found[img.ID] = strings.TrimSpace(text)
			} else {
				missing = append(missing, img.ID)
			}
			continue
		}
		body := text[start+len(marker):]
		// Drop an echoed "(page N, file ...)" suffix on the marker line
		if line, rest, ok := strings.Cut(body, "\n"); ok && strings.HasPrefix(strings.TrimSpace(line), "(page ") {
			body = rest
		}
		if end := strings.Index(body, imageMarkerPrefix); end >= 0 {
			body = body[:end]
		}
		found[img.ID] = strings.TrimSpace(body)
	}
	return found, missing
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	// Avoid splitting a multi-byte rune
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
