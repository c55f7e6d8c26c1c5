// Package pdf turns a PDF into the ordered page sequence the synthesis
// pipeline consumes: plain text per page plus embedded images, resized to a
// bounded width and given stable storage names.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Epistemic-Technology/study-mcp/internal/logger"
	"github.com/Epistemic-Technology/study-mcp/models"
)

// Options controls extraction
type Options struct {
	// MaxImageWidth bounds the width of stored images; 0 disables resizing
	MaxImageWidth int
}

// ExtractPages reads every page of a PDF. Pages keep their 1-based numbers
// even when they carry no content.
func ExtractPages(data []byte, opts Options, log logger.Logger) ([]models.Page, error) {
	conf := model.NewDefaultConfiguration()
	pageCount, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}
	log.Info("Extracting %d pages", pageCount)

	pages := make([]models.Page, pageCount)
	for i := range pages {
		pages[i].Number = i + 1
	}

	texts, err := extractText(data)
	if err != nil {
		log.Warn("Text extraction failed, continuing with images only: %v", err)
	}
	for i, text := range texts {
		if i < len(pages) {
			pages[i].Text = text
		}
	}

	images, err := extractImages(data, conf, opts, log)
	if err != nil {
		log.Warn("Image extraction failed, continuing with text only: %v", err)
	}
	for _, img := range images {
		if img.PageNumber >= 1 && img.PageNumber <= len(pages) {
			page := &pages[img.PageNumber-1]
			page.Images = append(page.Images, img)
		}
	}

	return pages, nil
}

func extractText(data []byte) ([]string, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	texts := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		texts[i-1] = text
	}
	return texts, nil
}

func extractImages(data []byte, conf *model.Configuration, opts Options, log logger.Logger) ([]models.ImageAsset, error) {
	perPage, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, conf)
	if err != nil {
		return nil, err
	}

	var assets []models.ImageAsset
	counts := make(map[int]int)
	for _, pageImages := range perPage {
		objNrs := make([]int, 0, len(pageImages))
		for objNr := range pageImages {
			objNrs = append(objNrs, objNr)
		}
		sort.Ints(objNrs)

		for _, objNr := range objNrs {
			img := pageImages[objNr]
			raw, err := io.ReadAll(img)
			if err != nil {
				log.Warn("Failed to read image %s on page %d: %v", img.Name, img.PageNr, err)
				continue
			}
			counts[img.PageNr]++
			id := ImageID(img.PageNr, counts[img.PageNr])

			asset, err := NewImageAsset(id, img.PageNr, raw, opts.MaxImageWidth)
			if err != nil {
				log.Debug("Skipping image %s (%s) on page %d: %v", img.Name, img.FileType, img.PageNr, err)
				continue
			}
			assets = append(assets, asset)
		}
	}

	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].PageNumber < assets[j].PageNumber
	})
	return assets, nil
}

// ImageID names the n-th image (1-based) of a page
func ImageID(page, n int) string {
	return fmt.Sprintf("page%03d_img%02d", page, n)
}
