package operations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/internal/documents"
	"github.com/Epistemic-Technology/study-mcp/internal/llm"
	"github.com/Epistemic-Technology/study-mcp/internal/logger"
	"github.com/Epistemic-Technology/study-mcp/internal/pdf"
	"github.com/Epistemic-Technology/study-mcp/internal/render"
	"github.com/Epistemic-Technology/study-mcp/internal/storage"
	"github.com/Epistemic-Technology/study-mcp/internal/study"
	"github.com/Epistemic-Technology/study-mcp/models"
)

// SynthesizeRequest names one source document. Exactly one of ZoteroID, URL
// and RawData must be set.
type SynthesizeRequest struct {
	ZoteroID string
	URL      string
	RawData  []byte
	Title    string
	// Force re-synthesizes a document that is already stored
	Force bool
}

// SynthesizeResult is a stored study document
type SynthesizeResult struct {
	Document *models.StudyDocument
	// Cached is true when the document came from the store without a new run
	Cached bool
}

// Synthesizer fetches, extracts, synthesizes and stores study documents
type Synthesizer struct {
	Store     storage.Store
	Generator llm.Generator
	Config    config.Config
	Log       logger.Logger
	// Extract turns PDF bytes into pages; nil means pdf.ExtractPages
	Extract func(data []byte) ([]models.Page, error)
}

func (r SynthesizeRequest) validate() error {
	set := 0
	if r.ZoteroID != "" {
		set++
	}
	if r.URL != "" {
		set++
	}
	if len(r.RawData) > 0 {
		set++
	}
	if set != 1 {
		return errors.New("exactly one of zotero_id, url, or raw_data must be provided")
	}
	return nil
}

// GetOrSynthesize returns the stored study document for the source, running
// the synthesis pipeline first when it is not stored yet (or Force is set).
func (s *Synthesizer) GetOrSynthesize(ctx context.Context, req SynthesizeRequest) (*SynthesizeResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	sourceInfo := models.SourceInfo{ZoteroID: req.ZoteroID, URL: req.URL}
	creds := documents.ZoteroCredentials{APIKey: s.Config.ZoteroAPIKey, LibraryID: s.Config.ZoteroLibraryID}

	var data []byte
	var err error
	if len(req.RawData) > 0 {
		if err := documents.RequirePDF(req.RawData); err != nil {
			return nil, err
		}
		data = req.RawData
	} else {
		data, err = documents.GetData(ctx, sourceInfo, creds)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch PDF data: %w", err)
		}
	}

	docID := storage.GenerateDocumentID(sourceInfo, data)

	exists, err := s.Store.DocumentExists(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to check document existence: %w", err)
	}
	if exists && !req.Force {
		s.Log.Info("Study document %s already stored", docID)
		doc, err := s.Store.GetStudyDocument(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve existing document: %w", err)
		}
		return &SynthesizeResult{Document: doc, Cached: true}, nil
	}

	title := strings.TrimSpace(req.Title)
	if title == "" && req.ZoteroID != "" {
		title, err = documents.FetchZoteroTitle(ctx, req.ZoteroID, creds)
		if err != nil {
			s.Log.Warn("Could not fetch Zotero title for %s: %v", req.ZoteroID, err)
		}
	}

	extract := s.Extract
	if extract == nil {
		extract = func(data []byte) ([]models.Page, error) {
			return pdf.ExtractPages(data, pdf.Options{MaxImageWidth: s.Config.MaxImageWidth}, s.Log)
		}
	}
	pages, err := extract(data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract pages: %w", err)
	}

	result, err := study.Run(ctx, s.Generator, s.Config, s.Log, study.Input{Title: title, Pages: pages})
	if err != nil {
		return nil, err
	}

	doc := &models.StudyDocument{
		DocumentID:   docID,
		Title:        title,
		Markdown:     result.Markdown,
		Tree:         result.Tree,
		Cost:         result.Cost,
		Warnings:     result.Warnings,
		PageCount:    len(pages),
		SectionCount: len(result.Sections),
		SourceInfo:   sourceInfo,
	}
	if err := s.Store.StoreStudyDocument(ctx, doc, ReferencedImages(result.Markdown, pages)); err != nil {
		return nil, fmt.Errorf("failed to store study document: %w", err)
	}
	s.Log.Info("Stored study document %s ($%.4f)", docID, doc.Cost)

	return &SynthesizeResult{Document: doc}, nil
}

// ReferencedImages returns the page images that the markdown embeds
func ReferencedImages(markdown string, pages []models.Page) []models.ImageAsset {
	referenced := make(map[string]bool)
	for _, name := range study.ImageRefs(markdown) {
		referenced[name] = true
	}
	var images []models.ImageAsset
	for _, page := range pages {
		for _, img := range page.Images {
			if referenced[img.StorageName] {
				images = append(images, img)
				delete(referenced, img.StorageName)
			}
		}
	}
	return images
}

// RenderHTML renders a stored study document to a standalone HTML page with
// its images embedded
func RenderHTML(ctx context.Context, store storage.Store, docID string, diagramLanguage string) (string, error) {
	doc, err := store.GetStudyDocument(ctx, docID)
	if err != nil {
		return "", err
	}
	images, err := store.GetImages(ctx, docID)
	if err != nil {
		return "", err
	}
	return render.HTML(doc.Markdown, render.Options{
		Title:           doc.Title,
		DiagramLanguage: diagramLanguage,
		Images:          images,
	})
}
