package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/study-mcp/internal/operations"
	"github.com/Epistemic-Technology/study-mcp/internal/storage"
)

// StudyResourceHandler handles resource requests for stored study documents
type StudyResourceHandler struct {
	store           storage.Store
	diagramLanguage string
}

// NewStudyResourceHandler creates a new study resource handler
func NewStudyResourceHandler(store storage.Store, diagramLanguage string) *StudyResourceHandler {
	return &StudyResourceHandler{store: store, diagramLanguage: diagramLanguage}
}

// ListResources returns a list of available resources
func (h *StudyResourceHandler) ListResources(ctx context.Context) ([]*mcp.Resource, error) {
	docs, err := h.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	var resources []*mcp.Resource
	for _, doc := range docs {
		resources = append(resources,
			&mcp.Resource{
				URI:         fmt.Sprintf("study://%s", doc.DocumentID),
				Name:        fmt.Sprintf("%s (Study Guide)", doc.Title),
				Description: fmt.Sprintf("Study guide for %s", doc.Title),
				MIMEType:    "text/markdown",
			},
			&mcp.Resource{
				URI:         fmt.Sprintf("study://%s/outline", doc.DocumentID),
				Name:        fmt.Sprintf("%s (Outline)", doc.Title),
				Description: "Section outline with page assignments and synthesis warnings",
				MIMEType:    "application/json",
			},
			&mcp.Resource{
				URI:         fmt.Sprintf("study://%s/html", doc.DocumentID),
				Name:        fmt.Sprintf("%s (HTML)", doc.Title),
				Description: "Study guide rendered as a standalone HTML page",
				MIMEType:    "text/html",
			},
		)
	}
	return resources, nil
}

// ReadResource reads a specific resource by URI
func (h *StudyResourceHandler) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	// Parse URI: study://doc_id/optional_view
	if !strings.HasPrefix(uri, "study://") {
		return nil, fmt.Errorf("invalid URI scheme, expected study://")
	}

	path := strings.TrimPrefix(uri, "study://")
	docID, view, _ := strings.Cut(path, "/")
	if docID == "" {
		return nil, fmt.Errorf("invalid URI, missing document ID")
	}

	var content, mimeType string
	var err error

	switch view {
	case "":
		content, err = h.getMarkdown(ctx, docID)
		mimeType = "text/markdown"
	case "outline":
		content, err = h.getOutline(ctx, docID)
		mimeType = "application/json"
	case "html":
		content, err = operations.RenderHTML(ctx, h.store, docID, h.diagramLanguage)
		mimeType = "text/html"
	default:
		return nil, fmt.Errorf("unknown resource type: %s", view)
	}
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: mimeType,
				Text:     content,
			},
		},
	}, nil
}

func (h *StudyResourceHandler) getMarkdown(ctx context.Context, docID string) (string, error) {
	doc, err := h.store.GetStudyDocument(ctx, docID)
	if err != nil {
		return "", err
	}
	return doc.Markdown, nil
}

func (h *StudyResourceHandler) getOutline(ctx context.Context, docID string) (string, error) {
	doc, err := h.store.GetStudyDocument(ctx, docID)
	if err != nil {
		return "", err
	}

	outline := map[string]any{
		"document_id": docID,
		"title":       doc.Title,
		"page_count":  doc.PageCount,
		"cost_usd":    doc.Cost,
		"tree":        doc.Tree,
		"warnings":    doc.Warnings,
	}
	data, err := json.MarshalIndent(outline, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal outline: %w", err)
	}
	return string(data), nil
}
