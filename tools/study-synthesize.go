package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/study-mcp/internal/logger"
	"github.com/Epistemic-Technology/study-mcp/internal/operations"
	"github.com/Epistemic-Technology/study-mcp/internal/storage"
)

type StudySynthesizeQuery struct {
	ZoteroID string `json:"zotero_id,omitempty" jsonschema:"Zotero attachment key of the PDF"`
	URL      string `json:"url,omitempty" jsonschema:"URL of the PDF"`
	RawData  []byte `json:"raw_data,omitempty" jsonschema:"Base64-encoded PDF bytes"`
	Title    string `json:"title,omitempty" jsonschema:"Title for the study guide; defaults to the Zotero title"`
	Force    bool   `json:"force,omitempty" jsonschema:"Re-synthesize even if a study guide is already stored"`
}

type StudySynthesizeResponse struct {
	DocumentID    string   `json:"document_id"`
	ResourcePaths []string `json:"resource_paths"`
	Title         string   `json:"title,omitempty"`
	PageCount     int      `json:"page_count"`
	SectionCount  int      `json:"section_count"`
	Cost          float64  `json:"cost_usd"`
	Cached        bool     `json:"cached"`
	Warnings      []string `json:"warnings,omitempty"`
}

func StudySynthesizeTool() *mcp.Tool {
	inputschema, err := jsonschema.For[StudySynthesizeQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "study-synthesize",
		Description: "Turn a PDF (from Zotero, a URL, or raw bytes) into a study guide: images are described, pages are organized into a validated outline, each section is written with review questions, a glossary and common pitfalls, and everything is merged into one markdown document with a concept diagram. Stored guides are returned without a new run unless force is set. Read the guide through the returned resource paths.",
		InputSchema: inputschema,
	}
}

func StudySynthesizeToolHandler(ctx context.Context, req *mcp.CallToolRequest, query StudySynthesizeQuery, synth *operations.Synthesizer, log logger.Logger) (*mcp.CallToolResult, *StudySynthesizeResponse, error) {
	log.Info("study-synthesize tool called")
	result, err := synth.GetOrSynthesize(ctx, operations.SynthesizeRequest{
		ZoteroID: query.ZoteroID,
		URL:      query.URL,
		RawData:  query.RawData,
		Title:    query.Title,
		Force:    query.Force,
	})
	if err != nil {
		log.Error("study-synthesize tool failed: %v", err)
		return nil, nil, err
	}

	doc := result.Document
	return nil, &StudySynthesizeResponse{
		DocumentID:    doc.DocumentID,
		ResourcePaths: storage.CalculateResourcePaths(doc),
		Title:         doc.Title,
		PageCount:     doc.PageCount,
		SectionCount:  doc.SectionCount,
		Cost:          doc.Cost,
		Cached:        result.Cached,
		Warnings:      doc.Warnings,
	}, nil
}
