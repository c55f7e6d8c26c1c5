package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/study-mcp/internal/logger"
	"github.com/Epistemic-Technology/study-mcp/internal/storage"
	"github.com/Epistemic-Technology/study-mcp/models"
)

type StudyListQuery struct{}

type StudyListResponse struct {
	Documents []StudyListEntry `json:"documents"`
}

type StudyListEntry struct {
	DocumentID string            `json:"document_id"`
	Title      string            `json:"title,omitempty"`
	URI        string            `json:"uri"`
	PageCount  int               `json:"page_count"`
	Cost       float64           `json:"cost_usd"`
	SourceInfo models.SourceInfo `json:"source_info"`
}

func StudyListTool() *mcp.Tool {
	inputschema, err := jsonschema.For[StudyListQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "study-list",
		Description: "List the stored study guides with their source, page count, synthesis cost and resource URI.",
		InputSchema: inputschema,
	}
}

func StudyListToolHandler(ctx context.Context, req *mcp.CallToolRequest, query StudyListQuery, store storage.Store, log logger.Logger) (*mcp.CallToolResult, *StudyListResponse, error) {
	log.Info("study-list tool called")
	docs, err := store.ListDocuments(ctx)
	if err != nil {
		log.Error("study-list tool failed: %v", err)
		return nil, nil, err
	}

	entries := make([]StudyListEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, StudyListEntry{
			DocumentID: doc.DocumentID,
			Title:      doc.Title,
			URI:        fmt.Sprintf("study://%s", doc.DocumentID),
			PageCount:  doc.PageCount,
			Cost:       doc.Cost,
			SourceInfo: doc.SourceInfo,
		})
	}
	return nil, &StudyListResponse{Documents: entries}, nil
}
