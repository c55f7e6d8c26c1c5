package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/study-mcp/internal/logger"
	"github.com/Epistemic-Technology/study-mcp/internal/storage"
)

type StudyDeleteQuery struct {
	DocumentID string `json:"document_id" jsonschema:"ID of the stored study guide, as returned by study-synthesize or study-list"`
}

type StudyDeleteResponse struct {
	DocumentID string `json:"document_id"`
	Deleted    bool   `json:"deleted"`
}

func StudyDeleteTool() *mcp.Tool {
	inputschema, err := jsonschema.For[StudyDeleteQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "study-delete",
		Description: "Delete a stored study guide and its images. The next study-synthesize call for the same source runs the pipeline again.",
		InputSchema: inputschema,
	}
}

func StudyDeleteToolHandler(ctx context.Context, req *mcp.CallToolRequest, query StudyDeleteQuery, store storage.Store, log logger.Logger) (*mcp.CallToolResult, *StudyDeleteResponse, error) {
	log.Info("study-delete tool called for %s", query.DocumentID)
	if err := store.DeleteDocument(ctx, query.DocumentID); err != nil {
		log.Error("study-delete tool failed: %v", err)
		return nil, nil, err
	}
	return nil, &StudyDeleteResponse{DocumentID: query.DocumentID, Deleted: true}, nil
}
