package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/internal/llm"
	"github.com/Epistemic-Technology/study-mcp/internal/logger"
	"github.com/Epistemic-Technology/study-mcp/internal/operations"
	"github.com/Epistemic-Technology/study-mcp/internal/storage"
	"github.com/Epistemic-Technology/study-mcp/resources"
	"github.com/Epistemic-Technology/study-mcp/tools"
)

func CreateServer(log logger.Logger, cfg config.Config) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "study-mcp", Version: "v0.1.0"}, nil)

	store, err := initializeStorage(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize storage: %v", err)
	}

	if err := cfg.RequireAPIKey(); err != nil {
		log.Warn("%v; study-synthesize will fail until it is set", err)
	}

	synth := &operations.Synthesizer{
		Store:     store,
		Generator: llm.NewOpenAIClient(cfg, log),
		Config:    cfg,
		Log:       log,
	}
	studyResourceHandler := resources.NewStudyResourceHandler(store, cfg.DiagramLanguage)

	mcp.AddTool(server, tools.StudySynthesizeTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.StudySynthesizeQuery) (*mcp.CallToolResult, *tools.StudySynthesizeResponse, error) {
		return tools.StudySynthesizeToolHandler(ctx, req, query, synth, log)
	})

	mcp.AddTool(server, tools.StudyListTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.StudyListQuery) (*mcp.CallToolResult, *tools.StudyListResponse, error) {
		return tools.StudyListToolHandler(ctx, req, query, store, log)
	})

	mcp.AddTool(server, tools.StudyDeleteTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.StudyDeleteQuery) (*mcp.CallToolResult, *tools.StudyDeleteResponse, error) {
		_, resp, err := tools.StudyDeleteToolHandler(ctx, req, query, store, log)
		if err == nil {
			server.RemoveResources("study://" + query.DocumentID)
		}
		return nil, resp, err
	})

	readResource := func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return studyResourceHandler.ReadResource(ctx, req.Params.URI)
	}

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "study://{documentId}",
		Name:        "study-guide",
		Description: "Synthesized study guide as markdown",
		MIMEType:    "text/markdown",
	}, readResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "study://{documentId}/outline",
		Name:        "study-outline",
		Description: "Section outline with page assignments, cost and synthesis warnings",
		MIMEType:    "application/json",
	}, readResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "study://{documentId}/html",
		Name:        "study-html",
		Description: "Study guide rendered as a standalone HTML page with embedded images and diagram",
		MIMEType:    "text/html",
	}, readResource)

	// Guides stored by earlier sessions are listed directly
	existing, err := studyResourceHandler.ListResources(context.Background())
	if err != nil {
		log.Warn("Failed to list stored study guides: %v", err)
	}
	for _, res := range existing {
		server.AddResource(res, readResource)
	}

	return server
}

// initializeStorage creates and initializes the storage backend
func initializeStorage(cfg config.Config, log logger.Logger) (storage.Store, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		// Default to ~/.study-mcp/study.db
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dbDir := filepath.Join(homeDir, ".study-mcp")
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dbPath = filepath.Join(dbDir, "study.db")
	}

	log.Info("Initializing SQLite database at: %s", dbPath)

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite store: %w", err)
	}

	return store, nil
}
