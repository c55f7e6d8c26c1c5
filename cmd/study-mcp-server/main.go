package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/internal/logger"
	"github.com/Epistemic-Technology/study-mcp/server"
)

func main() {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	// Initialize logger with default configuration
	log, err := logger.NewLogger(logger.LogConfig{})
	if err != nil {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: %v", err)
	}

	log.Info("Starting study-mcp server")

	srv := server.CreateServer(log, cfg)
	err = srv.Run(context.Background(), &mcp.StdioTransport{})
	if err != nil {
		log.Fatal("Server failed: %v", err)
	}
}
