// Package study turns extracted pages into a single study document: image
// description, outline partitioning and validation, per-section synthesis,
// and assembly.
package study

import (
	"context"
	"errors"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/internal/llm"
	"github.com/Epistemic-Technology/study-mcp/internal/logger"
)

// ErrNoContent is returned when no page carries text or images
var ErrNoContent = errors.New("document has no content-bearing pages")

// Runtime carries the collaborators shared by every stage of one run
type Runtime struct {
	Generator llm.Generator
	Config    config.Config
	Ledger    *llm.CostLedger
	Log       logger.Logger
}

func (rt Runtime) temperature() *float64 {
	if rt.Config.Temperature < 0 {
		return nil
	}
	t := rt.Config.Temperature
	return &t
}

// generate issues req and records its cost against the model's rate table
func (rt Runtime) generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := rt.Generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	cost := rt.Ledger.Record(resp, rt.Config.RatesFor(req.Model))
	rt.Log.Debug("%s request used %d input / %d output tokens ($%.4f)", req.Purpose, resp.InputTokens, resp.OutputTokens, cost)
	return resp, nil
}
