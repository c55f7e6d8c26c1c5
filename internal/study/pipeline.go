package study

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Epistemic-Technology/study-mcp/internal/assets"
	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/internal/llm"
	"github.com/Epistemic-Technology/study-mcp/internal/logger"
	"github.com/Epistemic-Technology/study-mcp/models"
)

// Input is one document as produced by extraction
type Input struct {
	Title string
	Pages []models.Page
}

// Result is the output of a successful run
type Result struct {
	RunID        string
	Markdown     string
	Cost         float64
	InputTokens  int64
	OutputTokens int64
	Tree         *models.ContentTree
	Report       ValidationReport
	Dedup        assets.DedupStats
	Descriptions []models.ImageDescription
	Undescribed  []string
	Sections     map[string]models.SectionResult
	// Warnings collects every non-fatal diagnostic of the run
	Warnings []string
}

// Run executes the whole pipeline for one document. Any request or parse
// failure aborts the run and no document is produced.
func Run(ctx context.Context, gen llm.Generator, cfg config.Config, log logger.Logger, input Input) (*Result, error) {
	runID := uuid.NewString()
	rt := Runtime{
		Generator: gen,
		Config:    cfg,
		Ledger:    &llm.CostLedger{},
		Log:       log.With("run_id", runID),
	}

	pages := ContentPages(input.Pages)
	if len(pages) == 0 {
		return nil, ErrNoContent
	}
	rt.Log.Info("Starting synthesis of %d content pages (%d total)", len(pages), len(input.Pages))

	images, stats := assets.Deduplicate(assets.CollectImages(pages), cfg.MinImageDimension)
	rt.Log.Info("Kept %d images (%d decorative, %d duplicates removed)", len(images), stats.Decorative, stats.Duplicates)

	// Descriptions and the outline are independent; both must finish
	// before any section is synthesized.
	var (
		descriptions *DescriptionSet
		tree         *models.ContentTree
		g            errgroup.Group
	)
	g.Go(func() error {
		var err error
		descriptions, err = DescribeImages(ctx, rt, images, pages)
		return err
	})
	g.Go(func() error {
		var err error
		tree, err = Partition(ctx, rt, input.Title, pages)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("synthesis aborted: %w", err)
	}

	report := ValidatePartition(tree, PageNumbers(pages))
	warnings := report.Warnings()
	for _, w := range warnings {
		rt.Log.Warn("Partition: %s", w)
	}

	sections, err := SynthesizeSections(ctx, rt, tree, pages, descriptions)
	if err != nil {
		return nil, fmt.Errorf("synthesis aborted: %w", err)
	}

	markdown := Assemble(tree, sections, AssembleOptions{
		Title:           input.Title,
		Targets:         cfg.SynthesisTargets,
		DiagramLanguage: cfg.DiagramLanguage,
	})

	for _, model := range cfg.UnpricedModels() {
		w := fmt.Sprintf("no rate entry for model %q; its requests are not costed", model)
		rt.Log.Warn("Cost: %s", w)
		warnings = append(warnings, w)
	}
	if len(descriptions.Undescribed) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d image(s) have no description", len(descriptions.Undescribed)))
	}

	in, out := rt.Ledger.Tokens()
	cost := rt.Ledger.Total()
	rt.Log.Info("Synthesis complete: %d sections, %d input / %d output tokens, $%.4f", len(sections), in, out, cost)

	return &Result{
		RunID:        runID,
		Markdown:     markdown,
		Cost:         cost,
		InputTokens:  in,
		OutputTokens: out,
		Tree:         tree,
		Report:       report,
		Dedup:        stats,
		Descriptions: descriptions.Descriptions,
		Undescribed:  descriptions.Undescribed,
		Sections:     sections,
		Warnings:     warnings,
	}, nil
}
