package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/internal/llm"
	"github.com/Epistemic-Technology/study-mcp/internal/logger"
	"github.com/Epistemic-Technology/study-mcp/internal/operations"
	"github.com/Epistemic-Technology/study-mcp/internal/storage"
	"github.com/Epistemic-Technology/study-mcp/models"
)

type cannedGenerator struct{}

func (cannedGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	text := `{"main_text":"## Overview\n\nText.","review_questions":"","glossary":"","pitfalls":""}`
	if req.Purpose == "outline" {
		text = `{"summary":"Short.","sections":[{"title":"Overview","pages":[1],"subsections":[]},{"title":"Details","pages":[2],"subsections":[]}],"diagram":""}`
	}
	return &llm.Response{Text: text, InputTokens: 10, OutputTokens: 10}, nil
}

func newTestSynthesizer(t *testing.T) *operations.Synthesizer {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "study.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &operations.Synthesizer{
		Store:     store,
		Generator: cannedGenerator{},
		Config:    config.Default(),
		Log:       logger.NewNoOpLogger(),
		Extract: func([]byte) ([]models.Page, error) {
			return []models.Page{{Number: 1, Text: "One"}, {Number: 2, Text: "Two"}}, nil
		},
	}
}

func TestToolSchemas(t *testing.T) {
	synth := StudySynthesizeTool()
	assert.Equal(t, "study-synthesize", synth.Name)
	assert.NotNil(t, synth.InputSchema)
	assert.Equal(t, "study-list", StudyListTool().Name)
	assert.Equal(t, "study-delete", StudyDeleteTool().Name)
}

func TestStudySynthesizeToolHandler(t *testing.T) {
	ctx := context.Background()
	synth := newTestSynthesizer(t)
	log := logger.NewNoOpLogger()

	_, resp, err := StudySynthesizeToolHandler(ctx, nil, StudySynthesizeQuery{RawData: []byte("%PDF-1.7\n"), Title: "Notes"}, synth, log)
	require.NoError(t, err)
	assert.Equal(t, "Notes", resp.Title)
	assert.Equal(t, 2, resp.PageCount)
	assert.Equal(t, 2, resp.SectionCount)
	assert.False(t, resp.Cached)
	assert.Contains(t, resp.ResourcePaths, "study://"+resp.DocumentID+"/outline")

	_, list, err := StudyListToolHandler(ctx, nil, StudyListQuery{}, synth.Store, log)
	require.NoError(t, err)
	require.Len(t, list.Documents, 1)
	assert.Equal(t, resp.DocumentID, list.Documents[0].DocumentID)
	assert.Equal(t, "study://"+resp.DocumentID, list.Documents[0].URI)
}

func TestStudySynthesizeToolHandler_CountsLeafSections(t *testing.T) {
	ctx := context.Background()
	synth := newTestSynthesizer(t)
	synth.Generator = nestedGenerator{}
	synth.Config.SynthesisTargets = config.TargetsLeaves
	log := logger.NewNoOpLogger()

	query := StudySynthesizeQuery{RawData: []byte("%PDF-1.7\n")}
	_, resp, err := StudySynthesizeToolHandler(ctx, nil, query, synth, log)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.SectionCount)

	// A cached guide reports the count of the run that produced it
	synth.Config.SynthesisTargets = config.TargetsTopLevel
	_, cached, err := StudySynthesizeToolHandler(ctx, nil, query, synth, log)
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, 2, cached.SectionCount)
}

type nestedGenerator struct{}

func (nestedGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	text := `{"main_text":"### Part\n\nText.","review_questions":"","glossary":"","pitfalls":""}`
	if req.Purpose == "outline" {
		text = `{"summary":"Short.","sections":[{"title":"Whole","pages":[1,2],"subsections":[{"title":"First","pages":[1]},{"title":"Second","pages":[2]}]}],"diagram":""}`
	}
	return &llm.Response{Text: text, InputTokens: 10, OutputTokens: 10}, nil
}

func TestStudyDeleteToolHandler(t *testing.T) {
	ctx := context.Background()
	synth := newTestSynthesizer(t)
	log := logger.NewNoOpLogger()

	_, created, err := StudySynthesizeToolHandler(ctx, nil, StudySynthesizeQuery{RawData: []byte("%PDF-1.7\n")}, synth, log)
	require.NoError(t, err)

	_, resp, err := StudyDeleteToolHandler(ctx, nil, StudyDeleteQuery{DocumentID: created.DocumentID}, synth.Store, log)
	require.NoError(t, err)
	assert.True(t, resp.Deleted)

	exists, err := synth.Store.DocumentExists(ctx, created.DocumentID)
	require.NoError(t, err)
	assert.False(t, exists)

	_, _, err = StudyDeleteToolHandler(ctx, nil, StudyDeleteQuery{DocumentID: created.DocumentID}, synth.Store, log)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStudySynthesizeToolHandler_InvalidInput(t *testing.T) {
	_, resp, err := StudySynthesizeToolHandler(context.Background(), nil, StudySynthesizeQuery{}, newTestSynthesizer(t), logger.NewNoOpLogger())
	assert.Error(t, err)
	assert.Nil(t, resp)
}
