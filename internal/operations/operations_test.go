package operations

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/internal/documents"
	"github.com/Epistemic-Technology/study-mcp/internal/llm"
	"github.com/Epistemic-Technology/study-mcp/internal/logger"
	"github.com/Epistemic-Technology/study-mcp/internal/storage"
	"github.com/Epistemic-Technology/study-mcp/models"
)

var samplePDF = []byte("%PDF-1.4\n% test document\n")

const pngMagic = "\x89PNG\r\n\x1a\n"

type scriptedGenerator struct {
	calls atomic.Int32
}

func (g *scriptedGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	g.calls.Add(1)
	var text string
	switch req.Purpose {
	case "describe":
		text = "A labelled diagram of a cell."
	case "outline":
		text = `{"summary":"About cells.","sections":[{"title":"Cells","pages":[1,2],"subsections":[]}],"diagram":"flowchart TD\n  Cell --> Membrane"}`
	case "section":
		text = `{"main_text":"## Cells\n\n![Cell](page001_img01.png)","review_questions":"- What is a cell?","glossary":"","pitfalls":""}`
	default:
		return nil, errors.New("unexpected request")
	}
	return &llm.Response{Text: text, InputTokens: 100, OutputTokens: 50}, nil
}

func testPages(data []byte) ([]models.Page, error) {
	img := models.ImageAsset{
		ID:          "page001_img01",
		PageNumber:  1,
		PixelWidth:  400,
		PixelHeight: 300,
		ByteLength:  len(pngMagic),
		Bytes:       []byte(pngMagic),
		StorageName: "page001_img01.png",
	}
	return []models.Page{
		{Number: 1, Text: "Cells are the unit of life.", Images: []models.ImageAsset{img}},
		{Number: 2, Text: "Membranes enclose cells."},
	}, nil
}

func newSynthesizer(t *testing.T) (*Synthesizer, *scriptedGenerator) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "study.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gen := &scriptedGenerator{}
	return &Synthesizer{
		Store:     store,
		Generator: gen,
		Config:    config.Default(),
		Log:       logger.NewNoOpLogger(),
		Extract:   testPages,
	}, gen
}

func TestGetOrSynthesize(t *testing.T) {
	ctx := context.Background()
	s, gen := newSynthesizer(t)

	first, err := s.GetOrSynthesize(ctx, SynthesizeRequest{RawData: samplePDF, Title: "Cells 101"})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	doc := first.Document
	assert.Equal(t, storage.GenerateDocumentID(models.SourceInfo{}, samplePDF), doc.DocumentID)
	assert.Equal(t, "Cells 101", doc.Title)
	assert.Equal(t, 2, doc.PageCount)
	assert.Contains(t, doc.Markdown, "# Cells 101")
	assert.Contains(t, doc.Markdown, "![Cell](page001_img01.png)")
	assert.Greater(t, doc.Cost, 0.0)
	assert.Equal(t, int32(3), gen.calls.Load())

	images, err := s.Store.GetImages(ctx, doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"page001_img01.png": []byte(pngMagic)}, images)

	second, err := s.GetOrSynthesize(ctx, SynthesizeRequest{RawData: samplePDF})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, doc.Markdown, second.Document.Markdown)
	assert.Equal(t, int32(3), gen.calls.Load())

	forced, err := s.GetOrSynthesize(ctx, SynthesizeRequest{RawData: samplePDF, Force: true})
	require.NoError(t, err)
	assert.False(t, forced.Cached)
	assert.Equal(t, int32(6), gen.calls.Load())
}

func TestGetOrSynthesize_InvalidRequests(t *testing.T) {
	s, gen := newSynthesizer(t)
	ctx := context.Background()

	_, err := s.GetOrSynthesize(ctx, SynthesizeRequest{})
	assert.Error(t, err)

	_, err = s.GetOrSynthesize(ctx, SynthesizeRequest{URL: "https://example.com/a.pdf", RawData: samplePDF})
	assert.Error(t, err)

	_, err = s.GetOrSynthesize(ctx, SynthesizeRequest{RawData: []byte("<html></html>")})
	assert.ErrorIs(t, err, documents.ErrNotPDF)

	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestGetOrSynthesize_FailureStoresNothing(t *testing.T) {
	s, _ := newSynthesizer(t)
	s.Generator = llmFunc(func(req llm.Request) (*llm.Response, error) {
		if req.Purpose == "outline" {
			return &llm.Response{Text: "not json"}, nil
		}
		return (&scriptedGenerator{}).Generate(context.Background(), req)
	})

	_, err := s.GetOrSynthesize(context.Background(), SynthesizeRequest{RawData: samplePDF})
	assert.ErrorIs(t, err, llm.ErrMalformedResponse)

	docs, err := s.Store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRenderHTML(t *testing.T) {
	ctx := context.Background()
	s, _ := newSynthesizer(t)

	res, err := s.GetOrSynthesize(ctx, SynthesizeRequest{RawData: samplePDF, Title: "Cells"})
	require.NoError(t, err)

	out, err := RenderHTML(ctx, s.Store, res.Document.DocumentID, "mermaid")
	require.NoError(t, err)
	assert.Contains(t, out, "<title>Cells</title>")
	assert.Contains(t, out, `<pre class="mermaid">`)
	assert.Contains(t, out, "data:image/png;base64,")

	_, err = RenderHTML(ctx, s.Store, "missing", "mermaid")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReferencedImages(t *testing.T) {
	pages, _ := testPages(nil)
	assert.Len(t, ReferencedImages("![x](page001_img01.png)", pages), 1)
	assert.Empty(t, ReferencedImages("no images", pages))
}

type llmFunc func(req llm.Request) (*llm.Response, error)

func (f llmFunc) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	return f(req)
}
