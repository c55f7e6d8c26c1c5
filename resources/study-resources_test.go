package resources

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Epistemic-Technology/study-mcp/internal/storage"
	"github.com/Epistemic-Technology/study-mcp/models"
)

func newHandler(t *testing.T) *StudyResourceHandler {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "study.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	doc := &models.StudyDocument{
		DocumentID: "doc1",
		Title:      "Cells",
		Markdown:   "# Cells\n\n```mermaid\nflowchart TD\n  A --> B\n```\n\n## Membranes\n",
		Tree: &models.ContentTree{
			Summary:  "About cells.",
			TopLevel: []*models.ContentNode{{ID: "1", Title: "Membranes", Pages: []int{1}}},
		},
		Warnings:  []string{"pages not covered by any section: 2"},
		PageCount: 2,
	}
	require.NoError(t, store.StoreStudyDocument(context.Background(), doc, nil))
	return NewStudyResourceHandler(store, "mermaid")
}

func TestReadResource(t *testing.T) {
	ctx := context.Background()
	h := newHandler(t)

	res, err := h.ReadResource(ctx, "study://doc1")
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "text/markdown", res.Contents[0].MIMEType)
	assert.Contains(t, res.Contents[0].Text, "## Membranes")

	res, err = h.ReadResource(ctx, "study://doc1/outline")
	require.NoError(t, err)
	var outline struct {
		Tree     models.ContentTree `json:"tree"`
		Warnings []string           `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &outline))
	assert.Equal(t, "Membranes", outline.Tree.TopLevel[0].Title)
	assert.Len(t, outline.Warnings, 1)

	res, err = h.ReadResource(ctx, "study://doc1/html")
	require.NoError(t, err)
	assert.Equal(t, "text/html", res.Contents[0].MIMEType)
	assert.Contains(t, res.Contents[0].Text, `<pre class="mermaid">`)
}

func TestReadResource_Errors(t *testing.T) {
	ctx := context.Background()
	h := newHandler(t)

	_, err := h.ReadResource(ctx, "pdf://doc1")
	assert.Error(t, err)
	_, err = h.ReadResource(ctx, "study://doc1/pages")
	assert.Error(t, err)
	_, err = h.ReadResource(ctx, "study://missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListResources(t *testing.T) {
	resources, err := newHandler(t).ListResources(context.Background())
	require.NoError(t, err)
	require.Len(t, resources, 3)
	assert.Equal(t, "study://doc1", resources[0].URI)
	assert.Equal(t, "study://doc1/html", resources[2].URI)
}
