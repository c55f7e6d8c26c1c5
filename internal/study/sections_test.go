package study

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/internal/llm"
	"github.com/Epistemic-Technology/study-mcp/models"
)

func nestedTree() *models.ContentTree {
	return &models.ContentTree{
		Summary: "Overview.",
		TopLevel: []*models.ContentNode{
			node("1", []int{1, 2}, node("1.1", []int{1}), node("1.2", []int{2})),
			node("2", []int{3}),
		},
	}
}

func targetIDs(targets []Target) []string {
	ids := make([]string, len(targets))
	for i, target := range targets {
		ids[i] = target.Node.ID
	}
	return ids
}

func TestSynthesisTargets(t *testing.T) {
	tree := nestedTree()
	assert.Equal(t, []string{"1", "2"}, targetIDs(SynthesisTargets(tree, config.TargetsTopLevel)))
	assert.Equal(t, []string{"1", "2"}, targetIDs(SynthesisTargets(tree, "")))

	leaves := SynthesisTargets(tree, config.TargetsLeaves)
	assert.Equal(t, []string{"1.1", "1.2", "2"}, targetIDs(leaves))
	assert.Equal(t, 1, leaves[0].Depth)
	assert.Equal(t, 0, leaves[2].Depth)
}

func TestScopeImageRefs(t *testing.T) {
	allowed := map[string]bool{"page001_img01.png": true}
	text := "Intro ![Cell](page001_img01.png) and ![](page009_img02.png) end ![x]( page001_img01.png \"t\")"

	scoped, dropped := ScopeImageRefs(text, allowed)
	assert.Equal(t, "Intro ![Cell](page001_img01.png) and  end ![x]( page001_img01.png \"t\")", scoped)
	assert.Equal(t, []string{"page009_img02.png"}, dropped)
}

func TestSynthesizeSections(t *testing.T) {
	tree := nestedTree()
	img := testImage("a", 1, 1)
	dup := testImage("b", 2, 1)
	pages := []models.Page{
		{Number: 1, Text: "One", Images: []models.ImageAsset{img}},
		{Number: 2, Text: "Two", Images: []models.ImageAsset{dup}},
		{Number: 3, Text: "Three"},
	}
	// b was removed as a duplicate so only a survives
	descriptions := newDescriptionSet([]models.ImageAsset{img})
	descriptions.byID["a"] = models.ImageDescription{ImageID: "a", PageNumber: 1, Text: "A labelled cell."}

	var mu sync.Mutex
	prompts := map[string]string{}
	gen := &fakeGenerator{section: func(req llm.Request) (string, error) {
		title := sectionTitle(req)
		mu.Lock()
		prompts[title] = promptText(req)
		mu.Unlock()
		data, _ := json.Marshal(sectionPayload{
			MainText: "## " + title + "\n\n![cell](a.png) ![other](b.png) ![far](zzz.png)",
		})
		return string(data), nil
	}}
	sections, err := SynthesizeSections(context.Background(), testRuntime(gen), tree, pages, descriptions)
	require.NoError(t, err)
	require.Len(t, sections, 2)

	first := prompts["Section 1"]
	assert.Contains(t, first, "This section covers pages: 1, 2")
	assert.Contains(t, first, "[Image file: a.png]\nA labelled cell.")
	assert.NotContains(t, first, "b.png")
	assert.Contains(t, first, "- Section 1.1 (pages 1)")

	assert.Equal(t, "## Section 1\n\n![cell](a.png)  ", sections["1"].MainText)
	assert.Equal(t, "## Section 2\n\n  ", sections["2"].MainText)
}

func TestSynthesizeSections_FailureIsFatal(t *testing.T) {
	tests := []struct {
		name    string
		handler func(llm.Request) (string, error)
		target  error
	}{
		{
			name:    "transport",
			handler: func(llm.Request) (string, error) { return "", llm.ErrRequestTimeout },
			target:  llm.ErrRequestTimeout,
		},
		{
			name:    "malformed",
			handler: func(llm.Request) (string, error) { return `{"main_text":"x"}`, nil },
			target:  llm.ErrMalformedResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{section: func(req llm.Request) (string, error) {
				if sectionTitle(req) == "Section 2" {
					return tt.handler(req)
				}
				return echoSection(req)
			}}
			sections, err := SynthesizeSections(context.Background(), testRuntime(gen), nestedTree(), textPages(3), newDescriptionSet(nil))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
			assert.Nil(t, sections)
			assert.Equal(t, 2, gen.count("section"))
		})
	}
}

func TestImageRefs(t *testing.T) {
	md := "![a](one.png) text ![b](two.png)\n![again](one.png)"
	assert.Equal(t, []string{"one.png", "two.png"}, ImageRefs(md))
	assert.Empty(t, ImageRefs("no images"))
}
