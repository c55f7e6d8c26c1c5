package study

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/internal/llm"
	"github.com/Epistemic-Technology/study-mcp/models"
)

// Target is one node that receives its own synthesized section
type Target struct {
	Node  *models.ContentNode
	Depth int
}

// SynthesisTargets lists the nodes that carry prose, in tree order. In
// leaves mode every leaf is a target; otherwise every top-level node is.
func SynthesisTargets(tree *models.ContentTree, mode string) []Target {
	var targets []Target
	if tree == nil {
		return targets
	}
	if mode != config.TargetsLeaves {
		for _, node := range tree.TopLevel {
			targets = append(targets, Target{Node: node})
		}
		return targets
	}
	tree.Walk(func(node *models.ContentNode, depth int) {
		if node.IsLeaf() {
			targets = append(targets, Target{Node: node, Depth: depth})
		}
	})
	return targets
}

type sectionPayload struct {
	MainText        string `json:"main_text"`
	ReviewQuestions string `json:"review_questions"`
	Glossary        string `json:"glossary"`
	Pitfalls        string `json:"pitfalls"`
}

// SynthesizeSections issues one request per synthesis target, all
// concurrently, and returns the results keyed by node id. Any failed or
// malformed response fails the whole stage.
func SynthesizeSections(ctx context.Context, rt Runtime, tree *models.ContentTree, pages []models.Page, descriptions *DescriptionSet) (map[string]models.SectionResult, error) {
	targets := SynthesisTargets(tree, rt.Config.SynthesisTargets)
	rt.Log.Info("Synthesizing %d sections", len(targets))

	byNumber := make(map[int]models.Page, len(pages))
	for _, page := range pages {
		byNumber[page.Number] = page
	}

	results, err := llm.FanOut(ctx, targets, rt.Config.MaxConcurrency, func(ctx context.Context, _ int, target Target) (models.SectionResult, error) {
		node := target.Node
		var nodePages []models.Page
		for _, number := range node.TransitivePages() {
			if page, ok := byNumber[number]; ok {
				nodePages = append(nodePages, page)
			}
		}

		prompt, allowed := sectionPrompt(sectionContext{
			summary:      tree.Summary,
			node:         node,
			depth:        target.Depth,
			pages:        nodePages,
			descriptions: descriptions,
		})
		resp, err := rt.generate(ctx, llm.Request{
			Purpose:         "section",
			Model:           rt.Config.Models.Section,
			Parts:           []llm.Part{llm.TextPart(prompt)},
			MaxOutputTokens: rt.Config.SectionMaxTokens,
			Temperature:     rt.temperature(),
			Output:          sectionOutput,
		})
		if err != nil {
			return models.SectionResult{}, fmt.Errorf("section %s %q: %w", node.ID, node.Title, err)
		}

		var payload sectionPayload
		if err := sectionOutput.Decode(resp.Text, &payload); err != nil {
			return models.SectionResult{}, fmt.Errorf("section %s %q: %w", node.ID, node.Title, err)
		}

		mainText, dropped := ScopeImageRefs(payload.MainText, allowed)
		if len(dropped) > 0 {
			rt.Log.Warn("Section %s referenced images outside its pages, removed: %s", node.ID, strings.Join(dropped, ", "))
		}
		return models.SectionResult{
			NodeID:          node.ID,
			MainText:        mainText,
			ReviewQuestions: payload.ReviewQuestions,
			Glossary:        payload.Glossary,
			Pitfalls:        payload.Pitfalls,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	sections := make(map[string]models.SectionResult, len(results))
	for _, res := range results {
		sections[res.NodeID] = res
	}
	return sections, nil
}

var imageRefPattern = regexp.MustCompile(`!\[([^\]]*)\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)

// ScopeImageRefs removes markdown image references whose file is not in
// allowed and returns the removed file names in order of appearance.
func ScopeImageRefs(markdown string, allowed map[string]bool) (string, []string) {
	var dropped []string
	scoped := imageRefPattern.ReplaceAllStringFunc(markdown, func(ref string) string {
		name := imageRefPattern.FindStringSubmatch(ref)[2]
		if allowed[name] {
			return ref
		}
		dropped = append(dropped, name)
		return ""
	})
	return scoped, dropped
}

// ImageRefs returns the distinct image files referenced by markdown, in order
// of first appearance
func ImageRefs(markdown string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range imageRefPattern.FindAllStringSubmatch(markdown, -1) {
		if !seen[m[2]] {
			seen[m[2]] = true
			names = append(names, m[2])
		}
	}
	return names
}
