package study

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Epistemic-Technology/study-mcp/internal/llm"
	"github.com/Epistemic-Technology/study-mcp/models"
)

type outlinePayload struct {
	Summary  string           `json:"summary"`
	Sections []outlineSection `json:"sections"`
	Diagram  string           `json:"diagram"`
}

type outlineSection struct {
	Title       string              `json:"title"`
	Pages       []int               `json:"pages"`
	Subsections []outlineSubsection `json:"subsections"`
}

// outlineSubsection is one level below a top-level section; the outline
// schema does not allow deeper nesting
type outlineSubsection struct {
	Title string `json:"title"`
	Pages []int  `json:"pages"`
}

// ContentPages keeps the pages with text or at least one image
func ContentPages(pages []models.Page) []models.Page {
	content := make([]models.Page, 0, len(pages))
	for _, page := range pages {
		if page.HasContent() {
			content = append(content, page)
		}
	}
	return content
}

// PageNumbers returns the page numbers in order
func PageNumbers(pages []models.Page) []int {
	numbers := make([]int, len(pages))
	for i, page := range pages {
		numbers[i] = page.Number
	}
	return numbers
}

// Partition asks for the whole content tree in one request. A response that
// does not match the outline schema is fatal.
func Partition(ctx context.Context, rt Runtime, title string, pages []models.Page) (*models.ContentTree, error) {
	rt.Log.Info("Partitioning %d pages into an outline", len(pages))
	resp, err := rt.generate(ctx, llm.Request{
		Purpose:         "outline",
		Model:           rt.Config.Models.Outline,
		Parts:           []llm.Part{llm.TextPart(outlinePrompt(title, pages))},
		MaxOutputTokens: rt.Config.OutlineMaxTokens,
		Temperature:     rt.temperature(),
		Output:          outlineOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("partition: %w", err)
	}

	tree, err := ParseOutline(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("partition: %w", err)
	}
	rt.Log.Info("Outline has %d top-level sections", len(tree.TopLevel))
	return tree, nil
}

// ParseOutline decodes an outline response into a content tree and assigns
// node ids in depth-first order ("1", "1.1", "1.2", "2", ...).
func ParseOutline(text string) (*models.ContentTree, error) {
	var payload outlinePayload
	if err := outlineOutput.Decode(text, &payload); err != nil {
		return nil, err
	}
	if len(payload.Sections) == 0 {
		return nil, fmt.Errorf("%w: outline has no sections", llm.ErrMalformedResponse)
	}

	tree := &models.ContentTree{
		Summary:             strings.TrimSpace(payload.Summary),
		RelationshipDiagram: payload.Diagram,
	}
	for i, section := range payload.Sections {
		node, err := buildNode(section, fmt.Sprintf("%d", i+1))
		if err != nil {
			return nil, err
		}
		tree.TopLevel = append(tree.TopLevel, node)
	}
	return tree, nil
}

func buildNode(section outlineSection, id string) (*models.ContentNode, error) {
	node, err := newNode(id, section.Title, section.Pages)
	if err != nil {
		return nil, err
	}
	for i, sub := range section.Subsections {
		child, err := newNode(fmt.Sprintf("%s.%d", id, i+1), sub.Title, sub.Pages)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func newNode(id, title string, pages []int) (*models.ContentNode, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: section %s has no title", llm.ErrMalformedResponse, id)
	}
	return &models.ContentNode{
		ID:    id,
		Title: title,
		Pages: normalizePages(pages),
	}, nil
}

// normalizePages sorts and removes duplicates
func normalizePages(pages []int) []int {
	if len(pages) == 0 {
		return []int{}
	}
	sorted := append([]int(nil), pages...)
	sort.Ints(sorted)
	out := sorted[:1]
	for _, p := range sorted[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}
