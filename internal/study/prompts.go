package study

import (
	"fmt"
	"strings"

	"github.com/Epistemic-Technology/study-mcp/internal/llm"
	"github.com/Epistemic-Technology/study-mcp/models"
)

const imageMarkerPrefix = "<<<IMAGE "

// imageMarker is the delimiter line that opens one image's block in a
// description response
func imageMarker(id string) string {
	return imageMarkerPrefix + id + ">>>"
}

var (
	pageListSchema = map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "integer"},
	}

	outlineOutput = llm.MustStructuredOutput("content_outline", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"sections": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title": map[string]any{"type": "string"},
						"pages": pageListSchema,
						"subsections": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"title": map[string]any{"type": "string"},
									"pages": pageListSchema,
								},
								"required":             []string{"title", "pages"},
								"additionalProperties": false,
							},
						},
					},
					"required":             []string{"title", "pages", "subsections"},
					"additionalProperties": false,
				},
			},
			"diagram": map[string]any{"type": "string"},
		},
		"required":             []string{"summary", "sections", "diagram"},
		"additionalProperties": false,
	})

	sectionOutput = llm.MustStructuredOutput("study_section", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"main_text":        map[string]any{"type": "string"},
			"review_questions": map[string]any{"type": "string"},
			"glossary":         map[string]any{"type": "string"},
			"pitfalls":         map[string]any{"type": "string"},
		},
		"required":             []string{"main_text", "review_questions", "glossary", "pitfalls"},
		"additionalProperties": false,
	})
)

func describePrompt(batch Batch) string {
	var b strings.Builder
	b.WriteString(`You are preparing study material from a document. Describe each of the images that follow so a student who cannot see them understands what they show.

For every image:
- Explain what it depicts and what it teaches. Transcribe any text, labels, axes, or values that matter.
- For charts and diagrams, describe the structure and the relationships or trends shown.
- Use the page context to interpret the image, but describe the image itself.

Output format (strict):
- One block per image, in the same order as the images are given.
- Each block starts on its own line with the marker exactly as shown for that image, followed by the description in markdown.
- Do not add any text before the first marker.
`)
	for _, img := range batch.Images {
		fmt.Fprintf(&b, "\n%s  (page %d, file %s)", imageMarker(img.ID), img.PageNumber, img.StorageName)
	}
	b.WriteString("\n")
	return b.String()
}

func describeImageContext(img models.ImageAsset, pageText string) string {
	pageText = strings.TrimSpace(pageText)
	if pageText == "" {
		return fmt.Sprintf("Image %s from page %d. The page has no text.", imageMarker(img.ID), img.PageNumber)
	}
	return fmt.Sprintf("Image %s from page %d. Page context:\n%s", imageMarker(img.ID), img.PageNumber, pageText)
}

func outlinePrompt(title string, pages []models.Page) string {
	var b strings.Builder
	b.WriteString(`Organize the following document into a study outline and return it in the specified JSON structure.

1. "summary": two to four sentences describing what the document covers.

2. "sections": the ordered top-level sections of the study guide.
   - Each section has a short descriptive "title" and the exact list of page numbers it covers in "pages".
   - Every page listed below must belong to exactly one top-level section. Sections must not share pages.
   - Follow the document's own order; a section should normally cover a contiguous run of pages.
   - "subsections" optionally split a section into topics. Each subsection's pages must be a subset of its section's pages, and subsections of the same section must not share pages. Use an empty array when a section needs no split.

3. "diagram": a Mermaid flowchart (no code fences) showing how the sections and key concepts relate. Use "flowchart TD" and quote labels that contain punctuation.
`)
	if title != "" {
		fmt.Fprintf(&b, "\nDocument title: %s\n", title)
	}
	b.WriteString("\nDocument pages:\n")
	for _, page := range pages {
		fmt.Fprintf(&b, "\n=== Page %d ===\n", page.Number)
		if text := strings.TrimSpace(page.Text); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
		if len(page.Images) > 0 {
			fmt.Fprintf(&b, "[%d image(s) on this page]\n", len(page.Images))
		}
	}
	return b.String()
}

// sectionContext is everything a single section request needs
type sectionContext struct {
	summary      string
	node         *models.ContentNode
	depth        int
	pages        []models.Page
	descriptions *DescriptionSet
}

func sectionPrompt(sc sectionContext) (prompt string, allowed map[string]bool) {
	allowed = make(map[string]bool)
	declared := sc.node.TransitivePages()

	var b strings.Builder
	heading := strings.Repeat("#", sc.depth+2)
	fmt.Fprintf(&b, `Write the study guide section "%s" from the source pages below and return it in the specified JSON structure.

1. "main_text": a self-contained markdown section.
   - Start with the heading line "%s %s". Use deeper heading levels for any subsections.
   - Teach the material: explain concepts, definitions, procedures, and examples clearly. Do not just summarize page by page.
   - Where a figure helps, embed it with ![short caption](file) using ONLY the image files listed for these pages.
   - Use LaTeX ($...$) for formulas and markdown tables where useful.

2. "review_questions": a markdown list of 3-6 questions (with brief answers) testing this section.

3. "glossary": a markdown list of key terms from this section as "**term**: definition". Use an empty string if there are none.

4. "pitfalls": a markdown list of common mistakes or misconceptions about this section. Use an empty string if there are none.

This section covers pages: %s
`, sc.node.Title, heading, sc.node.Title, joinInts(declared))

	if sc.summary != "" {
		fmt.Fprintf(&b, "\nWhole document summary (context only): %s\n", sc.summary)
	}
	if len(sc.node.Children) > 0 {
		b.WriteString("\nPlanned subsections:\n")
		for _, child := range sc.node.Children {
			fmt.Fprintf(&b, "- %s (pages %s)\n", child.Title, joinInts(child.TransitivePages()))
		}
	}

	b.WriteString("\nSource pages:\n")
	for _, page := range sc.pages {
		fmt.Fprintf(&b, "\n=== Page %d ===\n", page.Number)
		if text := strings.TrimSpace(page.Text); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
		for _, img := range page.Images {
			if !sc.descriptions.Surviving(img.ID) {
				continue
			}
			allowed[img.StorageName] = true
			fmt.Fprintf(&b, "\n[Image file: %s]\n%s\n", img.StorageName, sc.descriptions.TextFor(img.ID))
		}
	}
	return b.String(), allowed
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
