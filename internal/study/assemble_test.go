package study

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/models"
)

func TestAssemble_TreeOrder(t *testing.T) {
	tree := &models.ContentTree{
		Summary:             "What this covers.",
		RelationshipDiagram: "flowchart TD\n  A --> B\n",
		TopLevel: []*models.ContentNode{
			node("1", []int{1}),
			node("2", []int{2}),
			node("3", []int{3}),
		},
	}
	sections := map[string]models.SectionResult{
		"3": {NodeID: "3", MainText: "## Third", Glossary: "**c**: third"},
		"1": {NodeID: "1", MainText: "## First\n", ReviewQuestions: "- Q1", Glossary: "**a**: first"},
		"2": {NodeID: "2", MainText: "## Second", ReviewQuestions: "  ", Pitfalls: "- P2"},
	}

	got := Assemble(tree, sections, AssembleOptions{Title: "Cells", DiagramLanguage: "mermaid"})
	want := `# Cells

What this covers.

` + "```mermaid\nflowchart TD\n  A --> B\n```" + `

## First

## Second

## Third

## Review Questions

- Q1

## Glossary

**a**: first

**c**: third

## Common Pitfalls

- P2
`
	assert.Equal(t, want, got)
}

func TestAssemble_SkipsMissingAndEmptyAppendices(t *testing.T) {
	tree := &models.ContentTree{TopLevel: []*models.ContentNode{node("1", []int{1}), node("2", []int{2})}}
	sections := map[string]models.SectionResult{
		"2": {NodeID: "2", MainText: "## Only", ReviewQuestions: "\n", Glossary: "", Pitfalls: " "},
	}

	got := Assemble(tree, sections, AssembleOptions{})
	assert.Equal(t, "# Study Guide\n\n## Only\n", got)
	assert.NotContains(t, got, "```")
	assert.NotContains(t, got, "Review Questions")
}

func TestAssemble_LeavesModeHeadsContainers(t *testing.T) {
	sections := map[string]models.SectionResult{
		"1.1": {MainText: "### Terms"},
		"1.2": {MainText: "### Rules"},
		"2":   {MainText: "## Practice"},
	}
	got := Assemble(nestedTree(), sections, AssembleOptions{Targets: config.TargetsLeaves})

	order := []string{"Overview.", "## Section 1\n", "### Terms", "### Rules", "## Practice"}
	last := -1
	for _, fragment := range order {
		idx := strings.Index(got, fragment)
		assert.Greater(t, idx, last, "fragment %q out of order", fragment)
		last = idx
	}
}
