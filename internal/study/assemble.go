package study

import (
	"strings"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/models"
)

const defaultTitle = "Study Guide"

// AssembleOptions controls how sections are merged
type AssembleOptions struct {
	Title           string
	Targets         string
	DiagramLanguage string
}

// Assemble merges section results into one markdown document. Sections appear
// in tree order; a target without a result is skipped. Appendices are only
// written when they have content.
func Assemble(tree *models.ContentTree, sections map[string]models.SectionResult, opts AssembleOptions) string {
	var b strings.Builder

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = defaultTitle
	}
	b.WriteString("# " + title + "\n\n")
	if tree == nil {
		return b.String()
	}

	if summary := strings.TrimSpace(tree.Summary); summary != "" {
		b.WriteString(summary + "\n\n")
	}

	if strings.TrimSpace(tree.RelationshipDiagram) != "" {
		lang := opts.DiagramLanguage
		if lang == "" {
			lang = "mermaid"
		}
		diagram := strings.TrimRight(tree.RelationshipDiagram, "\n")
		b.WriteString("```" + lang + "\n" + diagram + "\n```\n\n")
	}

	var questions, glossary, pitfalls []string
	appendNode := func(node *models.ContentNode) {
		res, ok := sections[node.ID]
		if !ok {
			return
		}
		if text := strings.TrimSpace(res.MainText); text != "" {
			b.WriteString(text + "\n\n")
		}
		questions = appendNonEmpty(questions, res.ReviewQuestions)
		glossary = appendNonEmpty(glossary, res.Glossary)
		pitfalls = appendNonEmpty(pitfalls, res.Pitfalls)
	}

	if opts.Targets == config.TargetsLeaves {
		tree.Walk(func(node *models.ContentNode, depth int) {
			if node.IsLeaf() {
				appendNode(node)
				return
			}
			b.WriteString(strings.Repeat("#", depth+2) + " " + node.Title + "\n\n")
		})
	} else {
		for _, node := range tree.TopLevel {
			appendNode(node)
		}
	}

	writeAppendix(&b, "Review Questions", questions)
	writeAppendix(&b, "Glossary", glossary)
	writeAppendix(&b, "Common Pitfalls", pitfalls)

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func appendNonEmpty(blocks []string, block string) []string {
	if block = strings.TrimSpace(block); block != "" {
		return append(blocks, block)
	}
	return blocks
}

func writeAppendix(b *strings.Builder, heading string, blocks []string) {
	if len(blocks) == 0 {
		return
	}
	b.WriteString("## " + heading + "\n\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\n")
}
