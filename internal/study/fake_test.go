package study

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/internal/llm"
	"github.com/Epistemic-Technology/study-mcp/internal/logger"
	"github.com/Epistemic-Technology/study-mcp/models"
)

const testModel = "test-model"

// fakeGenerator answers requests by purpose and records every request it sees
type fakeGenerator struct {
	mu       sync.Mutex
	requests []llm.Request

	describe func(req llm.Request) (string, error)
	outline  func(req llm.Request) (string, error)
	section  func(req llm.Request) (string, error)
	// delay per section title, to force out-of-order completion
	sectionDelay map[string]time.Duration
}

func (f *fakeGenerator) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	var handler func(llm.Request) (string, error)
	switch req.Purpose {
	case "describe":
		handler = f.describe
	case "outline":
		handler = f.outline
	case "section":
		handler = f.section
		if d, ok := f.sectionDelay[sectionTitle(req)]; ok {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if handler == nil {
		return nil, fmt.Errorf("unexpected %s request", req.Purpose)
	}
	text, err := handler(req)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Text: text, InputTokens: 1000, OutputTokens: 500}, nil
}

func (f *fakeGenerator) count(purpose string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		if req.Purpose == purpose {
			n++
		}
	}
	return n
}

var (
	markerPattern  = regexp.MustCompile(`<<<IMAGE ([^>]+)>>>`)
	sectionPattern = regexp.MustCompile(`Write the study guide section "([^"]+)"`)
)

func promptText(req llm.Request) string {
	var b strings.Builder
	for _, part := range req.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

func sectionTitle(req llm.Request) string {
	if m := sectionPattern.FindStringSubmatch(promptText(req)); m != nil {
		return m[1]
	}
	return ""
}

// echoDescriptions answers a describe request with one block per marker in
// the instruction part
func echoDescriptions(req llm.Request) (string, error) {
	var b strings.Builder
	for _, m := range markerPattern.FindAllStringSubmatch(req.Parts[0].Text, -1) {
		fmt.Fprintf(&b, "%s\nDescription of %s.\n\n", m[0], m[1])
	}
	return b.String(), nil
}

func outlineJSON(summary, diagram string, sections ...outlineSection) string {
	data, _ := json.Marshal(outlinePayload{Summary: summary, Sections: sections, Diagram: diagram})
	return string(data)
}

func section(title string, pages ...int) outlineSection {
	return outlineSection{Title: title, Pages: pages, Subsections: []outlineSubsection{}}
}

func withSubsections(s outlineSection, subs ...outlineSubsection) outlineSection {
	s.Subsections = append(s.Subsections, subs...)
	return s
}

func subsection(title string, pages ...int) outlineSubsection {
	return outlineSubsection{Title: title, Pages: pages}
}

func echoSection(req llm.Request) (string, error) {
	title := sectionTitle(req)
	data, _ := json.Marshal(sectionPayload{
		MainText:        fmt.Sprintf("## %s\n\nBody of %s.", title, title),
		ReviewQuestions: "- Question about " + title,
		Glossary:        "",
		Pitfalls:        "",
	})
	return string(data), nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Models = config.Models{SimpleImage: testModel, ComplexImage: testModel, Outline: testModel, Section: testModel}
	cfg.Rates = map[string]config.Rates{testModel: {InputPerMillion: 1, OutputPerMillion: 2}}
	return cfg
}

func testRuntime(gen llm.Generator) Runtime {
	return Runtime{
		Generator: gen,
		Config:    testConfig(),
		Ledger:    &llm.CostLedger{},
		Log:       logger.NewNoOpLogger(),
	}
}

func testImage(id string, page int, fill byte) models.ImageAsset {
	data := make([]byte, 2048)
	for i := range data {
		data[i] = fill
	}
	return models.ImageAsset{
		ID:          id,
		PageNumber:  page,
		PixelWidth:  400,
		PixelHeight: 300,
		ByteLength:  len(data),
		Bytes:       data,
		StorageName: id + ".png",
	}
}

func textPages(n int) []models.Page {
	pages := make([]models.Page, n)
	for i := range pages {
		pages[i] = models.Page{Number: i + 1, Text: fmt.Sprintf("Text of page %d.", i+1)}
	}
	return pages
}
