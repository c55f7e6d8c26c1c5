package models

import (
	"sort"
	"strings"
)

// Page is one unit of the source document in canonical document order.
// Number is 1-based and contiguous across the run.
type Page struct {
	Number int          `json:"number"`
	Text   string       `json:"text,omitempty"`
	Images []ImageAsset `json:"images,omitempty"`
}

// HasContent reports whether the page carries text or at least one image
func (p Page) HasContent() bool {
	return len(p.Images) > 0 || strings.TrimSpace(p.Text) != ""
}

// ImageAsset is one extracted image. PixelWidth, PixelHeight, ByteLength and
// Fingerprint describe the bytes as extracted; Bytes holds the re-encoded
// image that is sent and stored.
type ImageAsset struct {
	ID          string `json:"id"`
	PageNumber  int    `json:"page_number"`
	PixelWidth  int    `json:"pixel_width"`
	PixelHeight int    `json:"pixel_height"`
	ByteLength  int    `json:"byte_length"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Bytes       []byte `json:"-"`
	StorageName string `json:"storage_name"`
}

type ImageDescription struct {
	ImageID    string `json:"image_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// Tier selects which model and rate table describe an image
type Tier string

const (
	TierSimple  Tier = "simple"
	TierComplex Tier = "complex"
)

// ContentNode is one entry of the hierarchical outline. Each parent owns its
// children exclusively.
type ContentNode struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Pages    []int          `json:"pages"`
	Children []*ContentNode `json:"children,omitempty"`
}

// Walk visits the node and its descendants depth-first, left to right.
func (n *ContentNode) Walk(fn func(node *ContentNode, depth int)) {
	n.walk(fn, 0)
}

func (n *ContentNode) walk(fn func(*ContentNode, int), depth int) {
	if n == nil {
		return
	}
	fn(n, depth)
	for _, child := range n.Children {
		child.walk(fn, depth+1)
	}
}

// TransitivePages returns the node's own pages unioned with every
// descendant's pages, sorted ascending.
func (n *ContentNode) TransitivePages() []int {
	seen := make(map[int]bool)
	n.Walk(func(node *ContentNode, _ int) {
		for _, p := range node.Pages {
			seen[p] = true
		}
	})
	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// IsLeaf reports whether the node has no children
func (n *ContentNode) IsLeaf() bool {
	return len(n.Children) == 0
}

type ContentTree struct {
	Summary             string         `json:"summary"`
	TopLevel            []*ContentNode `json:"top_level"`
	RelationshipDiagram string         `json:"relationship_diagram,omitempty"`
}

// Walk visits every node of the tree in stored depth-first, left-to-right order.
func (t *ContentTree) Walk(fn func(node *ContentNode, depth int)) {
	if t == nil {
		return
	}
	for _, node := range t.TopLevel {
		node.Walk(fn)
	}
}

type SectionResult struct {
	NodeID          string `json:"node_id"`
	MainText        string `json:"main_text"`
	ReviewQuestions string `json:"review_questions"`
	Glossary        string `json:"glossary"`
	Pitfalls        string `json:"pitfalls"`
}

// SourceInfo contains information about where the source document came from
type SourceInfo struct {
	ZoteroID string `json:"zotero_id,omitempty"`
	URL      string `json:"url,omitempty"`
}

// StudyDocument is a synthesized study document as persisted
type StudyDocument struct {
	DocumentID string       `json:"document_id"`
	Title      string       `json:"title,omitempty"`
	Markdown   string       `json:"markdown"`
	Tree       *ContentTree `json:"tree,omitempty"`
	Cost       float64      `json:"cost"`
	Warnings   []string     `json:"warnings,omitempty"`
	PageCount  int          `json:"page_count"`
	// SectionCount is the number of synthesized sections, which depends on
	// the target mode of the run
	SectionCount int        `json:"section_count"`
	SourceInfo   SourceInfo `json:"source_info,omitempty"`
}

// DocumentInfo contains basic information about a stored study document
type DocumentInfo struct {
	DocumentID string     `json:"document_id"`
	Title      string     `json:"title,omitempty"`
	Cost       float64    `json:"cost"`
	PageCount  int        `json:"page_count"`
	SourceInfo SourceInfo `json:"source_info,omitempty"`
}
