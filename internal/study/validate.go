package study

import (
	"fmt"
	"sort"

	"github.com/Epistemic-Technology/study-mcp/models"
)

// Overlap is one page claimed by two sibling nodes. First is the earlier
// claimant in tree order, Second the later one.
type Overlap struct {
	Page int `json:"page"`
	// Parent is the id of the node whose children overlap, empty for the top level
	Parent string `json:"parent,omitempty"`
	First  string `json:"first"`
	Second string `json:"second"`
}

// ParentMismatch is a node whose own pages differ from the union of its
// children's pages
type ParentMismatch struct {
	Node string `json:"node"`
	// NotInChildren lists the node's own pages that no child covers
	NotInChildren []int `json:"not_in_children,omitempty"`
	// OutsideParent lists child pages the node does not list itself
	OutsideParent []int `json:"outside_parent,omitempty"`
}

// ValidationReport lists partition problems. None of them stop the pipeline.
type ValidationReport struct {
	Uncovered []int     `json:"uncovered,omitempty"`
	Overlaps  []Overlap `json:"overlaps,omitempty"`
	// Unknown lists claimed pages that are not in the universe
	Unknown    []int            `json:"unknown,omitempty"`
	Mismatches []ParentMismatch `json:"mismatches,omitempty"`
}

// OK reports whether the tree covers the universe without overlaps or
// parent/child disagreements
func (r ValidationReport) OK() bool {
	return len(r.Uncovered) == 0 && len(r.Overlaps) == 0 && len(r.Unknown) == 0 && len(r.Mismatches) == 0
}

// Warnings renders the report as operator-facing lines
func (r ValidationReport) Warnings() []string {
	var warnings []string
	if len(r.Uncovered) > 0 {
		warnings = append(warnings, fmt.Sprintf("pages not covered by any section: %s", joinInts(r.Uncovered)))
	}
	for _, o := range r.Overlaps {
		scope := "top-level sections"
		if o.Parent != "" {
			scope = "subsections of " + o.Parent
		}
		warnings = append(warnings, fmt.Sprintf("page %d claimed by both %s and %s (%s)", o.Page, o.First, o.Second, scope))
	}
	if len(r.Unknown) > 0 {
		warnings = append(warnings, fmt.Sprintf("sections reference unknown pages: %s", joinInts(r.Unknown)))
	}
	for _, m := range r.Mismatches {
		if len(m.NotInChildren) > 0 {
			warnings = append(warnings, fmt.Sprintf("pages %s of section %s are in none of its subsections", joinInts(m.NotInChildren), m.Node))
		}
		if len(m.OutsideParent) > 0 {
			warnings = append(warnings, fmt.Sprintf("subsections of %s claim pages %s outside the section", m.Node, joinInts(m.OutsideParent)))
		}
	}
	return warnings
}

// ValidatePartition checks coverage of universe, same-level overlap and
// parent/child page agreement across the tree. Each check runs independently
// and nothing is corrected.
func ValidatePartition(tree *models.ContentTree, universe []int) ValidationReport {
	var report ValidationReport
	if tree == nil {
		report.Uncovered = append([]int(nil), universe...)
		return report
	}

	known := make(map[int]bool, len(universe))
	for _, p := range universe {
		known[p] = true
	}

	covered := make(map[int]bool)
	unknown := make(map[int]bool)
	tree.Walk(func(node *models.ContentNode, _ int) {
		for _, p := range node.Pages {
			covered[p] = true
			if !known[p] {
				unknown[p] = true
			}
		}
	})
	for _, p := range universe {
		if !covered[p] {
			report.Uncovered = append(report.Uncovered, p)
		}
	}
	report.Unknown = sortedKeys(unknown)

	report.Overlaps = siblingOverlaps("", tree.TopLevel)
	tree.Walk(func(node *models.ContentNode, _ int) {
		if len(node.Children) > 0 {
			report.Overlaps = append(report.Overlaps, siblingOverlaps(node.ID, node.Children)...)
			if m, ok := parentMismatch(node); ok {
				report.Mismatches = append(report.Mismatches, m)
			}
		}
	})
	return report
}

func parentMismatch(node *models.ContentNode) (ParentMismatch, bool) {
	own := make(map[int]bool, len(node.Pages))
	for _, p := range node.Pages {
		own[p] = true
	}
	fromChildren := make(map[int]bool)
	for _, child := range node.Children {
		for _, p := range child.TransitivePages() {
			fromChildren[p] = true
		}
	}

	m := ParentMismatch{Node: node.ID}
	for _, p := range sortedKeys(own) {
		if !fromChildren[p] {
			m.NotInChildren = append(m.NotInChildren, p)
		}
	}
	for _, p := range sortedKeys(fromChildren) {
		if !own[p] {
			m.OutsideParent = append(m.OutsideParent, p)
		}
	}
	return m, len(m.NotInChildren) > 0 || len(m.OutsideParent) > 0
}

// siblingOverlaps reports every pair of siblings sharing a page, once per page
func siblingOverlaps(parent string, siblings []*models.ContentNode) []Overlap {
	var overlaps []Overlap
	claimants := make(map[int][]string)
	for _, node := range siblings {
		for _, p := range node.TransitivePages() {
			for _, earlier := range claimants[p] {
				overlaps = append(overlaps, Overlap{Page: p, Parent: parent, First: earlier, Second: node.ID})
			}
			claimants[p] = append(claimants[p], node.ID)
		}
	}
	sort.SliceStable(overlaps, func(i, j int) bool {
		return overlaps[i].Page < overlaps[j].Page
	})
	return overlaps
}

func sortedKeys(set map[int]bool) []int {
	if len(set) == 0 {
		return nil
	}
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
