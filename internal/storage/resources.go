package storage

import (
	"fmt"

	"github.com/Epistemic-Technology/study-mcp/models"
)

// CalculateResourcePaths lists the resource URIs available for a stored
// study document.
func CalculateResourcePaths(doc *models.StudyDocument) []string {
	resourcePaths := []string{
		fmt.Sprintf("study://%s", doc.DocumentID),
		fmt.Sprintf("study://%s/html", doc.DocumentID),
	}
	if doc.Tree != nil && len(doc.Tree.TopLevel) > 0 {
		resourcePaths = append(resourcePaths, fmt.Sprintf("study://%s/outline", doc.DocumentID))
	}
	return resourcePaths
}
