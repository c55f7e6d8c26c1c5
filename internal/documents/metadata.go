package documents

import (
	"context"
	"fmt"
	"strings"

	"github.com/Epistemic-Technology/zotero/zotero"
)

// FetchZoteroTitle returns the title of a Zotero item. For an attachment the
// parent item's title is used. An orphaned attachment yields its own title.
func FetchZoteroTitle(ctx context.Context, zoteroID string, creds ZoteroCredentials) (string, error) {
	if zoteroID == "" || creds.APIKey == "" || creds.LibraryID == "" {
		return "", fmt.Errorf("zoteroID, apiKey, and libraryID are required")
	}

	client := zotero.NewClient(creds.LibraryID, zotero.LibraryTypeUser, zotero.WithAPIKey(creds.APIKey))

	item, err := client.Item(ctx, zoteroID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch Zotero item %s: %w", zoteroID, err)
	}

	if item.Data.ItemType == "attachment" && item.Data.ParentItem != "" {
		parentItem, err := client.Item(ctx, item.Data.ParentItem, nil)
		if err != nil {
			return "", fmt.Errorf("failed to fetch parent item %s: %w", item.Data.ParentItem, err)
		}
		item = parentItem
	}

	return titleFromFilename(item.Data.Title), nil
}

// titleFromFilename strips a trailing ".pdf" that attachment titles often carry
func titleFromFilename(title string) string {
	title = strings.TrimSpace(title)
	if strings.HasSuffix(strings.ToLower(title), ".pdf") {
		title = strings.TrimSpace(title[:len(title)-4])
	}
	return title
}
