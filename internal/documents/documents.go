// Package documents fetches source documents from Zotero or a URL.
package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Epistemic-Technology/study-mcp/models"
	"github.com/Epistemic-Technology/zotero/zotero"
)

// ErrNotPDF is returned when fetched data is not a PDF document
var ErrNotPDF = errors.New("source is not a PDF document")

// ZoteroCredentials grants access to a user library
type ZoteroCredentials struct {
	APIKey    string
	LibraryID string
}

// DetectDocumentType returns "pdf" for PDF data and the sniffed media type
// for anything else
func DetectDocumentType(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return "pdf"
	}
	mediaType, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return mediaType
}

// RequirePDF reports ErrNotPDF, with the detected type, for anything but a PDF
func RequirePDF(data []byte) error {
	if docType := DetectDocumentType(data); docType != "pdf" {
		return fmt.Errorf("%w (detected %s)", ErrNotPDF, docType)
	}
	return nil
}

// GetData retrieves the PDF named by sourceInfo
func GetData(ctx context.Context, sourceInfo models.SourceInfo, creds ZoteroCredentials) ([]byte, error) {
	var data []byte
	var err error

	if sourceInfo.ZoteroID != "" {
		data, err = GetFromZotero(ctx, sourceInfo.ZoteroID, creds)
		if err != nil {
			return nil, err
		}
	} else if sourceInfo.URL != "" {
		data, err = GetFromURL(ctx, sourceInfo.URL)
		if err != nil {
			return nil, err
		}
	} else {
		return nil, errors.New("no data provided")
	}

	if len(data) == 0 {
		return nil, errors.New("no data retrieved")
	}
	if err := RequirePDF(data); err != nil {
		return nil, err
	}
	return data, nil
}

// GetFromURL fetches document data from a URL
func GetFromURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// GetFromZotero fetches an attachment file from a Zotero library
func GetFromZotero(ctx context.Context, zoteroID string, creds ZoteroCredentials) ([]byte, error) {
	if creds.APIKey == "" || creds.LibraryID == "" {
		return nil, errors.New("ZOTERO_API_KEY and ZOTERO_LIBRARY_ID must be set to fetch from Zotero")
	}
	client := zotero.NewClient(creds.LibraryID, zotero.LibraryTypeUser, zotero.WithAPIKey(creds.APIKey))
	data, err := client.File(ctx, zoteroID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Zotero item %s: %w", zoteroID, err)
	}
	return data, nil
}
