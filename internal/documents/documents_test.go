package documents

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Epistemic-Technology/study-mcp/models"
)

func TestDetectDocumentType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{
			name:     "PDF document",
			data:     []byte("%PDF-1.4\nsome pdf content"),
			expected: "pdf",
		},
		{
			name:     "HTML with whitespace",
			data:     []byte("  \n  <html><body>test</body></html>"),
			expected: "text/html",
		},
		{
			name:     "ZIP file",
			data:     []byte{0x50, 0x4B, 0x03, 0x04, 0x00, 0x00, 0x00, 0x00},
			expected: "application/zip",
		},
		{
			name:     "Plain text",
			data:     []byte("This is just plain text content"),
			expected: "text/plain",
		},
		{
			name:     "Binary data",
			data:     []byte{0x00, 0x01, 0x02, 0x03},
			expected: "application/octet-stream",
		},
		{
			name:     "Empty data",
			data:     []byte{},
			expected: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectDocumentType(tt.data); got != tt.expected {
				t.Errorf("DetectDocumentType() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRequirePDF(t *testing.T) {
	require.NoError(t, RequirePDF([]byte("%PDF-1.7\n")))

	err := RequirePDF([]byte("<html></html>"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotPDF))
	assert.Contains(t, err.Error(), "text/html")
}

func TestGetData_FromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/paper.pdf":
			w.Write([]byte("%PDF-1.4\n%%EOF"))
		case "/page.html":
			w.Write([]byte("<!doctype html><html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	data, err := GetData(ctx, models.SourceInfo{URL: srv.URL + "/paper.pdf"}, ZoteroCredentials{})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4\n%%EOF", string(data))

	_, err = GetData(ctx, models.SourceInfo{URL: srv.URL + "/page.html"}, ZoteroCredentials{})
	assert.ErrorIs(t, err, ErrNotPDF)

	_, err = GetData(ctx, models.SourceInfo{URL: srv.URL + "/missing.pdf"}, ZoteroCredentials{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestGetData_NoSource(t *testing.T) {
	_, err := GetData(context.Background(), models.SourceInfo{}, ZoteroCredentials{})
	assert.EqualError(t, err, "no data provided")
}

func TestGetFromZotero_RequiresCredentials(t *testing.T) {
	_, err := GetFromZotero(context.Background(), "ABCD1234", ZoteroCredentials{LibraryID: "1"})
	assert.Error(t, err)
}

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "Cell Biology", titleFromFilename("Cell Biology.PDF"))
	assert.Equal(t, "Lecture notes", titleFromFilename(" Lecture notes "))
}
