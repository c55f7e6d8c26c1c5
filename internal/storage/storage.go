package storage

import (
	"context"
	"errors"

	"github.com/Epistemic-Technology/study-mcp/models"
)

// ErrNotFound is returned when a document id is unknown
var ErrNotFound = errors.New("document not found")

// Store defines the interface for storing and retrieving study documents
type Store interface {
	// StoreStudyDocument stores a synthesized document and the images its
	// markdown may reference, replacing any earlier version with the same id
	StoreStudyDocument(ctx context.Context, doc *models.StudyDocument, images []models.ImageAsset) error

	// GetStudyDocument retrieves a document by id
	GetStudyDocument(ctx context.Context, docID string) (*models.StudyDocument, error)

	// GetImages returns the stored image bytes keyed by storage name
	GetImages(ctx context.Context, docID string) (map[string][]byte, error)

	// DocumentExists reports whether a document with the id is stored
	DocumentExists(ctx context.Context, docID string) (bool, error)

	// ListDocuments returns all stored documents, newest first
	ListDocuments(ctx context.Context) ([]models.DocumentInfo, error)

	// DeleteDocument removes a document and all associated data
	DeleteDocument(ctx context.Context, docID string) error

	// Close closes the database connection
	Close() error
}
