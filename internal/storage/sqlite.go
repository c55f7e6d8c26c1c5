package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Epistemic-Technology/study-mcp/models"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables if they don't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS study_documents (
		id TEXT PRIMARY KEY,
		title TEXT,
		markdown TEXT NOT NULL,
		tree TEXT,
		cost REAL NOT NULL DEFAULT 0,
		warnings TEXT,
		page_count INTEGER NOT NULL DEFAULT 0,
		section_count INTEGER NOT NULL DEFAULT 0,
		zotero_id TEXT,
		url TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS study_images (
		document_id TEXT NOT NULL,
		storage_name TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (document_id, storage_name),
		FOREIGN KEY (document_id) REFERENCES study_documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_study_documents_zotero_id ON study_documents(zotero_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// StoreStudyDocument stores a synthesized document and its images
func (s *SQLiteStore) StoreStudyDocument(ctx context.Context, doc *models.StudyDocument, images []models.ImageAsset) error {
	if doc.DocumentID == "" {
		return errors.New("document id is required")
	}

	treeJSON, err := json.Marshal(doc.Tree)
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}
	warningsJSON, err := json.Marshal(doc.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO study_documents (id, title, markdown, tree, cost, warnings, page_count, section_count, zotero_id, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			markdown = excluded.markdown,
			tree = excluded.tree,
			cost = excluded.cost,
			warnings = excluded.warnings,
			page_count = excluded.page_count,
			section_count = excluded.section_count,
			zotero_id = excluded.zotero_id,
			url = excluded.url
	`, doc.DocumentID, doc.Title, doc.Markdown, string(treeJSON), doc.Cost, string(warningsJSON),
		doc.PageCount, doc.SectionCount, doc.SourceInfo.ZoteroID, doc.SourceInfo.URL)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM study_images WHERE document_id = ?`, doc.DocumentID); err != nil {
		return fmt.Errorf("failed to clear images: %w", err)
	}

	for _, img := range images {
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO study_images (document_id, storage_name, page_number, data)
			VALUES (?, ?, ?, ?)
		`, doc.DocumentID, img.StorageName, img.PageNumber, img.Bytes)
		if err != nil {
			return fmt.Errorf("failed to insert image %s: %w", img.StorageName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetStudyDocument retrieves a document by id
func (s *SQLiteStore) GetStudyDocument(ctx context.Context, docID string) (*models.StudyDocument, error) {
	doc := models.StudyDocument{DocumentID: docID}
	var treeJSON, warningsJSON string

	err := s.db.QueryRowContext(ctx, `
		SELECT title, markdown, tree, cost, warnings, page_count, section_count, zotero_id, url
		FROM study_documents
		WHERE id = ?
	`, docID).Scan(&doc.Title, &doc.Markdown, &treeJSON, &doc.Cost, &warningsJSON,
		&doc.PageCount, &doc.SectionCount, &doc.SourceInfo.ZoteroID, &doc.SourceInfo.URL)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	if err := json.Unmarshal([]byte(treeJSON), &doc.Tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tree: %w", err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &doc.Warnings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
	}

	return &doc, nil
}

// GetImages returns the stored image bytes keyed by storage name
func (s *SQLiteStore) GetImages(ctx context.Context, docID string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT storage_name, data
		FROM study_images
		WHERE document_id = ?
		ORDER BY page_number, storage_name
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	images := make(map[string][]byte)
	for rows.Next() {
		var name string
		var data []byte
		if err := rows.Scan(&name, &data); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images[name] = data
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}
	return images, nil
}

// DocumentExists reports whether a document with the id is stored
func (s *SQLiteStore) DocumentExists(ctx context.Context, docID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM study_documents WHERE id = ?`, docID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check document existence: %w", err)
	}
	return count > 0, nil
}

// ListDocuments returns all stored documents, newest first
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]models.DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, cost, page_count, zotero_id, url
		FROM study_documents
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var documents []models.DocumentInfo
	for rows.Next() {
		var doc models.DocumentInfo
		if err := rows.Scan(&doc.DocumentID, &doc.Title, &doc.Cost, &doc.PageCount,
			&doc.SourceInfo.ZoteroID, &doc.SourceInfo.URL); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return documents, nil
}

// DeleteDocument removes a document and its images
func (s *SQLiteStore) DeleteDocument(ctx context.Context, docID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM study_documents WHERE id = ?`, docID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GenerateDocumentID creates a stable document ID from the source. Raw
// uploads are identified by a hash of their content.
func GenerateDocumentID(sourceInfo models.SourceInfo, data []byte) string {
	if sourceInfo.ZoteroID != "" {
		return "zotero_" + sourceInfo.ZoteroID
	}
	if sourceInfo.URL != "" {
		return fmt.Sprintf("url_%08x", hashBytes([]byte(sourceInfo.URL)))
	}
	return fmt.Sprintf("raw_%08x_%d", hashBytes(data), len(data))
}

// hashBytes creates a simple hash of a byte slice
func hashBytes(b []byte) uint32 {
	var hash uint32
	for _, c := range b {
		hash = hash*31 + uint32(c)
	}
	return hash
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
