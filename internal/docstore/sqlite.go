package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite database. Documents are
// stored as JSON in a single table keyed by (collection, key).
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    key TEXT NOT NULL,
    data TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch()),
    PRIMARY KEY (collection, key)
);

CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, collection, key string) (*Document, error) {
	var doc Document
	var data string
	var updatedAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT key, data, updated_at FROM documents WHERE collection = ? AND key = ?`,
		collection, SanitizeKey(key),
	).Scan(&doc.Key, &data, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.Data = json.RawMessage(data)
	doc.UpdatedAt = time.Unix(updatedAt, 0)

	return &doc, nil
}

func (s *SQLiteStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, data, updated_at FROM documents WHERE collection = ? ORDER BY key`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (s *SQLiteStore) Set(ctx context.Context, collection, key string, data any) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, key, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (collection, key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, SanitizeKey(key), string(encoded), now,
	)
	if err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, collection, key string, partial map[string]any) error {
	doc, err := s.Get(ctx, collection, key)
	if err != nil {
		return err
	}

	var merged map[string]any
	if err := json.Unmarshal(doc.Data, &merged); err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}
	for k, v := range partial {
		merged[k] = v
	}

	return s.Set(ctx, collection, key, merged)
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, key string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND key = ?`,
		collection, SanitizeKey(key),
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *SQLiteStore) QueryByField(ctx context.Context, collection, field, op string, value any) ([]Document, error) {
	var cmp string
	switch op {
	case OpEqual:
		cmp = "="
	case OpNotEqual:
		cmp = "!="
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		cmp = op
	default:
		return nil, fmt.Errorf("unsupported query operator: %q", op)
	}

	query := fmt.Sprintf(
		`SELECT key, data, updated_at FROM documents
		 WHERE collection = ? AND json_extract(data, '$.' || ?) %s ? ORDER BY key`, cmp)

	rows, err := s.db.QueryContext(ctx, query, collection, field, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var doc Document
		var data string
		var updatedAt int64

		if err := rows.Scan(&doc.Key, &data, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		doc.Data = json.RawMessage(data)
		doc.UpdatedAt = time.Unix(updatedAt, 0)
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	return docs, nil
}
