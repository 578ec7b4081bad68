package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresRepository stores records in the documents table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository ensures the schema exists and returns a repository.
func NewPostgresRepository(ctx context.Context, db *sql.DB) (*PostgresRepository, error) {
	if db == nil {
		return nil, errors.New("documents: nil database")
	}
	if err := ensureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure documents schema: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT NOT NULL,
		convert_to TEXT NOT NULL,
		client_name TEXT NOT NULL DEFAULT '',
		size_bytes BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at);`,
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, doc *Document) error {
	prepare(doc)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, location, convert_to, client_name, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		doc.ID, doc.Name, doc.Location, doc.ConvertTo, doc.ClientName, doc.SizeBytes, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc Document
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, location, convert_to, client_name, size_bytes, created_at
		FROM documents WHERE id = $1;`, id,
	).Scan(&doc.ID, &doc.Name, &doc.Location, &doc.ConvertTo, &doc.ClientName, &doc.SizeBytes, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document %s: %w", id, err)
	}
	return &doc, nil
}
