package labelstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend keeps label documents as JSONB rows. Concurrent writers to
// one image are serialized by a row lock, so several processes may share it.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend connects to the database and ensures the schema exists.
func NewPostgresBackend(ctx context.Context, connString string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS label_documents (
			image_id TEXT PRIMARY KEY,
			doc JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}

// Load returns the stored document, empty if the image has none.
func (p *PostgresBackend) Load(ctx context.Context, imageID string) (Document, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, "SELECT doc FROM label_documents WHERE image_id = $1", imageID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return Document{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeDocument(imageID, raw), nil
}

// Update locks the image's row, runs fn and writes the result in the same
// transaction.
func (p *PostgresBackend) Update(ctx context.Context, imageID string, fn func(Document) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "INSERT INTO label_documents (image_id) VALUES ($1) ON CONFLICT (image_id) DO NOTHING", imageID)
	if err != nil {
		return err
	}

	var raw []byte
	// FOR UPDATE serializes writers of the same image across connections
	err = tx.QueryRow(ctx, "SELECT doc FROM label_documents WHERE image_id = $1 FOR UPDATE", imageID).Scan(&raw)
	if err != nil {
		return err
	}

	doc := decodeDocument(imageID, raw)
	if err := fn(doc); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize label document: %w", err)
	}
	_, err = tx.Exec(ctx, "UPDATE label_documents SET doc = $1::jsonb, updated_at = NOW() WHERE image_id = $2", string(data), imageID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Reset drops the label table.
func (p *PostgresBackend) Reset(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, "DROP TABLE IF EXISTS label_documents")
	return err
}

// Close closes the connection pool.
func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}

func decodeDocument(imageID string, raw []byte) Document {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		log.Printf("labelstore: corrupt document for %s, starting empty: %v", imageID, err)
		return Document{}
	}
	return doc
}
