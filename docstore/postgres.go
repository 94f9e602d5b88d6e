package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"gofalre.io/bulls/driver"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_created_idx ON documents (collection, created_at);
`

var _ Store = (*Postgres)(nil)

// Postgres keeps every collection in a single JSONB table.
type Postgres struct {
	conn   driver.PostgresPool
	tm     *driver.TransactionManager
	logger *zap.Logger
}

func NewPostgres(conn driver.PostgresPool, tm *driver.TransactionManager, logger *zap.Logger) *Postgres {
	return &Postgres{
		conn:   conn,
		tm:     tm,
		logger: logger,
	}
}

// EnsureSchema creates the documents table and its index if missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	return s.tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, schema); err != nil {
			s.logger.Error("Failed to ensure documents schema", zap.Error(err))
			return fmt.Errorf("ensure schema: %w", err)
		}
		return nil
	})
}

func (s *Postgres) List(ctx context.Context, collection string, filter Filter) ([]*Document, error) {
	query := `SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1`
	args := []any{collection}
	if filter.Field != "" {
		query += ` AND data->>$2 = $3`
		args = append(args, filter.Field, filter.Equals)
	}
	if filter.NewestFirst {
		query += ` ORDER BY created_at DESC, id`
	} else {
		query += ` ORDER BY created_at, id`
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to list documents", zap.String("collection", collection), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err = rows.Err(); err != nil {
		s.logger.Error("Failed to read documents", zap.String("collection", collection), zap.Error(err))
		return nil, err
	}
	return docs, nil
}

func (s *Postgres) Get(ctx context.Context, collection, id string) (*Document, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to get document", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return doc, nil
}

func (s *Postgres) Create(ctx context.Context, collection string, data map[string]any) (*Document, error) {
	payload, err := encode(data)
	if err != nil {
		return nil, err
	}

	doc := &Document{ID: uuid.NewString(), Data: data}
	err = s.conn.QueryRow(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb) RETURNING created_at, updated_at`,
		collection, doc.ID, payload).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		s.logger.Error("Failed to create document", zap.String("collection", collection), zap.Error(err))
		return nil, err
	}
	return doc, nil
}

func (s *Postgres) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	payload, err := encode(data)
	if err != nil {
		return err
	}

	update := `EXCLUDED.data`
	if merge {
		update = `documents.data || EXCLUDED.data`
	}
	_, err = s.conn.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE SET data = `+update+`, updated_at = now()`,
		collection, id, payload)
	if err != nil {
		s.logger.Error("Failed to set document", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *Postgres) Patch(ctx context.Context, collection, id string, fields map[string]any) error {
	payload, err := encode(fields)
	if err != nil {
		return err
	}

	tag, err := s.conn.Exec(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`,
		collection, id, payload)
	if err != nil {
		s.logger.Error("Failed to patch document", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.conn.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		s.logger.Error("Failed to delete document", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func scanDocument(row pgx.Row) (*Document, error) {
	var (
		doc  Document
		data []byte
	)
	if err := row.Scan(&doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &doc.Data); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	if doc.Data == nil {
		doc.Data = make(map[string]any)
	}
	return &doc, nil
}

func encode(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(stripTimestamps(data))
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

// stripTimestamps drops the store-maintained fields so they never end up
// duplicated inside data.
func stripTimestamps(data map[string]any) map[string]any {
	_, hasCreated := data["createdAt"]
	_, hasUpdated := data["updatedAt"]
	if !hasCreated && !hasUpdated {
		return data
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if k == "createdAt" || k == "updatedAt" {
			continue
		}
		out[k] = v
	}
	return out
}
