package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS document_descriptors (
	local_id   TEXT PRIMARY KEY,
	deal_id    TEXT NOT NULL,
	remote_id  TEXT,
	status     TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS document_descriptors_deal_idx ON document_descriptors (deal_id, created_at);
`

// Saves older than the stored row are dropped so out-of-order checkpoint
// writes cannot regress a descriptor.
const upsertDescriptor = `
INSERT INTO document_descriptors (local_id, deal_id, remote_id, status, data, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
ON CONFLICT (local_id) DO UPDATE SET
	remote_id  = EXCLUDED.remote_id,
	status     = EXCLUDED.status,
	data       = EXCLUDED.data,
	updated_at = EXCLUDED.updated_at
WHERE document_descriptors.updated_at <= EXCLUDED.updated_at
`

// PostgresStore persists descriptor checkpoints in PostgreSQL. Uploaded file
// content is never stored.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed checkpoint store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the checkpoint table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate document_descriptors: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, d *models.Descriptor) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	_, err = s.pool.Exec(ctx, upsertDescriptor,
		string(d.LocalID),
		d.DealID,
		d.RemoteID,
		string(d.Status),
		data,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save descriptor %s: %w", d.LocalID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, localID models.LocalID) (*models.Descriptor, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM document_descriptors WHERE local_id = $1`, string(localID),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find descriptor %s: %w", localID, err)
	}
	return decodeDescriptor(data)
}

func (s *PostgresStore) LoadDeal(ctx context.Context, dealID string) ([]*models.Descriptor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM document_descriptors WHERE deal_id = $1 ORDER BY created_at, local_id`, dealID,
	)
	if err != nil {
		return nil, fmt.Errorf("load descriptors for deal %s: %w", dealID, err)
	}
	defer rows.Close()

	var out []*models.Descriptor
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}
		d, err := decodeDescriptor(data)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptors: %w", err)
	}
	return out, nil
}

func decodeDescriptor(data []byte) (*models.Descriptor, error) {
	var d models.Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal descriptor: %w", err)
	}
	if d.Mismatch != nil {
		d.Mismatch.LocalID = d.LocalID
	}
	return &d, nil
}
