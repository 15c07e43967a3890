package blobstore

import (
	"context"
	"fmt"

	"github.com/example/pivo/internal/db"
)

// Postgres keeps blobs in the kv_blobs table created by the migrations.
type Postgres struct{ db *db.DB }

func NewPostgres(d *db.DB) *Postgres { return &Postgres{db: d} }

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := p.db.QueryRow(ctx, `SELECT value FROM kv_blobs WHERE key=$1`, key).Scan(&v)
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %s: %w", key, err)
	}
	return v, nil
}

func (p *Postgres) Put(ctx context.Context, key string, value []byte) error {
	return p.db.Exec(ctx, `
INSERT INTO kv_blobs(key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`, key, value)
}
