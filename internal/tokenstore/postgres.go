package tokenstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool the postgres store needs; pgxmock
// pools satisfy it too.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres keeps credentials in the client_credentials table
// (see migrations/001_client_credentials.sql).
type Postgres struct {
	db    Querier
	scope string
}

// NewPostgres returns a store for scope. A nil querier yields an inert store.
func NewPostgres(db Querier, scope string) *Postgres {
	return &Postgres{db: db, scope: scope}
}

func (p *Postgres) Get(ctx context.Context) (string, error) {
	if p == nil || p.db == nil {
		return "", nil
	}
	const q = `SELECT credential FROM client_credentials WHERE scope=$1 AND storage_key=$2`
	var credential string
	err := p.db.QueryRow(ctx, q, p.scope, StorageKey).Scan(&credential)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return credential, nil
}

func (p *Postgres) Set(ctx context.Context, credential string) error {
	if p == nil || p.db == nil {
		return nil
	}
	const q = `
INSERT INTO client_credentials (scope, storage_key, credential, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (scope, storage_key)
DO UPDATE SET credential=EXCLUDED.credential, updated_at=now()`
	_, err := p.db.Exec(ctx, q, p.scope, StorageKey, credential)
	return err
}

func (p *Postgres) Clear(ctx context.Context) error {
	if p == nil || p.db == nil {
		return nil
	}
	const q = `DELETE FROM client_credentials WHERE scope=$1 AND storage_key=$2`
	_, err := p.db.Exec(ctx, q, p.scope, StorageKey)
	return err
}
