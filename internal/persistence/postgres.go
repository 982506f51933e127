package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Behnamfe76/ticket-portal/internal/config"
)

// ErrNoDSN is returned when the postgres token store is selected without a DSN.
var ErrNoDSN = errors.New("POSTGRES_DSN is required by the postgres token store")

const connectTimeout = 5 * time.Second

// CredentialDB is the pool holding the client_credentials table.
type CredentialDB struct {
	Pool *pgxpool.Pool
}

// OpenCredentialDB connects, verifies the connection and, when enabled,
// applies the credential schema. The pool is closed on any failure.
func OpenCredentialDB(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*CredentialDB, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	db := &CredentialDB{Pool: pool}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reach postgres %s: %w", poolCfg.ConnConfig.Host, err)
	}

	if cfg.RunMigrations {
		if err := RunMigrations(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	logger.Info("credential database ready",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Bool("migrated", cfg.RunMigrations),
	)
	return db, nil
}

// poolConfig parses the DSN and applies the pool limits of cfg.
func poolConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse POSTGRES_DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= poolCfg.MaxConns {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}
	return poolCfg, nil
}

// Close releases pool resources.
func (d *CredentialDB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

// Ping reports whether the credential table's database answers.
func (d *CredentialDB) Ping(ctx context.Context) error {
	if d == nil || d.Pool == nil {
		return errors.New("postgres pool not configured")
	}
	return d.Pool.Ping(ctx)
}
