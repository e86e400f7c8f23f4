// Package database opens the Postgres connection shared by the load and
// export stages.
package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/leasecar-etl/internal/config"
)

// DSN renders cfg as a keyword/value connection string. Empty fields are
// omitted so the driver falls back to its own defaults (PG* environment
// variables, then localhost).
func DSN(cfg config.DBConfig) string {
	var parts []string
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+quoteValue(value))
		}
	}
	add("host", cfg.Host)
	if cfg.Port > 0 {
		add("port", strconv.Itoa(cfg.Port))
	}
	add("dbname", cfg.Database)
	add("user", cfg.User)
	add("password", cfg.Password)
	add("sslmode", cfg.SSLMode)
	return strings.Join(parts, " ")
}

func quoteValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// PoolConfig parses cfg into a pool configuration holding a single
// connection.
func PoolConfig(cfg config.DBConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	pc.MaxConns = 1
	pc.MinConns = 0
	return pc, nil
}

// NewPool connects to Postgres and pings it so connectivity failures
// surface before any stage work starts.
func NewPool(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	logger.Info("connected to postgres",
		zap.String("host", pc.ConnConfig.Host),
		zap.Uint16("port", pc.ConnConfig.Port),
		zap.String("database", pc.ConnConfig.Database),
	)
	return pool, nil
}
