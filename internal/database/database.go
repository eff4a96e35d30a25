package database

import (
	"context"
	"fmt"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/config"
	loggerPkg "github.com/eksporyuk/affiliate-ledger/internal/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/multitracer"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/newrelic/go-agent/v3/integrations/nrpgx5"
	"github.com/rs/zerolog"
)

type Database struct {
	Pool *pgxpool.Pool
	log  *zerolog.Logger
}

func New(cfg *config.Config, logger *zerolog.Logger, ls *loggerPkg.LoggerService) (*Database, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	poolCfg.MaxConnLifetime = time.Duration(cfg.Database.ConnMaxLifetime) * time.Second
	poolCfg.MaxConnIdleTime = time.Duration(cfg.Database.ConnMaxIdleTime) * time.Second

	level := loggerPkg.ParseLevel(cfg.Observability.GetLogLevel())
	tracers := []pgx.QueryTracer{
		&tracelog.TraceLog{
			Logger:   loggerPkg.NewPgxLogger(*logger, cfg.Observability.Logging.SlowQueryThreshold),
			LogLevel: loggerPkg.GetPgxTraceLogLevel(level),
		},
	}
	if ls.GetApplication() != nil {
		tracers = append(tracers, nrpgx5.NewTracer())
	}
	poolCfg.ConnConfig.Tracer = multitracer.New(tracers...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Name).Msg("Connected to PostgreSQL")

	return &Database{Pool: pool, log: logger}, nil
}

func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *Database) Close() {
	db.log.Info().Msg("Closing database connection pool")
	db.Pool.Close()
}
