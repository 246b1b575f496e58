package repository

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/metrics"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schema string

// Database holds the database connection pool and provides access to repositories
type Database struct {
	Pool *pgxpool.Pool

	// Repositories
	Games       *GameRepository
	Stats       *StatsRepository
	Predictions *PredictionRepository
}

// NewDatabase creates a new database connection pool and initializes repositories
func NewDatabase(ctx context.Context, databaseURL string) (*Database, error) {
	// Configure connection pool
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// One pass at a time, so the pool stays small
	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// Create connection pool
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Uint16("port", poolConfig.ConnConfig.Port).
		Str("database", poolConfig.ConnConfig.Database).
		Msg("Successfully connected to database")

	db := &Database{
		Pool: pool,
	}

	// Initialize repositories
	db.Games = &GameRepository{db: db}
	db.Stats = &StatsRepository{db: db}
	db.Predictions = &PredictionRepository{db: db}

	return db, nil
}

// Migrate creates the archive tables if they do not exist
func (db *Database) Migrate(ctx context.Context) error {
	start := time.Now()
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		metrics.RecordDBQuery("migrate", "all", "error", time.Since(start).Seconds())
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	metrics.RecordDBQuery("migrate", "all", "success", time.Since(start).Seconds())
	log.Info().Msg("Database schema is current")
	return nil
}

// ArchiveGames stores a pass's games
func (db *Database) ArchiveGames(ctx context.Context, games []models.Game) error {
	return db.Games.UpsertBatch(ctx, games)
}

// ArchiveStats stores one through-week's team stats
func (db *Database) ArchiveStats(ctx context.Context, stats []models.TeamStats) error {
	return db.Stats.UpsertSnapshot(ctx, stats)
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Info().Msg("Database connection pool closed")
	}
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// PoolStats returns database pool statistics
func (db *Database) PoolStats() map[string]interface{} {
	stat := db.Pool.Stat()
	return map[string]interface{}{
		"total_conns":    stat.TotalConns(),
		"acquired_conns": stat.AcquiredConns(),
		"idle_conns":     stat.IdleConns(),
		"max_conns":      stat.MaxConns(),
	}
}

// observe records a query's duration and outcome
func observe(operation, table string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDBQuery(operation, table, status, time.Since(start).Seconds())
}
