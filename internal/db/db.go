package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"switchfleet/internal/models"
)

// SampleCache is an optional read-through cache for latest telemetry samples
type SampleCache interface {
	SetLatestSample(ctx context.Context, sample *models.StateSample)
	GetLatestSample(ctx context.Context, deviceID string) (*models.StateSample, bool)
	Invalidate(ctx context.Context, deviceID string)
}

// DB wraps pgxpool.Pool for database operations
type DB struct {
	pool  *pgxpool.Pool
	cache SampleCache
}

// NewDB creates a new DB connection pool
func NewDB(url string) (*DB, error) {
	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		return nil, err
	}
	return &DB{pool: pool}, nil
}

// WithSampleCache attaches a latest-sample cache
func (d *DB) WithSampleCache(c SampleCache) *DB {
	d.cache = c
	return d
}

// Close closes the connection pool
func (d *DB) Close() {
	d.pool.Close()
}

// Pool returns the underlying pgxpool.Pool
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}
