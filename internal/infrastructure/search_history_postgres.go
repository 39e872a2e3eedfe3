package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adlens/internal/domain"
	"adlens/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const searchHistorySchema = `
CREATE TABLE IF NOT EXISTS search_history (
	provider            TEXT        NOT NULL,
	brand_key           TEXT        NOT NULL,
	brand               TEXT        NOT NULL,
	ads                 JSONB       NOT NULL DEFAULT '[]',
	total_found         INTEGER     NOT NULL DEFAULT 0,
	brand_source        TEXT        NOT NULL DEFAULT '',
	verified_brand_name TEXT        NOT NULL DEFAULT '',
	searched_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (provider, brand_key)
)`

// Postgres-backed domain.SearchHistoryStore
type PostgresSearchHistory struct {
	pool   *pgxpool.Pool
	ttl    time.Duration
	logger *logger.Logger
}

// NewPostgresPool opens and pings a connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func NewPostgresSearchHistory(pool *pgxpool.Pool, ttl time.Duration, logger *logger.Logger) *PostgresSearchHistory {
	return &PostgresSearchHistory{pool: pool, ttl: ttl, logger: logger}
}

func (r *PostgresSearchHistory) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, searchHistorySchema); err != nil {
		return fmt.Errorf("create search_history table: %w", err)
	}
	return nil
}

func (r *PostgresSearchHistory) SaveSearch(ctx context.Context, item domain.SearchHistoryItem) error {
	ads, err := json.Marshal(item.Ads)
	if err != nil {
		return fmt.Errorf("encode ads: %w", err)
	}
	if item.SearchedAt.IsZero() {
		item.SearchedAt = time.Now().UTC()
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO search_history
			(provider, brand_key, brand, ads, total_found, brand_source, verified_brand_name, searched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider, brand_key) DO UPDATE SET
			brand = EXCLUDED.brand,
			ads = EXCLUDED.ads,
			total_found = EXCLUDED.total_found,
			brand_source = EXCLUDED.brand_source,
			verified_brand_name = EXCLUDED.verified_brand_name,
			searched_at = EXCLUDED.searched_at`,
		string(item.Provider), domain.NormalizeBrandKey(item.Brand), item.Brand, ads,
		item.TotalFound, string(item.BrandSource), item.VerifiedBrandName, item.SearchedAt)
	if err != nil {
		return fmt.Errorf("save search: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"provider": item.Provider,
		"brand":    item.Brand,
		"count":    len(item.Ads),
	}).Debug("Stored search in postgres history")
	return nil
}

func (r *PostgresSearchHistory) GetCachedSearch(ctx context.Context, provider domain.Provider, brand string) (*domain.SearchHistoryItem, error) {
	var (
		item        domain.SearchHistoryItem
		ads         []byte
		providerStr string
		sourceStr   string
	)

	err := r.pool.QueryRow(ctx, `
		SELECT provider, brand_key, brand, ads, total_found, brand_source, verified_brand_name, searched_at
		FROM search_history
		WHERE provider = $1 AND brand_key = $2 AND searched_at > $3`,
		string(provider), domain.NormalizeBrandKey(brand), time.Now().Add(-r.ttl),
	).Scan(&providerStr, &item.BrandKey, &item.Brand, &ads, &item.TotalFound, &sourceStr, &item.VerifiedBrandName, &item.SearchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSearchNotFound
		}
		return nil, fmt.Errorf("get cached search: %w", err)
	}

	item.Provider = domain.Provider(providerStr)
	item.BrandSource = domain.BrandSource(sourceStr)
	if err := json.Unmarshal(ads, &item.Ads); err != nil {
		return nil, fmt.Errorf("decode ads: %w", err)
	}
	return &item, nil
}

// Purge deletes rows older than the TTL.
func (r *PostgresSearchHistory) Purge(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM search_history WHERE searched_at <= $1`, time.Now().Add(-r.ttl))
	if err != nil {
		return 0, fmt.Errorf("purge search history: %w", err)
	}
	return tag.RowsAffected(), nil
}
