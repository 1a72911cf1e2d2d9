package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createPricesTable = `
CREATE TABLE IF NOT EXISTS product_prices (
	product_id  text PRIMARY KEY,
	model_name  text NOT NULL,
	brand_name  text NOT NULL,
	base_price  numeric,
	sale_price  numeric,
	bonus       numeric,
	link        text NOT NULL,
	scraped_at  timestamptz NOT NULL
)`

const upsertPrice = `
INSERT INTO product_prices (product_id, model_name, brand_name, base_price, sale_price, bonus, link, scraped_at)
VALUES ($1, $2, $3, NULLIF($4, '')::numeric, NULLIF($5, '')::numeric, NULLIF($6, '')::numeric, $7, $8)
ON CONFLICT (product_id)
DO UPDATE SET
	model_name = EXCLUDED.model_name,
	brand_name = EXCLUDED.brand_name,
	base_price = EXCLUDED.base_price,
	sale_price = EXCLUDED.sale_price,
	bonus = EXCLUDED.bonus,
	link = EXCLUDED.link,
	scraped_at = EXCLUDED.scraped_at`

// PostgresWriter upserts rows into product_prices inside one transaction
// that commits on Close.
type PostgresWriter struct {
	ctx       context.Context
	pool      *pgxpool.Pool
	tx        pgx.Tx
	scrapedAt time.Time
	written   int
	committed bool
}

// NewPostgresWriter connects to dsn, ensures the table exists and opens the
// export transaction.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 2
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, createPricesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create product_prices: %w", err)
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("begin export transaction: %w", err)
	}

	return &PostgresWriter{
		ctx:       ctx,
		pool:      pool,
		tx:        tx,
		scrapedAt: time.Now().UTC(),
	}, nil
}

// Write queues one upsert per row and sends them as a batch.
func (pw *PostgresWriter) Write(rows []*models.Row) error {
	if len(rows) == 0 {
		return nil
	}

	batch := upsertBatch(rows, pw.scrapedAt)
	br := pw.tx.SendBatch(pw.ctx, batch)
	for _, row := range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert product %s: %w", row.ProductID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	pw.written += len(rows)
	return nil
}

// Close commits the transaction and closes the pool.
func (pw *PostgresWriter) Close() error {
	defer pw.pool.Close()
	if err := pw.tx.Commit(pw.ctx); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	pw.committed = true
	return nil
}

// Abort rolls the transaction back.
func (pw *PostgresWriter) Abort() error {
	defer pw.pool.Close()
	return pw.tx.Rollback(pw.ctx)
}

// Validate checks that the export transaction was committed. An export with
// no rows is valid, as it is for the file writers.
func (pw *PostgresWriter) Validate() error {
	if !pw.committed {
		return fmt.Errorf("postgres export not committed (%d rows pending)", pw.written)
	}
	return nil
}

func upsertBatch(rows []*models.Row, scrapedAt time.Time) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(upsertPrice,
			row.ProductID,
			row.ModelName,
			row.BrandName,
			row.BasePrice.String(),
			row.SalePrice.String(),
			row.Bonus.String(),
			row.Link,
			scrapedAt,
		)
	}
	return batch
}
