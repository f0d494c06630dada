package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lukman83/pricewatch/internal/models"
)

//go:embed schema.sql
var schema string

// Postgres stores prices in PostgreSQL through a pgx pool.
type Postgres struct {
	DB        *pgxpool.Pool
	retention int
}

func NewPostgres(ctx context.Context, url string, retention int) (*Postgres, error) {
	if url == "" {
		return nil, errors.New("postgres store: DATABASE_URL is not set")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	return &Postgres{DB: pool, retention: retentionOrDefault(retention)}, nil
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres store: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertCurrentPrice(ctx context.Context, cp models.CurrentPrice) error {
	var errText *string
	if cp.Error != "" {
		errText = &cp.Error
	}
	_, err := p.DB.Exec(ctx, `
		INSERT INTO current_prices (product_id, store, price, available, error, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_id, store) DO UPDATE SET
			price = EXCLUDED.price,
			available = EXCLUDED.available,
			error = EXCLUDED.error,
			checked_at = EXCLUDED.checked_at
	`, cp.ProductID, cp.SiteID, cp.Price, cp.Available, errText, cp.CheckedAt)
	if err != nil {
		return fmt.Errorf("upsert current price %s: %w", models.PairKey(cp.ProductID, cp.SiteID), err)
	}
	return nil
}

func (p *Postgres) LastHistoryEntry(ctx context.Context, productID, siteID string) (*models.HistoryEntry, error) {
	e := models.HistoryEntry{ProductID: productID, SiteID: siteID}
	err := p.DB.QueryRow(ctx, `
		SELECT price, checked_at FROM price_history
		WHERE product_id = $1 AND store = $2
		ORDER BY id DESC
		LIMIT 1
	`, productID, siteID).Scan(&e.Price, &e.CheckedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last history entry %s: %w", models.PairKey(productID, siteID), err)
	}
	return &e, nil
}

func (p *Postgres) AppendHistoryEntry(ctx context.Context, e models.HistoryEntry) error {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("append history: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO price_history (product_id, store, price, checked_at)
		VALUES ($1, $2, $3, $4)
	`, e.ProductID, e.SiteID, e.Price, e.CheckedAt); err != nil {
		return fmt.Errorf("append history %s: %w", models.PairKey(e.ProductID, e.SiteID), err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM price_history
		WHERE product_id = $1 AND store = $2 AND id NOT IN (
			SELECT id FROM price_history
			WHERE product_id = $1 AND store = $2
			ORDER BY id DESC
			LIMIT $3
		)
	`, e.ProductID, e.SiteID, p.retention); err != nil {
		return fmt.Errorf("trim history %s: %w", models.PairKey(e.ProductID, e.SiteID), err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) SetLastCheck(ctx context.Context, t time.Time) error {
	_, err := p.DB.Exec(ctx, `
		INSERT INTO check_state (id, last_check) VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET last_check = EXCLUDED.last_check
	`, t)
	if err != nil {
		return fmt.Errorf("set last check: %w", err)
	}
	return nil
}

func (p *Postgres) LastCheck(ctx context.Context) (time.Time, bool, error) {
	var t time.Time
	err := p.DB.QueryRow(ctx, `SELECT last_check FROM check_state WHERE id`).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last check: %w", err)
	}
	return t, true, nil
}

func (p *Postgres) ListCurrentPrices(ctx context.Context) ([]models.CurrentPrice, error) {
	rows, err := p.DB.Query(ctx, `
		SELECT product_id, store, price, available, error, checked_at
		FROM current_prices
		ORDER BY product_id, store
	`)
	if err != nil {
		return nil, fmt.Errorf("list current prices: %w", err)
	}
	defer rows.Close()

	var out []models.CurrentPrice
	for rows.Next() {
		var (
			cp      models.CurrentPrice
			errText *string
		)
		if err := rows.Scan(&cp.ProductID, &cp.SiteID, &cp.Price, &cp.Available, &errText, &cp.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan current price: %w", err)
		}
		if errText != nil {
			cp.Error = *errText
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (p *Postgres) ListHistory(ctx context.Context, since time.Time) ([]models.HistoryEntry, error) {
	rows, err := p.DB.Query(ctx, `
		SELECT product_id, store, price, checked_at
		FROM price_history
		WHERE checked_at >= $1
		ORDER BY checked_at, id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ProductID, &e.SiteID, &e.Price, &e.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	p.DB.Close()
	return nil
}
