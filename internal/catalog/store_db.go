package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the products table and upserts products into it.
func (s *PostgresStore) Migrate(ctx context.Context, products []Product) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create products table: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (id, title, original_price, discounted_price, features, popular)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			original_price = EXCLUDED.original_price,
			discounted_price = EXCLUDED.discounted_price,
			features = EXCLUDED.features,
			popular = EXCLUDED.popular
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		features, err := json.Marshal(p.Features)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Title, p.OriginalPrice, p.DiscountedPrice, string(features), p.Popular); err != nil {
			return fmt.Errorf("seed product %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) ListSortedByID(ctx context.Context) ([]Product, error) {
	var out []Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, title, original_price, discounted_price, features, popular
			FROM products
			ORDER BY id ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Product, 0, 8)
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int) (Product, bool, error) {
	var p Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, title, original_price, discounted_price, features, popular
			FROM products
			WHERE id = $1
		`, id)

		var err error
		p, err = scanProduct(row)
		return err
	})

	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, err
	}
	return p, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(sc scanner) (Product, error) {
	var (
		p        Product
		features []byte
	)
	if err := sc.Scan(&p.ID, &p.Title, &p.OriginalPrice, &p.DiscountedPrice, &features, &p.Popular); err != nil {
		return Product{}, err
	}
	if err := json.Unmarshal(features, &p.Features); err != nil {
		return Product{}, fmt.Errorf("decode features of product %d: %w", p.ID, err)
	}
	return p, nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
