package registry

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore implements Store backed by PostgreSQL.
//
// The id sequence is the registry_products BIGSERIAL; status changes go
// through a compare-and-set UPDATE so concurrent writers from other
// instances cannot skip or reverse a transition.
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over the given database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p Product) (Product, error) {
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO registry_products (batch_id, certification, origin, created_at, owner, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, p.BatchID, p.Certification, p.Origin, p.CreatedAt, p.Owner, uint8(p.Status))

	if err := row.Scan(&p.ID); err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id uint64) (Product, error) {
	var p Product
	err := s.db.GetContext(ctx, &p, `
		SELECT id, batch_id, certification, origin, created_at, owner, status
		FROM registry_products
		WHERE id = $1
	`, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNoRecord
		}
		return Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateProductStatus(ctx context.Context, id uint64, from, to Status) (Product, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE registry_products
		SET status = $3
		WHERE id = $1 AND status = $2
	`, id, uint8(from), uint8(to))
	if err != nil {
		return Product{}, fmt.Errorf("update product status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return Product{}, fmt.Errorf("update product status: %w", err)
	}
	if rows == 0 {
		// Distinguish a missing record from a lost race.
		if _, getErr := s.GetProduct(ctx, id); stderrors.Is(getErr, ErrNoRecord) {
			return Product{}, ErrNoRecord
		}
		return Product{}, ErrStatusConflict
	}

	return s.GetProduct(ctx, id)
}

func (s *PostgresStore) CountProducts(ctx context.Context) (uint64, error) {
	var count uint64
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM registry_products`); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, offset, limit int) ([]Product, error) {
	var result []Product
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, batch_id, certification, origin, created_at, owner, status
		FROM registry_products
		ORDER BY id DESC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return result, nil
}
