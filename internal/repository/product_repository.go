package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
)

func (r *Repository) ListProducts(ctx context.Context, search string) ([]*domain.Product, error) {
	query := `
		SELECT id, sku, name, price, currency, created_at
		FROM products
		ORDER BY id
	`
	args := []interface{}{}

	if search != "" {
		query = `
			SELECT id, sku, name, price, currency, created_at
			FROM products
			WHERE lower(name) LIKE '%' || lower($1) || '%'
			   OR lower(sku) LIKE '%' || lower($1) || '%'
			ORDER BY id
		`
		args = append(args, search)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p := &domain.Product{}
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Currency, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, sku string) (*domain.Product, error) {
	return getProduct(ctx, r.db, sku)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getProduct(ctx context.Context, q querier, sku string) (*domain.Product, error) {
	query := `
		SELECT id, sku, name, price, currency, created_at
		FROM products
		WHERE sku = $1
	`

	p := &domain.Product{}
	err := q.QueryRowContext(ctx, query, sku).Scan(
		&p.ID, &p.SKU, &p.Name, &p.Price, &p.Currency, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return p, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *domain.Product) error {
	if product.Currency == "" {
		product.Currency = domain.DefaultCurrency
	}
	product.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO products (sku, name, price, currency, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		product.SKU,
		product.Name,
		product.Price,
		product.Currency,
		product.CreatedAt,
	).Scan(&product.ID)
	if err != nil {
		return fmt.Errorf("insert product: %w", translateErr(err))
	}

	return nil
}

func (r *Repository) UpdateProduct(ctx context.Context, sku string, update domain.ProductUpdate) (*domain.Product, error) {
	sets := []string{}
	args := []interface{}{}
	arg := 1

	if update.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", arg))
		args = append(args, *update.Name)
		arg++
	}
	if update.Price != nil {
		sets = append(sets, fmt.Sprintf("price = $%d", arg))
		args = append(args, *update.Price)
		arg++
	}
	if update.Currency != nil {
		sets = append(sets, fmt.Sprintf("currency = $%d", arg))
		args = append(args, *update.Currency)
		arg++
	}

	if len(sets) > 0 {
		query := fmt.Sprintf("UPDATE products SET %s WHERE sku = $%d", strings.Join(sets, ", "), arg)
		args = append(args, sku)

		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("update product: %w", translateErr(err))
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("update product rows affected: %w", err)
		}
		if affected == 0 {
			return nil, ErrProductNotFound
		}
	}

	return getProduct(ctx, r.db, sku)
}

func (r *Repository) DeleteProduct(ctx context.Context, sku string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE sku = $1`, sku)
	if err != nil {
		return fmt.Errorf("delete product: %w", translateErr(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product rows affected: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}

	return nil
}
