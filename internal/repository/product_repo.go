package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/utils"
)

// ProductRepository handles catalog reads for cart validation and pricing.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, name, image, price, stock, sizes, size_stock,
        pricing_tiers, volume_pricing, moq, is_active, updated_at`

// GetProduct returns a single active product by id.
func (r *ProductRepository) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND is_active = true LIMIT 1`
	stmt, err := r.db.PreparexContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var p models.Product
	if err := stmt.GetContext(ctx, &p, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetProducts returns the active products among ids, keyed by id.
func (r *ProductRepository) GetProducts(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	out := make(map[string]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	q, args, err := sqlx.In(`SELECT `+productColumns+` FROM products WHERE id IN (?) AND is_active = true`, ids)
	if err != nil {
		return nil, err
	}

	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

// Ping checks database connectivity.
func (r *ProductRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
