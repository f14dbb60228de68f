package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/TheKaito2/Hybrid-complete/internal/domain"
)

const productColumns = "id, name, category, price, stock, min_stock, yolo_class"

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id)

	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Stock, &p.MinStock, &p.YoloClass)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	return &p, nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products ORDER BY category, name")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Stock, &p.MinStock, &p.YoloClass); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpsertProduct seeds or replaces a catalog entry. Used by the loader on
// startup and by tests.
func (r *Repository) UpsertProduct(ctx context.Context, p *domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price, stock, min_stock, yolo_class)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			price = excluded.price,
			stock = excluded.stock,
			min_stock = excluded.min_stock,
			yolo_class = excluded.yolo_class`,
		p.ID, p.Name, p.Category, p.Price, p.Stock, p.MinStock, p.YoloClass)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

// AddStock increases the on-hand count.
func (r *Repository) AddStock(ctx context.Context, id string, quantity int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE products SET stock = stock + ? WHERE id = ?", quantity, id)
	if err != nil {
		return fmt.Errorf("failed to add stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeductStock decrements stock only when enough is on hand. Returns false
// without error when stock was insufficient; sale recording proceeds anyway
// and the shortfall shows up in analytics instead.
func (r *Repository) DeductStock(ctx context.Context, id string, quantity int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?",
		quantity, id, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to deduct stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
