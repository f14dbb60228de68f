package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TheKaito2/Hybrid-complete/internal/domain"
)

// CreateSale records the sale and its line items in one transaction. The
// unique payment_id column is the exactly-once guard at the storage layer.
func (r *Repository) CreateSale(ctx context.Context, sale *domain.Sale) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, payment_id, subtotal, tax, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.PaymentID, sale.Subtotal, sale.Tax, sale.Total, sale.Timestamp.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("failed to insert sale: %w", err)
	}

	for _, item := range sale.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, category, price, quantity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sale.ID, item.ProductID, item.ProductName, item.Category, item.Price, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert sale item: %w", err)
		}
	}

	return tx.Commit()
}

// ListSales returns the most recent sales, newest first.
func (r *Repository) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payment_id, subtotal, tax, total, created_at
		FROM sales ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []domain.Sale
	index := make(map[string]int)
	for rows.Next() {
		var s domain.Sale
		if err := rows.Scan(&s.ID, &s.PaymentID, &s.Subtotal, &s.Tax, &s.Total, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		index[s.ID] = len(sales)
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return sales, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT sale_id, product_id, product_name, category, price, quantity
		FROM sale_items
		WHERE sale_id IN (SELECT id FROM sales ORDER BY created_at DESC, id LIMIT ?)`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var saleID string
		var line domain.CartLine
		if err := itemRows.Scan(&saleID, &line.ProductID, &line.ProductName, &line.Category, &line.Price, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		if i, ok := index[saleID]; ok {
			sales[i].Items = append(sales[i].Items, line)
		}
	}
	return sales, itemRows.Err()
}

// GetAnalytics aggregates sales history and stock levels.
func (r *Repository) GetAnalytics(ctx context.Context) (*domain.Analytics, error) {
	a := &domain.Analytics{}

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(total), 0) FROM sales").
		Scan(&a.TotalSales, &a.TotalRevenue)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales totals: %w", err)
	}

	startOfDay := time.Now().Truncate(24 * time.Hour).UTC()
	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(total), 0) FROM sales WHERE created_at >= ?", startOfDay).
		Scan(&a.TodaySales, &a.TodayRevenue)
	if err != nil {
		return nil, fmt.Errorf("failed to query today's totals: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, product_name, SUM(quantity), SUM(price * quantity) AS revenue
		FROM sale_items
		GROUP BY product_id, product_name
		ORDER BY revenue DESC
		LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("failed to query top products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var top domain.TopProduct
		if err := rows.Scan(&top.ProductID, &top.ProductName, &top.QuantitySold, &top.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan top product: %w", err)
		}
		a.TopProducts = append(a.TopProducts, top)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products WHERE stock <= min_stock").
		Scan(&a.LowStockCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query low stock count: %w", err)
	}

	return a, nil
}
