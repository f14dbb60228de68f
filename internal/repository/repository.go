package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"

	"github.com/TheKaito2/Hybrid-complete/internal/domain"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrDuplicatePayment = errors.New("sale for this payment already recorded")
)

// ProductRepository is the catalog's persistence contract.
type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	AddStock(ctx context.Context, id string, quantity int) error
	DeductStock(ctx context.Context, id string, quantity int) (bool, error)
}

// SaleRepository records settled sales and serves history/analytics reads.
type SaleRepository interface {
	CreateSale(ctx context.Context, sale *domain.Sale) error
	ListSales(ctx context.Context, limit int) ([]domain.Sale, error)
	GetAnalytics(ctx context.Context) (*domain.Analytics, error)
}

// Repository is the sqlite-backed record store for a station. One embedded
// file per station; no database server.
type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
