package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogRepositoryInterface определяет интерфейс взаимодействия
// с авторитетным локальным каталогом товаров
type CatalogRepositoryInterface interface {
	// GetProduct возвращает товар по SKU; nil, nil если товар не найден
	GetProduct(ctx context.Context, sku string) (*models.Product, error)

	// ListProducts возвращает снимок каталога; activeOnly ограничивает
	// выборку товарами с активным флагом
	ListProducts(ctx context.Context, activeOnly bool) ([]*models.Product, error)

	// SaveProduct сохраняет товар (insert-or-replace по SKU)
	SaveProduct(ctx context.Context, product *models.Product) error

	// SetActive переключает флаг активности товара
	SetActive(ctx context.Context, sku string, active bool) error

	// SaveRegionalPrices записывает пересчитанные региональные цены товара
	SaveRegionalPrices(ctx context.Context, sku string, prices map[string]models.RegionalPrice) error
}

// CatalogStoragePort расширяет репозиторий управлением соединением
type CatalogStoragePort interface {
	CatalogRepositoryInterface

	Close() error
}

// CatalogStorage реализация репозитория каталога для PostgreSQL.
// Товар хранится целиком в jsonb-колонке data; колонки active и
// base_price дублируют поля документа для фильтрации на стороне БД.
type CatalogStorage struct {
	pool *pgxpool.Pool
}

// NewCatalogStorage создает новый экземпляр CatalogStorage
func NewCatalogStorage(ctx context.Context, connectionString string) (*CatalogStorage, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &CatalogStorage{pool: pool}, nil
}

// NewCatalogStorageWithPool создает CatalogStorage на существующем пуле
func NewCatalogStorageWithPool(ctx context.Context, pool *pgxpool.Pool) (*CatalogStorage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &CatalogStorage{pool: pool}, nil
}

// Ping проверяет соединение с БД
func (r *CatalogStorage) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close закрывает соединение с БД
func (r *CatalogStorage) Close() error {
	r.pool.Close()
	return nil
}

// GetProduct возвращает товар по SKU
func (r *CatalogStorage) GetProduct(ctx context.Context, sku string) (*models.Product, error) {
	query := `SELECT data FROM catalog_products WHERE sku = $1`

	var data []byte
	err := r.pool.QueryRow(ctx, query, sku).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Товар не найден
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product %s: %w", sku, err)
	}

	return &product, nil
}

// ListProducts возвращает снимок каталога
func (r *CatalogStorage) ListProducts(ctx context.Context, activeOnly bool) ([]*models.Product, error) {
	query := `SELECT data FROM catalog_products`
	if activeOnly {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY sku`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}

		var product models.Product
		if err := json.Unmarshal(data, &product); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product: %w", err)
		}
		products = append(products, &product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, nil
}

// SaveProduct сохраняет товар (insert-or-replace по SKU)
func (r *CatalogStorage) SaveProduct(ctx context.Context, product *models.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product %s: %w", product.SKU, err)
	}

	query := `
		INSERT INTO catalog_products (sku, data, active, base_price, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (sku) DO UPDATE SET
			data = EXCLUDED.data,
			active = EXCLUDED.active,
			base_price = EXCLUDED.base_price,
			updated_at = NOW()`

	_, err = r.pool.Exec(ctx, query, product.SKU, data, product.Active, product.BasePrice.String())
	if err != nil {
		return fmt.Errorf("failed to save product %s: %w", product.SKU, err)
	}

	return nil
}

// SetActive переключает флаг активности товара
func (r *CatalogStorage) SetActive(ctx context.Context, sku string, active bool) error {
	query := `
		UPDATE catalog_products
		SET active = $2,
		    data = jsonb_set(data, '{active}', to_jsonb($2::boolean)),
		    updated_at = NOW()
		WHERE sku = $1`

	tag, err := r.pool.Exec(ctx, query, sku, active)
	if err != nil {
		return fmt.Errorf("failed to set active flag for %s: %w", sku, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s not found", sku)
	}

	return nil
}

// SaveRegionalPrices записывает пересчитанные региональные цены товара
func (r *CatalogStorage) SaveRegionalPrices(ctx context.Context, sku string, prices map[string]models.RegionalPrice) error {
	data, err := json.Marshal(prices)
	if err != nil {
		return fmt.Errorf("failed to marshal regional prices for %s: %w", sku, err)
	}

	query := `
		UPDATE catalog_products
		SET data = jsonb_set(data, '{regional_prices}', $2::jsonb),
		    updated_at = NOW()
		WHERE sku = $1`

	tag, err := r.pool.Exec(ctx, query, sku, data)
	if err != nil {
		return fmt.Errorf("failed to save regional prices for %s: %w", sku, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s not found", sku)
	}

	return nil
}
