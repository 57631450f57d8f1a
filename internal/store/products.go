package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/safar/petalstore/internal/database"
	"github.com/safar/petalstore/internal/models"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type CreateProductParams struct {
	CategoryID  *int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	IsActive    bool
}

const productColumns = `id, category_id, name, slug, description, price, stock_quantity, is_active, created_at, updated_at, version`

func scanProduct(row interface{ Scan(...interface{}) error }, product *models.Product) error {
	var categoryID sql.NullInt64
	err := row.Scan(
		&product.ID,
		&categoryID,
		&product.Name,
		&product.Slug,
		&product.Description,
		&product.Price,
		&product.StockQuantity,
		&product.IsActive,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		return err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		product.CategoryID = &id
	}
	return nil
}

// CreateProduct inserts the product with its initial stock. The slug is
// derived from the name; a numeric suffix is appended on collision.
func CreateProduct(ctx context.Context, db *sql.DB, params CreateProductParams) (*models.Product, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, fmt.Errorf("create product: name is required")
	}
	if params.Price.IsNegative() || params.Stock < 0 {
		return nil, fmt.Errorf("create product: price and stock must not be negative")
	}

	base := slug.Make(params.Name)
	query := `
		INSERT INTO products (category_id, name, slug, description, price, stock_quantity, is_active, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		ON CONFLICT (slug) DO NOTHING
		RETURNING ` + productColumns

	for attempt := 0; attempt < 10; attempt++ {
		candidate := base
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d", base, attempt+1)
		}

		product := &models.Product{}
		err := scanProduct(db.QueryRowContext(ctx, query,
			params.CategoryID, params.Name, candidate, params.Description, params.Price, params.Stock, params.IsActive,
		), product)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create product: %w", err)
		}
		return product, nil
	}

	return nil, fmt.Errorf("create product: %w", database.ErrDuplicate)
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	err := scanProduct(db.QueryRowContext(ctx, query, id), product)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	images, err := listProductImages(ctx, db, id)
	if err != nil {
		return nil, err
	}
	product.Images = images

	return product, nil
}

type UpdateProductParams struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	IsActive    *bool
	CategoryID  *int64
}

// UpdateProduct edits catalog fields. Stock is deliberately not editable here:
// only order creation and cancellation move stock_quantity.
func UpdateProduct(ctx context.Context, db *sql.DB, id int64, params UpdateProductParams) (*models.Product, error) {
	if params.Price != nil && params.Price.IsNegative() {
		return nil, fmt.Errorf("update product: price must not be negative")
	}

	var price interface{}
	if params.Price != nil {
		price = *params.Price
	}

	query := `
		UPDATE products
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    price = COALESCE($4, price),
		    is_active = COALESCE($5, is_active),
		    category_id = COALESCE($6, category_id),
		    updated_at = NOW(),
		    version = version + 1
		WHERE id = $1
		RETURNING ` + productColumns

	product := &models.Product{}
	err := scanProduct(db.QueryRowContext(ctx, query,
		id, params.Name, params.Description, price, params.IsActive, params.CategoryID,
	), product)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	return product, nil
}

func SetProductActive(ctx context.Context, db *sql.DB, id int64, active bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products SET is_active = $2, updated_at = NOW(), version = version + 1 WHERE id = $1`,
		id, active)
	if err != nil {
		return fmt.Errorf("set product active: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

// AddProductImage attaches an image. A primary image demotes the previous
// primary in the same transaction.
func AddProductImage(ctx context.Context, db *sql.DB, productID int64, url string, isPrimary bool, sortOrder int) (*models.ProductImage, error) {
	img := &models.ProductImage{}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if isPrimary {
			if _, err := tx.ExecContext(ctx,
				`UPDATE product_images SET is_primary = FALSE WHERE product_id = $1 AND is_primary`,
				productID); err != nil {
				return fmt.Errorf("demote primary image: %w", err)
			}
		}

		err := tx.QueryRowContext(ctx,
			`INSERT INTO product_images (product_id, url, is_primary, sort_order, created_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 RETURNING id, product_id, url, is_primary, sort_order, created_at`,
			productID, url, isPrimary, sortOrder).Scan(
			&img.ID,
			&img.ProductID,
			&img.URL,
			&img.IsPrimary,
			&img.SortOrder,
			&img.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert product image: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return img, nil
}

func listProductImages(ctx context.Context, q querier, productID int64) ([]models.ProductImage, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, product_id, url, is_primary, sort_order, created_at
		 FROM product_images
		 WHERE product_id = $1
		 ORDER BY is_primary DESC, sort_order, id`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("list product images: %w", err)
	}
	defer rows.Close()

	var images []models.ProductImage
	for rows.Next() {
		var img models.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.URL, &img.IsPrimary, &img.SortOrder, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product image: %w", err)
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return images, nil
}

func primaryImageURL(ctx context.Context, q querier, productID int64) (string, error) {
	var url string
	err := q.QueryRowContext(ctx,
		`SELECT url FROM product_images
		 WHERE product_id = $1
		 ORDER BY is_primary DESC, sort_order, id
		 LIMIT 1`,
		productID).Scan(&url)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("primary image for product %d: %w", productID, err)
	}
	return url, nil
}

// ReserveStock locks the product row for the rest of the transaction and
// checks it can be sold in the requested quantity. Inactive and missing
// products are both reported as unavailable.
func ReserveStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE id = $1
		FOR UPDATE`

	err := scanProduct(tx.QueryRowContext(ctx, query, productID), product)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductUnavailable
		}
		return nil, fmt.Errorf("lock product %d: %w", productID, err)
	}

	if !product.IsActive {
		return nil, database.ErrProductUnavailable
	}

	if product.StockQuantity < quantity {
		return nil, &database.StockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   quantity,
			Available:   product.StockQuantity,
		}
	}

	return product, nil
}

func DecrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity - $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2
		   AND stock_quantity >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return &database.StockError{ProductID: productID, Requested: quantity}
	}

	return nil
}

func RestoreStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity + $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

type ProductFilter struct {
	ActiveOnly   bool
	OccasionSlug string
	CategorySlug string
}

func ListProducts(ctx context.Context, db *sql.DB, filter ProductFilter, page, pageSize int) (*OffsetPage, error) {
	where := `WHERE ($1 = FALSE OR p.is_active)
		  AND ($2 = '' OR EXISTS (
		        SELECT 1 FROM product_occasions po
		        JOIN occasions o ON o.id = po.occasion_id
		        WHERE po.product_id = p.id AND o.slug = $2))
		  AND ($3 = '' OR EXISTS (
		        SELECT 1 FROM categories c
		        WHERE c.id = p.category_id AND c.slug = $3))`

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products p `+where,
		filter.ActiveOnly, filter.OccasionSlug, filter.CategorySlug).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT p.id, p.category_id, p.name, p.slug, p.description, p.price, p.stock_quantity,
		       p.is_active, p.created_at, p.updated_at, p.version
		FROM products p ` + where + `
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $4 OFFSET $5`

	rows, err := db.QueryContext(ctx, query,
		filter.ActiveOnly, filter.OccasionSlug, filter.CategorySlug, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(products, total, page, pageSize), nil
}
