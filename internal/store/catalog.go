package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/safar/petalstore/internal/database"
	"github.com/safar/petalstore/internal/models"
	"github.com/shopspring/decimal"
)

func CreateCategory(ctx context.Context, db *sql.DB, name, description string) (*models.Category, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("create category: name is required")
	}

	category := &models.Category{}
	err := db.QueryRowContext(ctx,
		`INSERT INTO categories (name, slug, description, created_at)
		 VALUES ($1, $2, $3, NOW())
		 RETURNING id, name, slug, description, created_at`,
		name, slug.Make(name), description).Scan(
		&category.ID,
		&category.Name,
		&category.Slug,
		&category.Description,
		&category.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrDuplicate
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

func ListCategories(ctx context.Context, db *sql.DB) ([]models.Category, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, slug, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

func CreateOccasion(ctx context.Context, db *sql.DB, name, description string) (*models.Occasion, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("create occasion: name is required")
	}

	occasion := &models.Occasion{}
	err := db.QueryRowContext(ctx,
		`INSERT INTO occasions (name, slug, description, created_at)
		 VALUES ($1, $2, $3, NOW())
		 RETURNING id, name, slug, description, created_at`,
		name, slug.Make(name), description).Scan(
		&occasion.ID,
		&occasion.Name,
		&occasion.Slug,
		&occasion.Description,
		&occasion.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrDuplicate
		}
		return nil, fmt.Errorf("create occasion: %w", err)
	}

	return occasion, nil
}

func ListOccasions(ctx context.Context, db *sql.DB) ([]models.Occasion, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, slug, description, created_at FROM occasions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list occasions: %w", err)
	}
	defer rows.Close()

	occasions := []models.Occasion{}
	for rows.Next() {
		var o models.Occasion
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan occasion: %w", err)
		}
		occasions = append(occasions, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return occasions, nil
}

// LinkProductOccasion is idempotent.
func LinkProductOccasion(ctx context.Context, db *sql.DB, productID, occasionID int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO product_occasions (product_id, occasion_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		productID, occasionID)
	if err != nil {
		return fmt.Errorf("link product occasion: %w", err)
	}
	return nil
}

type CreateFlowerParams struct {
	Name         string
	Color        string
	PricePerStem decimal.Decimal
}

func CreateFlower(ctx context.Context, db *sql.DB, params CreateFlowerParams) (*models.Flower, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, fmt.Errorf("create flower: name is required")
	}

	flower := &models.Flower{}
	err := db.QueryRowContext(ctx,
		`INSERT INTO flowers (name, slug, color, price_per_stem, is_active, created_at)
		 VALUES ($1, $2, $3, $4, TRUE, NOW())
		 RETURNING id, name, slug, color, price_per_stem, is_active, created_at`,
		params.Name, slug.Make(params.Name), params.Color, params.PricePerStem).Scan(
		&flower.ID,
		&flower.Name,
		&flower.Slug,
		&flower.Color,
		&flower.PricePerStem,
		&flower.IsActive,
		&flower.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrDuplicate
		}
		return nil, fmt.Errorf("create flower: %w", err)
	}

	return flower, nil
}

func ListFlowers(ctx context.Context, db *sql.DB, activeOnly bool) ([]models.Flower, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, slug, color, price_per_stem, is_active, created_at
		 FROM flowers
		 WHERE ($1 = FALSE OR is_active)
		 ORDER BY name`,
		activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list flowers: %w", err)
	}
	defer rows.Close()

	flowers := []models.Flower{}
	for rows.Next() {
		var f models.Flower
		if err := rows.Scan(&f.ID, &f.Name, &f.Slug, &f.Color, &f.PricePerStem, &f.IsActive, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan flower: %w", err)
		}
		flowers = append(flowers, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return flowers, nil
}
