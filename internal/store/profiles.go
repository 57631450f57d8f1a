package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/petalstore/internal/database"
	"github.com/safar/petalstore/internal/models"
)

// UpsertProfile mirrors an identity-provider user into profiles. The role
// is only written on insert; promotion to admin happens out of band.
func UpsertProfile(ctx context.Context, db *sql.DB, profile models.Profile) (*models.Profile, error) {
	role := profile.Role
	if role == "" {
		role = models.RoleCustomer
	}

	saved := &models.Profile{}

	query := `
		INSERT INTO profiles (id, email, full_name, phone, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    full_name = EXCLUDED.full_name,
		    phone = EXCLUDED.phone,
		    updated_at = NOW()
		RETURNING id, email, full_name, phone, role, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, profile.ID, profile.Email, profile.FullName, profile.Phone, role).Scan(
		&saved.ID,
		&saved.Email,
		&saved.FullName,
		&saved.Phone,
		&saved.Role,
		&saved.CreatedAt,
		&saved.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}

	return saved, nil
}

func GetProfile(ctx context.Context, db *sql.DB, id string) (*models.Profile, error) {
	profile := &models.Profile{}

	query := `
		SELECT id, email, full_name, phone, role, created_at, updated_at
		FROM profiles
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&profile.ID,
		&profile.Email,
		&profile.FullName,
		&profile.Phone,
		&profile.Role,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return profile, nil
}

// GetProfileRole returns the stored role, or customer when the caller has no
// profile row yet.
func GetProfileRole(ctx context.Context, db *sql.DB, id string) (string, error) {
	var role string
	err := db.QueryRowContext(ctx, `SELECT role FROM profiles WHERE id = $1`, id).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.RoleCustomer, nil
		}
		return "", fmt.Errorf("get profile role: %w", err)
	}
	return role, nil
}
