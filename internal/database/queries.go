package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"fargoat/internal/models"
)

// ErrDuplicate is returned when a unique profile column already exists
var ErrDuplicate = errors.New("duplicate profile")

// uniqueViolation is the PostgreSQL error code for unique constraint failures
const uniqueViolation = "23505"

func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// ==================== Profile Queries ====================

// CreateProfile inserts a profile and fills its timestamps
func (db *DB) CreateProfile(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (id, user_id, email, wallet_address, unique_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := db.QueryRowContext(
		ctx, query,
		p.ID,
		p.UserID,
		p.Email,
		p.WalletAddress,
		p.UniqueName,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

// GetProfile retrieves a profile by ID, nil when it does not exist
func (db *DB) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	query := `
		SELECT id, user_id, email, wallet_address, unique_name, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	err := db.GetContext(ctx, &p, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProfiles returns profiles ordered by creation time
func (db *DB) ListProfiles(ctx context.Context, limit, offset int) ([]models.Profile, error) {
	var profiles []models.Profile
	query := `
		SELECT id, user_id, email, wallet_address, unique_name, created_at, updated_at
		FROM profiles
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`
	if err := db.SelectContext(ctx, &profiles, query, limit, offset); err != nil {
		return nil, err
	}
	return profiles, nil
}

// UpdateProfile overwrites the mutable columns, reporting whether a row matched
func (db *DB) UpdateProfile(ctx context.Context, p *models.Profile) (bool, error) {
	query := `
		UPDATE profiles
		SET email = $2, wallet_address = $3, unique_name = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING user_id, created_at, updated_at
	`
	err := db.QueryRowContext(
		ctx, query,
		p.ID,
		p.Email,
		p.WalletAddress,
		p.UniqueName,
	).Scan(&p.UserID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapError(err)
	}
	return true, nil
}

// DeleteProfile removes a profile, reporting whether a row matched
func (db *DB) DeleteProfile(ctx context.Context, id string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
