package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/contactdesk/server/internal/model"
)

// UserRepo defines the interface for user profile repository operations
type UserRepo interface {
	GetByID(ctx context.Context, userID uuid.UUID) (model.UserProfile, error)
	GetByUsername(ctx context.Context, username string) (model.UserProfile, error)
	Upsert(ctx context.Context, profile model.UserProfile) (model.UserProfile, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `user_id, username, display_name, role, vonage_user_id, created_at`

func scanUser(row *sql.Row) (model.UserProfile, error) {
	var (
		p      model.UserProfile
		role   string
		vonage sql.NullString
	)
	if err := row.Scan(&p.UserID, &p.Username, &p.DisplayName, &role, &vonage, &p.CreatedAt); err != nil {
		return model.UserProfile{}, err
	}
	p.Role = model.Role(role)
	if vonage.Valid {
		p.VonageUserID = &vonage.String
	}
	return p, nil
}

// GetByID retrieves a user profile by user ID
func (r *userRepo) GetByID(ctx context.Context, userID uuid.UUID) (model.UserProfile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM user_profile WHERE user_id = $1`, userID)
	p, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.UserProfile{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return model.UserProfile{}, fmt.Errorf("failed to query user: %w", err)
	}
	return p, nil
}

// GetByUsername retrieves a user profile by its vendor username
func (r *userRepo) GetByUsername(ctx context.Context, username string) (model.UserProfile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM user_profile WHERE username = $1`, username)
	p, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.UserProfile{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		return model.UserProfile{}, fmt.Errorf("failed to query user: %w", err)
	}
	return p, nil
}

// Upsert creates or updates a profile and makes sure it has a presence row (OFFLINE/ALL)
func (r *userRepo) Upsert(ctx context.Context, profile model.UserProfile) (model.UserProfile, error) {
	if profile.Role == "" {
		profile.Role = model.RoleAgent
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO user_profile (user_id, username, display_name, role, vonage_user_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    display_name = EXCLUDED.display_name,
		    role = EXCLUDED.role,
		    vonage_user_id = COALESCE(EXCLUDED.vonage_user_id, user_profile.vonage_user_id)
		RETURNING `+userColumns,
		profile.UserID, profile.Username, profile.DisplayName, string(profile.Role), profile.VonageUserID)
	saved, err := scanUser(row)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("upsert user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_presence (user_id, status, availability, activity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`, saved.UserID, string(model.StatusOffline), string(model.AvailabilityAll), string(model.ActivityIdle))
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("create presence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.UserProfile{}, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

// Delete removes a profile; devices, codes and presence cascade
func (r *userRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_profile WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}
