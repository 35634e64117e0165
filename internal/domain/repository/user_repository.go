package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dark_api/internal/common"
	"dark_api/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	// AddRating is the only way a user's rating changes.
	AddRating(ctx context.Context, userID string, amount int) error
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userSelect = `SELECT id, username, hashed_password, role, rating, created_at, updated_at FROM users`

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, hashed_password, role)
	          VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.HashedPassword, user.Role)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user with given username already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.one(ctx, "FindByUsername", userSelect+` WHERE username = $1`, username)
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.one(ctx, "FindByID", userSelect+` WHERE id = $1`, id)
}

func (r *pgUserRepository) AddRating(ctx context.Context, userID string, amount int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET rating = rating + $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		amount, userID,
	)
	if err != nil {
		return fmt.Errorf("pgUserRepository.AddRating: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgUserRepository) one(ctx context.Context, op, query string, arg string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.HashedPassword, &user.Role, &user.Rating, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.%s: %w", op, err)
	}
	return user, nil
}
