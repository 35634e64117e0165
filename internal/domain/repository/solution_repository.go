package repository

import (
	"context"
	"database/sql"
	"fmt"

	"dark_api/internal/common"
	"dark_api/internal/domain/model"
)

type SolutionRepository interface {
	ExistsFor(ctx context.Context, taskID, userID string) (bool, error)
	// Save returns common.ErrConflict when a solution for (task, user) already exists.
	Save(ctx context.Context, sol *model.Solution) error
}

type pgSolutionRepository struct {
	db *sql.DB
}

func NewPgSolutionRepository(db *sql.DB) SolutionRepository {
	return &pgSolutionRepository{db: db}
}

func (r *pgSolutionRepository) ExistsFor(ctx context.Context, taskID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM solutions WHERE task_id = $1 AND user_id = $2)`,
		taskID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgSolutionRepository.ExistsFor: %w", err)
	}
	return exists, nil
}

func (r *pgSolutionRepository) Save(ctx context.Context, s *model.Solution) error {
	query := `INSERT INTO solutions (id, task_id, user_id, answer, rating)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, s.ID, s.TaskID, s.UserID, s.Answer, s.Rating).Scan(&s.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) { // uq_solutions_task_user
			return fmt.Errorf("solution for task %s already submitted: %w", s.TaskID, common.ErrConflict)
		}
		return fmt.Errorf("pgSolutionRepository.Save: %w", err)
	}
	return nil
}
