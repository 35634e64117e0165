package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dark_api/internal/common"
	"dark_api/internal/domain/model"
)

type TaskRepository interface {
	// FindForUser lists the user's own tasks plus reviewed tasks of others the user has not solved.
	FindForUser(ctx context.Context, userID string, page model.Page) ([]model.Task, error)
	// FindAllByReviewState lists every task, unreviewed first.
	FindAllByReviewState(ctx context.Context, page model.Page) ([]model.Task, error)
	FindByID(ctx context.Context, id string) (*model.Task, error)
	// FindByIDForUser returns the task if the user owns it or it is reviewed.
	FindByIDForUser(ctx context.Context, id, userID string) (*model.Task, error)
	FindByIDForOwner(ctx context.Context, id, ownerID string) (*model.Task, error)
	FindByIDReviewedExcludingOwner(ctx context.Context, id, userID string) (*model.Task, error)
	Save(ctx context.Context, task *model.Task) error
	// AppendImage adds ref after the task's last image. It fails with common.ErrImageLimit
	// when the task already holds limit images, whatever the caller saw earlier.
	AppendImage(ctx context.Context, id, ref string, limit int) error
	DeleteByID(ctx context.Context, id string) error
}

type pgTaskRepository struct {
	db *sql.DB
}

func NewPgTaskRepository(db *sql.DB) TaskRepository {
	return &pgTaskRepository{db: db}
}

const taskSelect = `SELECT t.id, t.owner_id, t.reviewed, t.created_at, t.updated_at FROM tasks t`

func (r *pgTaskRepository) FindForUser(ctx context.Context, userID string, page model.Page) ([]model.Task, error) {
	query := taskSelect + `
        WHERE t.owner_id = $1
           OR (t.reviewed AND NOT EXISTS (
                SELECT 1 FROM solutions s WHERE s.task_id = t.id AND s.user_id = $1))
        ORDER BY t.created_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, "FindForUser", query, userID, page.Limit(), page.Offset())
}

func (r *pgTaskRepository) FindAllByReviewState(ctx context.Context, page model.Page) ([]model.Task, error) {
	query := taskSelect + ` ORDER BY t.reviewed ASC, t.created_at ASC LIMIT $1 OFFSET $2`
	return r.list(ctx, "FindAllByReviewState", query, page.Limit(), page.Offset())
}

func (r *pgTaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	return r.one(ctx, "FindByID", taskSelect+` WHERE t.id = $1`, id)
}

func (r *pgTaskRepository) FindByIDForUser(ctx context.Context, id, userID string) (*model.Task, error) {
	return r.one(ctx, "FindByIDForUser", taskSelect+` WHERE t.id = $1 AND (t.owner_id = $2 OR t.reviewed)`, id, userID)
}

func (r *pgTaskRepository) FindByIDForOwner(ctx context.Context, id, ownerID string) (*model.Task, error) {
	return r.one(ctx, "FindByIDForOwner", taskSelect+` WHERE t.id = $1 AND t.owner_id = $2`, id, ownerID)
}

func (r *pgTaskRepository) FindByIDReviewedExcludingOwner(ctx context.Context, id, userID string) (*model.Task, error) {
	return r.one(ctx, "FindByIDReviewedExcludingOwner", taskSelect+` WHERE t.id = $1 AND t.reviewed AND t.owner_id <> $2`, id, userID)
}

// Save upserts the task row and rewrites its image list in one transaction.
// Names are written once; later saves never touch them.
func (r *pgTaskRepository) Save(ctx context.Context, t *model.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgTaskRepository.Save begin: %w", err)
	}
	defer tx.Rollback()

	var inserted bool
	err = tx.QueryRowContext(ctx, `
        INSERT INTO tasks (id, owner_id, reviewed)
        VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET reviewed = EXCLUDED.reviewed, updated_at = CURRENT_TIMESTAMP
        RETURNING created_at, updated_at, (xmax = 0)`,
		t.ID, t.OwnerID, t.Reviewed,
	).Scan(&t.CreatedAt, &t.UpdatedAt, &inserted)
	if err != nil {
		return fmt.Errorf("pgTaskRepository.Save upsert: %w", err)
	}

	if inserted {
		for i, name := range t.Names {
			if _, err := tx.ExecContext(ctx, `INSERT INTO task_names (task_id, position, name) VALUES ($1, $2, $3)`, t.ID, i, name); err != nil {
				return fmt.Errorf("pgTaskRepository.Save name %d: %w", i, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_images WHERE task_id = $1`, t.ID); err != nil {
		return fmt.Errorf("pgTaskRepository.Save clear images: %w", err)
	}
	for i, ref := range t.Images {
		if _, err := tx.ExecContext(ctx, `INSERT INTO task_images (task_id, position, ref) VALUES ($1, $2, $3)`, t.ID, i, ref); err != nil {
			return fmt.Errorf("pgTaskRepository.Save image %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgTaskRepository.Save commit: %w", err)
	}
	return nil
}

func (r *pgTaskRepository) AppendImage(ctx context.Context, id, ref string, limit int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgTaskRepository.AppendImage begin: %w", err)
	}
	defer tx.Rollback()

	// Row lock on the task makes concurrent appends count one at a time.
	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM tasks WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || common.IsInvalidInput(err) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgTaskRepository.AppendImage lock: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM task_images WHERE task_id = $1`, id).Scan(&count); err != nil {
		return fmt.Errorf("pgTaskRepository.AppendImage count: %w", err)
	}
	if count >= limit {
		return common.Errorf("task %s already has %d images: %w", id, count, common.ErrImageLimit)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO task_images (task_id, position, ref) VALUES ($1, $2, $3)`, id, count, ref); err != nil {
		return fmt.Errorf("pgTaskRepository.AppendImage insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id); err != nil {
		return fmt.Errorf("pgTaskRepository.AppendImage touch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgTaskRepository.AppendImage commit: %w", err)
	}
	return nil
}

// DeleteByID removes the task; names, images and solutions go with it via ON DELETE CASCADE.
func (r *pgTaskRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		if common.IsInvalidInput(err) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgTaskRepository.DeleteByID: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgTaskRepository.DeleteByID rows: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgTaskRepository) one(ctx context.Context, op, query string, args ...interface{}) (*model.Task, error) {
	t := &model.Task{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.OwnerID, &t.Reviewed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		// A malformed id cannot name any task.
		if errors.Is(err, sql.ErrNoRows) || common.IsInvalidInput(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTaskRepository.%s: %w", op, err)
	}
	if err := r.loadCollections(ctx, t); err != nil {
		return nil, fmt.Errorf("pgTaskRepository.%s: %w", op, err)
	}
	return t, nil
}

func (r *pgTaskRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgTaskRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Reviewed, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgTaskRepository.%s scan: %w", op, err)
		}
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTaskRepository.%s rows.Err: %w", op, err)
	}
	rows.Close()

	// N+1, fine for page sizes the API allows.
	for i := range tasks {
		if err := r.loadCollections(ctx, &tasks[i]); err != nil {
			return nil, fmt.Errorf("pgTaskRepository.%s: %w", op, err)
		}
	}
	return tasks, nil
}

func (r *pgTaskRepository) loadCollections(ctx context.Context, t *model.Task) error {
	names, err := r.strings(ctx, `SELECT name FROM task_names WHERE task_id = $1 ORDER BY position ASC`, t.ID)
	if err != nil {
		return fmt.Errorf("names: %w", err)
	}
	images, err := r.strings(ctx, `SELECT ref FROM task_images WHERE task_id = $1 ORDER BY position ASC`, t.ID)
	if err != nil {
		return fmt.Errorf("images: %w", err)
	}
	t.Names = names
	t.Images = images
	return nil
}

func (r *pgTaskRepository) strings(ctx context.Context, query, taskID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
