package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"dark_api/internal/common"
	"dark_api/internal/domain/model"
	"dark_api/internal/domain/repository"
	"dark_api/internal/platform/lock"

	"github.com/google/uuid"
)

type IdentityProvider interface {
	ResolveUserID(ctx context.Context, name string) (string, error)
	ResolveUser(ctx context.Context, name string) (*model.User, error)
}

type ImageStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

type RatingLedger interface {
	AddRating(ctx context.Context, userID string, amount int) error
}

// CleanupQueue receives image deletions that failed and should be retried later.
type CleanupQueue interface {
	Enqueue(ctx context.Context, ref string) error
}

type TaskServiceDeps struct {
	Tasks     repository.TaskRepository
	Solutions repository.SolutionRepository
	Identity  IdentityProvider
	Images    ImageStore
	Ledger    RatingLedger
	Locker    lock.TaskLocker
	Cleanup   CleanupQueue // optional
	Scorer    Scorer

	MaxImages     int
	MaxImageBytes int64
}

// TaskService runs the task lifecycle: creation, moderation, image attachment and solving.
type TaskService struct {
	taskRepo      repository.TaskRepository
	solutionRepo  repository.SolutionRepository
	identity      IdentityProvider
	images        ImageStore
	ledger        RatingLedger
	locker        lock.TaskLocker
	cleanup       CleanupQueue
	scorer        Scorer
	maxImages     int
	maxImageBytes int64
}

func NewTaskService(d TaskServiceDeps) *TaskService {
	return &TaskService{
		taskRepo:      d.Tasks,
		solutionRepo:  d.Solutions,
		identity:      d.Identity,
		images:        d.Images,
		ledger:        d.Ledger,
		locker:        d.Locker,
		cleanup:       d.Cleanup,
		scorer:        d.Scorer,
		maxImages:     d.MaxImages,
		maxImageBytes: d.MaxImageBytes,
	}
}

type CreateTaskRequest struct {
	Names []string `json:"names"`
}

// ListAvailable returns the tasks the principal may see.
// Plain users get their own tasks and reviewed tasks of others they have not solved yet;
// moderators get everything, unreviewed first.
func (s *TaskService) ListAvailable(ctx context.Context, p model.Principal, page model.Page) ([]model.TaskView, error) {
	switch {
	case p.Role.IsUser():
		userID, err := s.identity.ResolveUserID(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		tasks, err := s.taskRepo.FindForUser(ctx, userID, page)
		if err != nil {
			return nil, err
		}
		views := make([]model.TaskView, 0, len(tasks))
		for i := range tasks {
			views = append(views, viewFor(&tasks[i], userID))
		}
		return views, nil

	case p.Role.HasControlPrivileges():
		tasks, err := s.taskRepo.FindAllByReviewState(ctx, page)
		if err != nil {
			return nil, err
		}
		views := make([]model.TaskView, 0, len(tasks))
		for i := range tasks {
			views = append(views, tasks[i].FullView())
		}
		return views, nil
	}
	return nil, common.ErrForbidden
}

func (s *TaskService) GetOne(ctx context.Context, p model.Principal, id string) (*model.TaskView, error) {
	switch {
	case p.Role.IsUser():
		userID, err := s.identity.ResolveUserID(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		task, err := s.taskRepo.FindByIDForUser(ctx, id, userID)
		if err != nil {
			return nil, err
		}
		view := viewFor(task, userID)
		return &view, nil

	case p.Role.HasControlPrivileges():
		task, err := s.taskRepo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		view := task.FullView()
		return &view, nil
	}
	return nil, common.ErrForbidden
}

func viewFor(task *model.Task, userID string) model.TaskView {
	if task.OwnerID == userID {
		return task.FullView()
	}
	return task.SolverView()
}

// Mark approves (isAllowed) or rejects a task. Rejecting an unreviewed task deletes it
// along with its images; any other combination just stores reviewed = isAllowed.
// It reports false when the principal may not moderate or the task does not exist.
func (s *TaskService) Mark(ctx context.Context, p model.Principal, id string, isAllowed bool) (bool, error) {
	if !p.Role.HasControlPrivileges() {
		return false, nil
	}

	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if !isAllowed && !task.Reviewed {
		s.deleteImages(ctx, task.Images)
		if err := s.taskRepo.DeleteByID(ctx, id); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		log.Printf("INFO: Task %s rejected by %s and deleted (%d images)", id, p.Name, len(task.Images))
		return true, nil
	}

	task.Reviewed = isAllowed
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return false, err
	}
	log.Printf("INFO: Task %s marked reviewed=%t by %s", id, isAllowed, p.Name)
	return true, nil
}

// deleteImages is best effort: each failure is logged and queued for retry, never returned.
func (s *TaskService) deleteImages(ctx context.Context, refs []string) {
	for _, ref := range refs {
		err := s.images.Delete(ctx, ref)
		if err == nil {
			continue
		}
		log.Printf("ERROR: Failed to delete image %s: %v", ref, err)
		if s.cleanup == nil {
			continue
		}
		if qErr := s.cleanup.Enqueue(ctx, ref); qErr != nil {
			log.Printf("ERROR: Failed to queue image %s for cleanup: %v", ref, qErr)
		}
	}
}

// UploadImage attaches an image to a task owned by the principal and returns its ref.
func (s *TaskService) UploadImage(ctx context.Context, p model.Principal, id, filename string, data []byte) (string, error) {
	userID, err := s.identity.ResolveUserID(ctx, p.Name)
	if err != nil {
		return "", err
	}

	// Held across the count check, the blob save and the append.
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return "", err
	}
	defer unlock()

	// Ownership first, so non-owners learn nothing about the task from validation errors.
	task, err := s.taskRepo.FindByIDForOwner(ctx, id, userID)
	if err != nil {
		return "", err
	}
	if err := s.validateImage(data); err != nil {
		return "", err
	}
	if len(task.Images) >= s.maxImages {
		return "", common.Errorf("task %s already has %d images: %w", id, len(task.Images), common.ErrImageLimit)
	}

	ref, err := s.images.Save(ctx, filename, data)
	if err != nil {
		log.Printf("ERROR: Failed to save image for task %s: %v", id, err)
		return "", common.Errorf("save image for task %s: %w", id, common.ErrStorage)
	}

	// The repository re-checks the count, which still holds if the lock expired mid-upload.
	if err := s.taskRepo.AppendImage(ctx, id, ref, s.maxImages); err != nil {
		s.deleteImages(ctx, []string{ref})
		return "", err
	}
	return ref, nil
}

func (s *TaskService) validateImage(data []byte) error {
	if len(data) == 0 {
		return common.Errorf("empty image: %w", common.ErrValidation)
	}
	if s.maxImageBytes > 0 && int64(len(data)) > s.maxImageBytes {
		return common.Errorf("image exceeds %d bytes: %w", s.maxImageBytes, common.ErrValidation)
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return common.Errorf("unsupported content type %s: %w", ct, common.ErrValidation)
	}
	return nil
}

// DownloadImage streams an image by ref. The caller closes the reader.
func (s *TaskService) DownloadImage(ctx context.Context, ref string) (io.ReadCloser, error) {
	return s.images.Get(ctx, ref)
}

// Add creates an unreviewed task owned by the principal and returns its id.
func (s *TaskService) Add(ctx context.Context, p model.Principal, req CreateTaskRequest) (string, error) {
	user, err := s.identity.ResolveUser(ctx, p.Name)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(req.Names))
	for _, n := range req.Names {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "", common.Errorf("at least one name is required: %w", common.ErrValidation)
	}

	task := &model.Task{
		ID:       uuid.NewString(),
		Names:    names,
		Images:   []string{},
		OwnerID:  user.ID,
		Reviewed: false,
	}
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}
	log.Printf("INFO: Task %s created by %s", task.ID, user.Username)
	return task.ID, nil
}

// Solve submits an answer to a reviewed task owned by someone else.
// It reports false for a repeated submission or a wrong answer; neither stores anything.
func (s *TaskService) Solve(ctx context.Context, p model.Principal, id, answer string) (bool, error) {
	user, err := s.identity.ResolveUser(ctx, p.Name)
	if err != nil {
		return false, err
	}

	task, err := s.taskRepo.FindByIDReviewedExcludingOwner(ctx, id, user.ID)
	if err != nil {
		return false, err
	}

	exists, err := s.solutionRepo.ExistsFor(ctx, task.ID, user.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	rating, ok := s.scorer.Score(task, answer)
	if !ok {
		return false, nil
	}

	solution := &model.Solution{
		ID:     uuid.NewString(),
		TaskID: task.ID,
		UserID: user.ID,
		Answer: answer,
		Rating: rating,
	}
	if err := s.solutionRepo.Save(ctx, solution); err != nil {
		// Lost a race with a concurrent submission; the unique constraint decided.
		if errors.Is(err, common.ErrConflict) {
			return false, nil
		}
		return false, err
	}

	if err := s.ledger.AddRating(ctx, user.ID, rating); err != nil {
		log.Printf("ERROR: Solution %s stored but rating +%d for user %s failed: %v", solution.ID, rating, user.ID, err)
	}
	return true, nil
}
