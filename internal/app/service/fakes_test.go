package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"dark_api/internal/common"
	"dark_api/internal/domain/model"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func cloneTask(t *model.Task) *model.Task {
	c := *t
	c.Names = append([]string(nil), t.Names...)
	c.Images = append([]string{}, t.Images...)
	return &c
}

type memTaskRepo struct {
	mu        sync.Mutex
	tasks     map[string]*model.Task
	solutions *memSolutionRepo
	seq       int
	saveErr   error
}

func newMemTaskRepo(solutions *memSolutionRepo) *memTaskRepo {
	return &memTaskRepo{tasks: make(map[string]*model.Task), solutions: solutions}
}

func (r *memTaskRepo) sorted(keep func(*model.Task) bool, less func(a, b *model.Task) bool, page model.Page) []model.Task {
	var out []*model.Task
	for _, t := range r.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })

	res := []model.Task{}
	for i := page.Offset(); i < len(out) && len(res) < page.Limit(); i++ {
		res = append(res, *cloneTask(out[i]))
	}
	return res
}

func (r *memTaskRepo) FindForUser(ctx context.Context, userID string, page model.Page) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(t *model.Task) bool {
		if t.OwnerID == userID {
			return true
		}
		solved, _ := r.solutions.ExistsFor(ctx, t.ID, userID)
		return t.Reviewed && !solved
	}, func(a, b *model.Task) bool { return a.CreatedAt.After(b.CreatedAt) }, page), nil
}

func (r *memTaskRepo) FindAllByReviewState(ctx context.Context, page model.Page) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(*model.Task) bool { return true }, func(a, b *model.Task) bool {
		if a.Reviewed != b.Reviewed {
			return !a.Reviewed
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}, page), nil
}

func (r *memTaskRepo) find(match func(*model.Task) bool, id string) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || !match(t) {
		return nil, common.ErrNotFound
	}
	return cloneTask(t), nil
}

func (r *memTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	return r.find(func(*model.Task) bool { return true }, id)
}

func (r *memTaskRepo) FindByIDForUser(ctx context.Context, id, userID string) (*model.Task, error) {
	return r.find(func(t *model.Task) bool { return t.OwnerID == userID || t.Reviewed }, id)
}

func (r *memTaskRepo) FindByIDForOwner(ctx context.Context, id, ownerID string) (*model.Task, error) {
	return r.find(func(t *model.Task) bool { return t.OwnerID == ownerID }, id)
}

func (r *memTaskRepo) FindByIDReviewedExcludingOwner(ctx context.Context, id, userID string) (*model.Task, error) {
	return r.find(func(t *model.Task) bool { return t.Reviewed && t.OwnerID != userID }, id)
}

func (r *memTaskRepo) Save(ctx context.Context, t *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	stored := cloneTask(t)
	if prev, ok := r.tasks[t.ID]; ok {
		stored.Names = prev.Names // names never change after creation
		stored.CreatedAt = prev.CreatedAt
	} else {
		r.seq++
		stored.CreatedAt = time.Unix(int64(r.seq), 0)
	}
	r.tasks[t.ID] = stored
	return nil
}

func (r *memTaskRepo) AppendImage(ctx context.Context, id, ref string, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	t, ok := r.tasks[id]
	if !ok {
		return common.ErrNotFound
	}
	if len(t.Images) >= limit {
		return common.ErrImageLimit
	}
	t.Images = append(t.Images, ref)
	return nil
}

func (r *memTaskRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *memTaskRepo) get(id string) *model.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		return cloneTask(t)
	}
	return nil
}

type memSolutionRepo struct {
	mu        sync.Mutex
	byKey     map[[2]string]*model.Solution
	hideExist bool // ExistsFor always says no, leaving the decision to Save
}

func newMemSolutionRepo() *memSolutionRepo {
	return &memSolutionRepo{byKey: make(map[[2]string]*model.Solution)}
}

func (r *memSolutionRepo) ExistsFor(ctx context.Context, taskID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hideExist {
		return false, nil
	}
	_, ok := r.byKey[[2]string{taskID, userID}]
	return ok, nil
}

func (r *memSolutionRepo) Save(ctx context.Context, s *model.Solution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]string{s.TaskID, s.UserID}
	if _, ok := r.byKey[key]; ok {
		return common.ErrConflict
	}
	c := *s
	r.byKey[key] = &c
	return nil
}

func (r *memSolutionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}

// noLocker grants every lock at once, as if a held lock had already expired.
type noLocker struct{}

func (noLocker) Lock(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

type memIdentity struct {
	users map[string]*model.User
}

func (m *memIdentity) ResolveUser(ctx context.Context, name string) (*model.User, error) {
	u, ok := m.users[name]
	if !ok {
		return nil, common.ErrUnauthorized
	}
	c := *u
	return &c, nil
}

func (m *memIdentity) ResolveUserID(ctx context.Context, name string) (string, error) {
	u, err := m.ResolveUser(ctx, name)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

type memImages struct {
	mu         sync.Mutex
	blobs      map[string][]byte
	deleted    []string
	seq        int
	saveErr    error
	failDelete map[string]bool
}

func newMemImages() *memImages {
	return &memImages{blobs: make(map[string][]byte), failDelete: make(map[string]bool)}
}

func (m *memImages) Save(ctx context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.seq++
	ref := name + "-" + string(rune('a'+m.seq))
	m.blobs[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (m *memImages) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[ref]
	if !ok {
		return nil, common.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memImages) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ref)
	if m.failDelete[ref] {
		return errors.New("disk on fire")
	}
	delete(m.blobs, ref)
	return nil
}

type memLedger struct {
	mu      sync.Mutex
	ratings map[string]int
	err     error
}

func (l *memLedger) AddRating(ctx context.Context, userID string, amount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.ratings[userID] += amount
	return nil
}

func (l *memLedger) rating(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ratings[userID]
}

type memCleanup struct {
	mu   sync.Mutex
	refs []string
}

func (c *memCleanup) Enqueue(ctx context.Context, ref string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs = append(c.refs, ref)
	return nil
}
