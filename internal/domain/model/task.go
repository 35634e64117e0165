package model

import (
	"time"
)

type Task struct {
	ID        string    `json:"id"`
	Names     []string  `json:"names"`
	Images    []string  `json:"images"`
	OwnerID   string    `json:"owner_id"`
	Reviewed  bool      `json:"reviewed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskView is what the API hands out. Names and OwnerID are left empty when the
// caller is a solver looking at somebody else's task.
type TaskView struct {
	ID       string   `json:"id"`
	Names    []string `json:"names,omitempty"`
	Images   []string `json:"images"`
	OwnerID  string   `json:"owner_id,omitempty"`
	Reviewed bool     `json:"reviewed"`
}

// FullView is the moderator/owner projection.
func (t *Task) FullView() TaskView {
	return TaskView{
		ID:       t.ID,
		Names:    t.Names,
		Images:   nonNil(t.Images),
		OwnerID:  t.OwnerID,
		Reviewed: t.Reviewed,
	}
}

// SolverView hides the candidate answers and the owner.
func (t *Task) SolverView() TaskView {
	return TaskView{
		ID:       t.ID,
		Images:   nonNil(t.Images),
		Reviewed: t.Reviewed,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

func (p Page) Limit() int {
	if p.Size <= 0 {
		return 20
	}
	return p.Size
}

func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit()
}
