package service

import "dark_api/internal/domain/model"

// Scorer rates an answer to a task. ok is false when the answer earns nothing.
type Scorer interface {
	Score(task *model.Task, answer string) (rating int, ok bool)
}

// ExactMatchScorer awards a flat Points for an answer equal to one of the task's names.
type ExactMatchScorer struct {
	Points int
}

func (s ExactMatchScorer) Score(task *model.Task, answer string) (int, bool) {
	for _, name := range task.Names {
		if name == answer {
			return s.Points, true
		}
	}
	return 0, false
}
