package model

import "time"

// Solution is a single user's answer to a task. At most one exists per (TaskID, UserID).
type Solution struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	Answer    string    `json:"answer"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}
