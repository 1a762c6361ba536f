// Package models defines data structures shared by the factsheet generator.
package models

import (
	"time"
)

// TaskStatus represents the state of a generation task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// TaskResult describes the artifact produced by a completed task.
type TaskResult struct {
	Filename    string `json:"filename"`
	Path        string `json:"path,omitempty"`
	WordCount   int    `json:"word_count"`
	CompanyName string `json:"company_name"`
}

// Task is one factsheet generation request and its lifecycle.
//
// Lifecycle: pending -> processing -> completed | failed
type Task struct {
	ID       string      `json:"task_id"`
	Status   TaskStatus  `json:"status"`
	Progress int         `json:"progress"`
	Message  string      `json:"message"`
	Result   *TaskResult `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`

	URL         string     `json:"url"`
	Provider    string     `json:"provider,omitempty"`
	Model       string     `json:"model,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	c := t
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return c
}
