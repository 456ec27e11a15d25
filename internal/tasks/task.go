// Package tasks tracks the state of video generation tasks.
package tasks

import (
	"context"
	"errors"
	"maps"
	"time"
)

// ErrNotFound is returned for unknown task ids.
var ErrNotFound = errors.New("task not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no further updates are expected.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusError }

// SceneStatus is the progress line shown for one scene. Scene "0" carries
// task-wide messages.
type SceneStatus struct {
	Text string `json:"text,omitempty"`
	Step string `json:"step"`
	Done bool   `json:"done"`
}

// Task is a snapshot of one generation task.
type Task struct {
	ID         string                 `json:"id"`
	Status     Status                 `json:"status"`
	Progress   int                    `json:"progress"`
	Scenes     map[string]SceneStatus `json:"scenes_status"`
	VideoKey   string                 `json:"video_key,omitempty"`
	Error      string                 `json:"error,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	LastUpdate time.Time              `json:"last_update"`
}

// New returns a pending task.
func New(id string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:         id,
		Status:     StatusPending,
		Scenes:     map[string]SceneStatus{},
		CreatedAt:  now,
		LastUpdate: now,
	}
}

// Clone returns a deep copy.
func (t *Task) Clone() *Task {
	cp := *t
	cp.Scenes = maps.Clone(t.Scenes)
	if cp.Scenes == nil {
		cp.Scenes = map[string]SceneStatus{}
	}
	return &cp
}

// SetScene merges u into the status line of scene id. Empty text and step
// keep their previous values.
func (t *Task) SetScene(id string, u SceneStatus) {
	if t.Scenes == nil {
		t.Scenes = map[string]SceneStatus{}
	}
	cur := t.Scenes[id]
	if u.Text != "" {
		cur.Text = u.Text
	}
	if u.Step != "" {
		cur.Step = u.Step
	}
	cur.Done = u.Done
	t.Scenes[id] = cur
}

// Store persists tasks. Every mutation goes through Update so concurrent
// scene workers never lose each other's writes.
type Store interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	// Update applies fn to the current state and persists the result,
	// returning the new snapshot. Terminal tasks are still passed to fn.
	Update(ctx context.Context, id string, fn func(*Task)) (*Task, error)
	Close()
}
