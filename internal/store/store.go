// Package store persists tasks and user stories. Two backends satisfy the
// same interfaces: a sqlite database and plain JSON files. The Gateway picks
// one per operation by probing for a live database connection, so a server
// started without a database keeps working against the files.
package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"labtrack/internal/domain"
)

// ErrNotFound is returned when a task or story id does not exist.
var ErrNotFound = errors.New("not found")

type TaskStore interface {
	ListTasks(ctx context.Context) ([]domain.TaskWithStory, error)
	GetTask(ctx context.Context, id int64) (domain.Task, error)
	CreateTask(ctx context.Context, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id int64) error
	TasksByStory(ctx context.Context, storyID int64) ([]domain.Task, error)
}

type StoryStore interface {
	ListStories(ctx context.Context) ([]domain.UserStory, error)
	GetStory(ctx context.Context, id int64) (domain.UserStory, error)
	CreateStory(ctx context.Context, s domain.UserStory) (domain.UserStory, error)
	DeleteStory(ctx context.Context, id int64) error
}

// Backend is one storage implementation.
type Backend interface {
	TaskStore
	StoryStore
}

// Stats aggregates the whole task set.
type Stats struct {
	TotalTasks           int            `json:"total_tasks"`
	TotalEffort          int            `json:"total_effort"`
	TotalHoursIncomplete int            `json:"total_hours_incomplete"`
	StatusCounts         map[string]int `json:"status_counts"`
	PriorityCounts       map[string]int `json:"priority_counts"`
	AssignedHours        map[string]int `json:"assigned_hours"`
	TotalTokens          int            `json:"total_tokens"`
	TotalCost            float64        `json:"total_cost"`
}

// Unassigned is the stats bucket for tasks without an assignee.
const Unassigned = "Sin asignar"

// Gateway routes each operation to the database when one is reachable and to
// the JSON files otherwise. The probe runs per operation: a database that
// comes up mid-process starts being used without a restart.
type Gateway struct {
	db   *sql.DB
	sql  *SQLStore
	file *FileStore
	log  *slog.Logger
	now  func() time.Time
}

func NewGateway(db *sql.DB, file *FileStore, log *slog.Logger) *Gateway {
	g := &Gateway{file: file, log: log, now: time.Now}
	if db != nil {
		g.db = db
		g.sql = &SQLStore{DB: db}
	}
	return g
}

func (g *Gateway) backend(ctx context.Context) Backend {
	if g.db != nil {
		if err := g.db.PingContext(ctx); err == nil {
			return g.sql
		}
		g.log.Warn("database unreachable, using file storage")
	}
	return g.file
}

// UsingDB reports whether the next operation would hit the database.
func (g *Gateway) UsingDB(ctx context.Context) bool {
	_, ok := g.backend(ctx).(*SQLStore)
	return ok
}

func (g *Gateway) ListTasks(ctx context.Context) ([]domain.TaskWithStory, error) {
	return g.backend(ctx).ListTasks(ctx)
}

func (g *Gateway) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return g.backend(ctx).GetTask(ctx, id)
}

// CreateTask normalizes the loose input fields into a task and persists it.
func (g *Gateway) CreateTask(ctx context.Context, fields map[string]any) (domain.Task, error) {
	t := domain.NewTask(fields, g.now())
	t.ID = 0
	return g.backend(ctx).CreateTask(ctx, t)
}

// UpdateTask applies whitelisted fields to an existing task and persists the
// result. The update timestamp is bumped even for a no-op payload.
func (g *Gateway) UpdateTask(ctx context.Context, id int64, fields map[string]any) (domain.Task, error) {
	b := g.backend(ctx)
	t, err := b.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	t.Apply(fields, g.now())
	if err := b.UpdateTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (g *Gateway) DeleteTask(ctx context.Context, id int64) error {
	return g.backend(ctx).DeleteTask(ctx, id)
}

func (g *Gateway) TasksByStory(ctx context.Context, storyID int64) ([]domain.Task, error) {
	return g.backend(ctx).TasksByStory(ctx, storyID)
}

func (g *Gateway) ListStories(ctx context.Context) ([]domain.UserStory, error) {
	return g.backend(ctx).ListStories(ctx)
}

func (g *Gateway) GetStory(ctx context.Context, id int64) (domain.UserStory, error) {
	return g.backend(ctx).GetStory(ctx, id)
}

func (g *Gateway) CreateStory(ctx context.Context, s domain.UserStory) (domain.UserStory, error) {
	if err := s.Validate(); err != nil {
		return domain.UserStory{}, err
	}
	if s.CreatedAt == "" {
		s.CreatedAt = g.now().UTC().Format(time.RFC3339)
	}
	s.ID = 0
	return g.backend(ctx).CreateStory(ctx, s)
}

// DeleteStory removes a story. Its tasks survive with the story link cleared.
func (g *Gateway) DeleteStory(ctx context.Context, id int64) error {
	return g.backend(ctx).DeleteStory(ctx, id)
}

// Stats folds the full task set into the aggregate report. Counts only
// include values that actually occur, so an empty task set yields empty maps.
func (g *Gateway) Stats(ctx context.Context) (Stats, error) {
	tasks, err := g.ListTasks(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{
		StatusCounts:   map[string]int{},
		PriorityCounts: map[string]int{},
		AssignedHours:  map[string]int{},
	}
	for _, t := range tasks {
		s.TotalTasks++
		s.TotalEffort += t.Effort
		if t.Status != domain.StatusDone {
			s.TotalHoursIncomplete += t.Effort
		}
		s.StatusCounts[string(t.Status)]++
		s.PriorityCounts[string(t.Priority)]++
		who := t.AssignedTo
		if who == "" {
			who = Unassigned
		}
		s.AssignedHours[who] += t.Effort
		s.TotalTokens += t.TokensSpent
		s.TotalCost += t.Cost
	}
	return s, nil
}
