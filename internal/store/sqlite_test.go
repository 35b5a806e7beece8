package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"labtrack/internal/db"
	"labtrack/internal/domain"
	"labtrack/internal/migrate"
)

func newSQLStore(t *testing.T) (*SQLStore, *sql.DB) {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "labtrack.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &SQLStore{DB: conn}, conn
}

func seedTask(t *testing.T, s *SQLStore, task domain.Task) domain.Task {
	t.Helper()
	if task.CreatedAt == "" {
		task.CreatedAt = "2025-03-14T10:00:00Z"
	}
	if task.UpdatedAt == "" {
		task.UpdatedAt = task.CreatedAt
	}
	if task.Priority == "" {
		task.Priority = domain.DefaultPriority
	}
	if task.Status == "" {
		task.Status = domain.DefaultStatus
	}
	if task.Category == "" {
		task.Category = domain.DefaultCategory
	}
	created, err := s.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return created
}

func TestSQLTaskRoundTrip(t *testing.T) {
	s, _ := newSQLStore(t)
	ctx := context.Background()

	created := seedTask(t, s, domain.Task{
		Title:        "Calibrar balanza",
		Description:  "calibración mensual",
		Priority:     domain.PriorityHigh,
		Status:       domain.StatusInProgress,
		Category:     domain.CategoryMaintenance,
		Effort:       4,
		AssignedTo:   "jlopez",
		AssignedRole: "qa",
		TokensSpent:  321,
		Cost:         0.12,
	})
	if created.ID == 0 {
		t.Fatal("want assigned id")
	}

	got, err := s.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != created {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", created, got)
	}

	got.Status = domain.StatusDone
	got.UpdatedAt = "2025-03-15T10:00:00Z"
	if err := s.UpdateTask(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	back, err := s.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if back.Status != domain.StatusDone {
		t.Fatalf("update not persisted: %+v", back)
	}

	if err := s.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTask(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
}

func TestSQLNotFound(t *testing.T) {
	s, _ := newSQLStore(t)
	ctx := context.Background()

	if _, err := s.GetTask(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get: want ErrNotFound, got %v", err)
	}
	if err := s.UpdateTask(ctx, domain.Task{ID: 42, Priority: domain.DefaultPriority, Status: domain.DefaultStatus, Category: domain.DefaultCategory}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update: want ErrNotFound, got %v", err)
	}
	if err := s.DeleteTask(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete: want ErrNotFound, got %v", err)
	}
	if _, err := s.GetStory(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get story: want ErrNotFound, got %v", err)
	}
	if err := s.DeleteStory(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete story: want ErrNotFound, got %v", err)
	}
}

func TestSQLListJoinsAndSorts(t *testing.T) {
	s, _ := newSQLStore(t)
	ctx := context.Background()

	story, err := s.CreateStory(ctx, domain.UserStory{
		Project: "LIMS", Role: "analista", Goal: "g", Reason: "r",
		Description: "d", Priority: domain.PriorityHigh,
		CreatedAt: "2025-03-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("create story: %v", err)
	}

	older := seedTask(t, s, domain.Task{Title: "older", CreatedAt: "2025-03-10T00:00:00Z", StoryID: &story.ID})
	newer := seedTask(t, s, domain.Task{Title: "newer", CreatedAt: "2025-03-12T00:00:00Z"})

	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("want 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != newer.ID || tasks[1].ID != older.ID {
		t.Fatalf("want newest first, got %d,%d", tasks[0].ID, tasks[1].ID)
	}
	if tasks[1].StoryProject != "LIMS" || tasks[1].StoryPriority != "high" {
		t.Fatalf("join fields missing: %+v", tasks[1])
	}
	if tasks[0].StoryProject != "" {
		t.Fatalf("loose task must have blank story fields: %+v", tasks[0])
	}
}

func TestSQLDeleteStoryOrphansTasks(t *testing.T) {
	s, _ := newSQLStore(t)
	ctx := context.Background()

	story, err := s.CreateStory(ctx, domain.UserStory{
		Project: "LIMS", Role: "r", Goal: "g", Reason: "b", Description: "d",
		Priority: domain.PriorityMedium, CreatedAt: "2025-03-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("create story: %v", err)
	}
	task := seedTask(t, s, domain.Task{Title: "linked", StoryID: &story.ID})

	if err := s.DeleteStory(ctx, story.ID); err != nil {
		t.Fatalf("delete story: %v", err)
	}
	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("task must survive: %v", err)
	}
	if got.StoryID != nil {
		t.Fatalf("want cleared story link, got %v", *got.StoryID)
	}
	byStory, err := s.TasksByStory(ctx, story.ID)
	if err != nil {
		t.Fatalf("tasks by story: %v", err)
	}
	if len(byStory) != 0 {
		t.Fatalf("want no tasks under deleted story, got %d", len(byStory))
	}
}
