package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"labtrack/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFileGateway(t *testing.T) (*Gateway, string) {
	t.Helper()
	dir := t.TempDir()
	log := discardLogger()
	files := NewFileStore(filepath.Join(dir, "tasks.json"), filepath.Join(dir, "stories.json"), log)
	return NewGateway(nil, files, log), dir
}

func TestFileCreateAssignsSequentialIDs(t *testing.T) {
	gw, _ := newFileGateway(t)
	ctx := context.Background()

	first, err := gw.CreateTask(ctx, map[string]any{"title": "a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := gw.CreateTask(ctx, map[string]any{"title": "b"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("want ids 1,2 got %d,%d", first.ID, second.ID)
	}

	// Deleting the newest task frees its id for reuse: ids are max+1.
	if err := gw.DeleteTask(ctx, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	third, err := gw.CreateTask(ctx, map[string]any{"title": "c"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if third.ID != 2 {
		t.Fatalf("want reused id 2, got %d", third.ID)
	}
}

func TestFileUpdateAndNotFound(t *testing.T) {
	gw, _ := newFileGateway(t)
	ctx := context.Background()

	created, err := gw.CreateTask(ctx, map[string]any{"title": "old", "status": "pending"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := gw.UpdateTask(ctx, created.ID, map[string]any{"status": "done", "effort": "8"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.StatusDone || updated.Effort != 8 {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, err := gw.GetTask(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := gw.UpdateTask(ctx, 999, map[string]any{"title": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := gw.DeleteTask(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestFileListJoinsStories(t *testing.T) {
	gw, _ := newFileGateway(t)
	ctx := context.Background()

	story, err := gw.CreateStory(ctx, domain.UserStory{
		Project:     "LIMS",
		Role:        "analista",
		Goal:        "registrar resultados",
		Reason:      "trazabilidad",
		Description: "registro de resultados de laboratorio",
		Priority:    domain.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("create story: %v", err)
	}
	if _, err := gw.CreateTask(ctx, map[string]any{"title": "linked", "user_story_id": story.ID}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := gw.CreateTask(ctx, map[string]any{"title": "loose"}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	tasks, err := gw.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("want 2 tasks, got %d", len(tasks))
	}
	byTitle := map[string]domain.TaskWithStory{}
	for _, task := range tasks {
		byTitle[task.Title] = task
	}
	if got := byTitle["linked"].StoryProject; got != "LIMS" {
		t.Fatalf("want joined project LIMS, got %q", got)
	}
	if got := byTitle["loose"].StoryProject; got != "" {
		t.Fatalf("want blank project for loose task, got %q", got)
	}
}

func TestFileCorruptFileReadsEmpty(t *testing.T) {
	gw, dir := newFileGateway(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(dir, "tasks.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	tasks, err := gw.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("want empty list, got %d", len(tasks))
	}
}

func TestFileDeleteStoryClearsTaskLinks(t *testing.T) {
	gw, _ := newFileGateway(t)
	ctx := context.Background()

	story, err := gw.CreateStory(ctx, domain.UserStory{
		Project: "LIMS", Role: "r", Goal: "g", Reason: "b", Description: "d",
		Priority: domain.PriorityMedium,
	})
	if err != nil {
		t.Fatalf("create story: %v", err)
	}
	task, err := gw.CreateTask(ctx, map[string]any{"title": "linked", "user_story_id": story.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := gw.DeleteStory(ctx, story.ID); err != nil {
		t.Fatalf("delete story: %v", err)
	}
	got, err := gw.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("task must survive story deletion: %v", err)
	}
	if got.StoryID != nil {
		t.Fatalf("want cleared story link, got %v", *got.StoryID)
	}
}

func TestStatsEmpty(t *testing.T) {
	gw, _ := newFileGateway(t)

	stats, err := gw.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalTasks != 0 {
		t.Fatalf("want 0 tasks, got %d", stats.TotalTasks)
	}
	if len(stats.StatusCounts) != 0 || len(stats.PriorityCounts) != 0 || len(stats.AssignedHours) != 0 {
		t.Fatalf("want empty maps, got %+v", stats)
	}
}

func TestStatsAggregation(t *testing.T) {
	gw, _ := newFileGateway(t)
	ctx := context.Background()

	seed := []map[string]any{
		{"title": "a", "status": "done", "priority": "high", "effort": 8, "assigned_to": "mgarcia", "tokens_gastados": 100, "costos": 0.5},
		{"title": "b", "status": "pending", "priority": "high", "effort": 4, "assigned_to": "mgarcia"},
		{"title": "c", "status": "in_progress", "effort": 6, "tokens_gastados": 50, "costos": 0.25},
	}
	for _, fields := range seed {
		if _, err := gw.CreateTask(ctx, fields); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	stats, err := gw.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalTasks != 3 || stats.TotalEffort != 18 {
		t.Fatalf("totals wrong: %+v", stats)
	}
	if stats.TotalHoursIncomplete != 10 {
		t.Fatalf("want 10 incomplete hours, got %d", stats.TotalHoursIncomplete)
	}
	if stats.StatusCounts["done"] != 1 || stats.StatusCounts["pending"] != 1 || stats.StatusCounts["in_progress"] != 1 {
		t.Fatalf("status counts wrong: %+v", stats.StatusCounts)
	}
	if stats.PriorityCounts["high"] != 2 || stats.PriorityCounts["medium"] != 1 {
		t.Fatalf("priority counts wrong: %+v", stats.PriorityCounts)
	}
	if stats.AssignedHours["mgarcia"] != 12 || stats.AssignedHours[Unassigned] != 6 {
		t.Fatalf("assigned hours wrong: %+v", stats.AssignedHours)
	}
	if stats.TotalTokens != 150 {
		t.Fatalf("want 150 tokens, got %d", stats.TotalTokens)
	}
	if stats.TotalCost != 0.75 {
		t.Fatalf("want cost 0.75, got %f", stats.TotalCost)
	}
}

func TestFileListSortsByCreationDescending(t *testing.T) {
	dir := t.TempDir()
	log := discardLogger()
	files := NewFileStore(filepath.Join(dir, "tasks.json"), filepath.Join(dir, "stories.json"), log)
	gw := NewGateway(nil, files, log)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ticks := 0
	gw.now = func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Hour)
	}
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		if _, err := gw.CreateTask(ctx, map[string]any{"title": title}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	tasks, err := gw.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if tasks[0].Title != "third" || tasks[2].Title != "first" {
		t.Fatalf("want newest first, got %q..%q", tasks[0].Title, tasks[2].Title)
	}
}
