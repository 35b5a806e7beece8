package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"labtrack/internal/db"
	"labtrack/internal/migrate"
)

// newDualGateway wires both backends the way the CLI does when a database
// path is configured.
func newDualGateway(t *testing.T) (*Gateway, func()) {
	t.Helper()
	dir := t.TempDir()
	log := discardLogger()
	conn, err := db.Open(filepath.Join(dir, "labtrack.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	files := NewFileStore(filepath.Join(dir, "tasks.json"), filepath.Join(dir, "stories.json"), log)
	return NewGateway(conn, files, log), func() { conn.Close() }
}

func TestGatewayPrefersDatabaseWhenReachable(t *testing.T) {
	gw, _ := newDualGateway(t)
	ctx := context.Background()

	if !gw.UsingDB(ctx) {
		t.Fatal("want database backend while the connection is healthy")
	}
	created, err := gw.CreateTask(ctx, map[string]any{"title": "en la base"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := gw.sql.GetTask(ctx, created.ID); err != nil {
		t.Fatalf("task not in database: %v", err)
	}
	if _, err := gw.file.GetTask(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("file backend should be untouched, got %v", err)
	}
}

func TestGatewayFallsBackToFilesWhenDatabaseUnreachable(t *testing.T) {
	gw, closeDB := newDualGateway(t)
	ctx := context.Background()

	closeDB()

	if gw.UsingDB(ctx) {
		t.Fatal("want file backend once the connection is gone")
	}
	created, err := gw.CreateTask(ctx, map[string]any{"title": "en archivo"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := gw.file.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("task not in file backend: %v", err)
	}
	if got.Title != "en archivo" {
		t.Fatalf("title = %q", got.Title)
	}
	tasks, err := gw.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("list count = %d, want 1", len(tasks))
	}
}
