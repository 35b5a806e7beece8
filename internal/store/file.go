package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"labtrack/internal/domain"
)

// FileStore keeps tasks and stories in two JSON array files. Reads fail
// soft: a missing or corrupt file is logged and treated as empty, matching
// how the team worked before the database existed. Writes go through a temp
// file and rename so a crash never leaves a half-written file behind.
type FileStore struct {
	tasksPath   string
	storiesPath string
	log         *slog.Logger
	now         func() time.Time

	mu sync.Mutex
}

func NewFileStore(tasksPath, storiesPath string, log *slog.Logger) *FileStore {
	return &FileStore{
		tasksPath:   tasksPath,
		storiesPath: storiesPath,
		log:         log,
		now:         time.Now,
	}
}

func (f *FileStore) readRecords(path string) []map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.log.Warn("cannot read storage file", "path", path, "error", err)
		}
		return nil
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		f.log.Warn("corrupt storage file, treating as empty", "path", path, "error", err)
		return nil
	}
	return records
}

func (f *FileStore) writeRecords(path string, records []map[string]any) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func (f *FileStore) loadTasks() []domain.Task {
	records := f.readRecords(f.tasksPath)
	now := f.now()
	tasks := make([]domain.Task, 0, len(records))
	for _, rec := range records {
		tasks = append(tasks, domain.TaskFromRecord(rec, now))
	}
	return tasks
}

func (f *FileStore) saveTasks(tasks []domain.Task) error {
	records := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, t.Record())
	}
	return f.writeRecords(f.tasksPath, records)
}

func (f *FileStore) loadStories() []domain.UserStory {
	data, err := os.ReadFile(f.storiesPath)
	if err != nil {
		if !os.IsNotExist(err) {
			f.log.Warn("cannot read storage file", "path", f.storiesPath, "error", err)
		}
		return nil
	}
	var stories []domain.UserStory
	if err := json.Unmarshal(data, &stories); err != nil {
		f.log.Warn("corrupt storage file, treating as empty", "path", f.storiesPath, "error", err)
		return nil
	}
	return stories
}

func (f *FileStore) saveStories(stories []domain.UserStory) error {
	data, err := json.MarshalIndent(stories, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.storiesPath, err)
	}
	records := []map[string]any{}
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	return f.writeRecords(f.storiesPath, records)
}

func nextID[T any](items []T, id func(T) int64) int64 {
	var max int64
	for _, it := range items {
		if v := id(it); v > max {
			max = v
		}
	}
	return max + 1
}

func (f *FileStore) ListTasks(ctx context.Context) ([]domain.TaskWithStory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tasks := f.loadTasks()
	byID := map[int64]*domain.UserStory{}
	for _, s := range f.loadStories() {
		s := s
		byID[s.ID] = &s
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt != tasks[j].CreatedAt {
			return tasks[i].CreatedAt > tasks[j].CreatedAt
		}
		return tasks[i].ID > tasks[j].ID
	})
	out := make([]domain.TaskWithStory, 0, len(tasks))
	for _, t := range tasks {
		var story *domain.UserStory
		if t.StoryID != nil {
			story = byID[*t.StoryID]
		}
		out = append(out, t.Flatten(story))
	}
	return out, nil
}

func (f *FileStore) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.loadTasks() {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Task{}, ErrNotFound
}

func (f *FileStore) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tasks := f.loadTasks()
	t.ID = nextID(tasks, func(t domain.Task) int64 { return t.ID })
	tasks = append(tasks, t)
	if err := f.saveTasks(tasks); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (f *FileStore) UpdateTask(ctx context.Context, t domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tasks := f.loadTasks()
	for i := range tasks {
		if tasks[i].ID == t.ID {
			tasks[i] = t
			return f.saveTasks(tasks)
		}
	}
	return ErrNotFound
}

func (f *FileStore) DeleteTask(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tasks := f.loadTasks()
	for i := range tasks {
		if tasks[i].ID == id {
			tasks = append(tasks[:i], tasks[i+1:]...)
			return f.saveTasks(tasks)
		}
	}
	return ErrNotFound
}

func (f *FileStore) TasksByStory(ctx context.Context, storyID int64) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Task{}
	for _, t := range f.loadTasks() {
		if t.StoryID != nil && *t.StoryID == storyID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *FileStore) ListStories(ctx context.Context) ([]domain.UserStory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stories := f.loadStories()
	sort.SliceStable(stories, func(i, j int) bool {
		if stories[i].CreatedAt != stories[j].CreatedAt {
			return stories[i].CreatedAt > stories[j].CreatedAt
		}
		return stories[i].ID > stories[j].ID
	})
	if stories == nil {
		stories = []domain.UserStory{}
	}
	return stories, nil
}

func (f *FileStore) GetStory(ctx context.Context, id int64) (domain.UserStory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.loadStories() {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.UserStory{}, ErrNotFound
}

func (f *FileStore) CreateStory(ctx context.Context, s domain.UserStory) (domain.UserStory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stories := f.loadStories()
	s.ID = nextID(stories, func(s domain.UserStory) int64 { return s.ID })
	stories = append(stories, s)
	if err := f.saveStories(stories); err != nil {
		return domain.UserStory{}, err
	}
	return s, nil
}

func (f *FileStore) DeleteStory(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stories := f.loadStories()
	found := false
	for i := range stories {
		if stories[i].ID == id {
			stories = append(stories[:i], stories[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	if err := f.saveStories(stories); err != nil {
		return err
	}
	// Orphaned tasks keep living, just without the story link.
	tasks := f.loadTasks()
	changed := false
	for i := range tasks {
		if tasks[i].StoryID != nil && *tasks[i].StoryID == id {
			tasks[i].StoryID = nil
			changed = true
		}
	}
	if changed {
		return f.saveTasks(tasks)
	}
	return nil
}
