package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"labtrack/internal/domain"
)

type taskPath struct {
	ID int64 `path:"id"`
}

func (s *server) registerTasks(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks with their story context",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body TaskListEnvelope `json:"body"`
	}, error) {
		tasks, err := s.gw.ListTasks(ctx)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body TaskListEnvelope `json:"body"`
		}{Body: TaskListEnvelope{Success: true, Tasks: tasks, Count: len(tasks)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body map[string]any `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		title, _ := input.Body["title"].(string)
		if strings.TrimSpace(title) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required")
		}
		t, err := s.gw.CreateTask(ctx, input.Body)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: TaskEnvelope{Success: true, Task: t}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		t, err := s.gw.GetTask(ctx, input.ID)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: TaskEnvelope{Success: true, Task: t}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task fields",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64          `path:"id"`
		Body map[string]any `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		t, err := s.gw.UpdateTask(ctx, input.ID, input.Body)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: TaskEnvelope{Success: true, Task: t}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body MessageEnvelope `json:"body"`
	}, error) {
		if err := s.gw.DeleteTask(ctx, input.ID); err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body MessageEnvelope `json:"body"`
		}{Body: MessageEnvelope{Success: true, Message: "task deleted"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task-story",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/story",
		Summary:     "Get task with its story fields flattened",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body TaskStoryEnvelope `json:"body"`
	}, error) {
		t, err := s.gw.GetTask(ctx, input.ID)
		if err != nil {
			return nil, s.handleError(err)
		}
		var story *domain.UserStory
		if t.StoryID != nil {
			if st, err := s.gw.GetStory(ctx, *t.StoryID); err == nil {
				story = &st
			}
		}
		return &struct {
			Body TaskStoryEnvelope `json:"body"`
		}{Body: TaskStoryEnvelope{Success: true, Task: t.Flatten(story)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "enrich-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/enrich",
		Summary:     "Run the full model enrichment chain on a task",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		t, err := s.gw.GetTask(ctx, input.ID)
		if err != nil {
			return nil, s.handleError(err)
		}
		enriched, _, err := s.assist.ProcessTask(ctx, t)
		if err != nil {
			return nil, s.handleError(err)
		}
		updated, err := s.gw.UpdateTask(ctx, input.ID, map[string]any{
			"description":     enriched.Description,
			"category":        string(enriched.Category),
			"effort":          enriched.Effort,
			"risk_analysis":   enriched.RiskAnalysis,
			"mitigation_plan": enriched.MitigationPlan,
			"tokens_gastados": enriched.TokensSpent,
			"costos":          enriched.Cost,
		})
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: TaskEnvelope{Success: true, Task: updated}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Aggregate task statistics",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StatsEnvelope `json:"body"`
	}, error) {
		stats, err := s.gw.Stats(ctx)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body StatsEnvelope `json:"body"`
		}{Body: StatsEnvelope{Success: true, Stats: stats}}, nil
	})
}
