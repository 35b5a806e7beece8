package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"labtrack/internal/domain"
)

type storyPath struct {
	ID int64 `path:"id"`
}

func (s *server) registerStories(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-stories",
		Method:      http.MethodGet,
		Path:        "/stories",
		Summary:     "List user stories",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StoryListEnvelope `json:"body"`
	}, error) {
		stories, err := s.gw.ListStories(ctx)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body StoryListEnvelope `json:"body"`
		}{Body: StoryListEnvelope{Success: true, Stories: stories, Count: len(stories)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-story",
		Method:        http.MethodPost,
		Path:          "/stories",
		Summary:       "Create user story",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateStoryRequest `json:"body"`
	}) (*struct {
		Body StoryEnvelope `json:"body"`
	}, error) {
		story := domain.UserStory{
			Project:     input.Body.Project,
			Role:        input.Body.Role,
			Goal:        input.Body.Goal,
			Reason:      input.Body.Reason,
			Description: input.Body.Description,
			Priority:    domain.PriorityFromLabel(input.Body.Priority),
			StoryPoints: input.Body.StoryPoints,
			EffortHours: input.Body.EffortHours,
		}
		created, err := s.gw.CreateStory(ctx, story)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body StoryEnvelope `json:"body"`
		}{Body: StoryEnvelope{Success: true, Story: created}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-story",
		Method:      http.MethodGet,
		Path:        "/stories/{id}",
		Summary:     "Get user story",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *storyPath) (*struct {
		Body StoryEnvelope `json:"body"`
	}, error) {
		story, err := s.gw.GetStory(ctx, input.ID)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body StoryEnvelope `json:"body"`
		}{Body: StoryEnvelope{Success: true, Story: story}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-story",
		Method:      http.MethodDelete,
		Path:        "/stories/{id}",
		Summary:     "Delete user story, keeping its tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *storyPath) (*struct {
		Body MessageEnvelope `json:"body"`
	}, error) {
		if err := s.gw.DeleteStory(ctx, input.ID); err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body MessageEnvelope `json:"body"`
		}{Body: MessageEnvelope{Success: true, Message: "user story deleted"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "story-tasks",
		Method:      http.MethodGet,
		Path:        "/stories/{id}/tasks",
		Summary:     "List the tasks attached to a story",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *storyPath) (*struct {
		Body GeneratedTasksEnvelope `json:"body"`
	}, error) {
		if _, err := s.gw.GetStory(ctx, input.ID); err != nil {
			return nil, s.handleError(err)
		}
		tasks, err := s.gw.TasksByStory(ctx, input.ID)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body GeneratedTasksEnvelope `json:"body"`
		}{Body: GeneratedTasksEnvelope{Success: true, Tasks: tasks, Count: len(tasks)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "generate-story-tasks",
		Method:        http.MethodPost,
		Path:          "/stories/{id}/tasks/generate",
		Summary:       "Generate and persist a task list for a story",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *storyPath) (*struct {
		Body GeneratedTasksEnvelope `json:"body"`
	}, error) {
		tasks, err := s.assist.GenerateTaskList(ctx, input.ID)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body GeneratedTasksEnvelope `json:"body"`
		}{Body: GeneratedTasksEnvelope{Success: true, Tasks: tasks, Count: len(tasks)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "generate-story",
		Method:        http.MethodPost,
		Path:          "/stories/generate",
		Summary:       "Generate and persist a story from a free-text prompt",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body GenerateStoryRequest `json:"body"`
	}) (*struct {
		Body StoryEnvelope `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Prompt) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "prompt is required")
		}
		story, err := s.assist.GenerateStory(ctx, input.Body.Prompt)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body StoryEnvelope `json:"body"`
		}{Body: StoryEnvelope{Success: true, Story: story}}, nil
	})
}
