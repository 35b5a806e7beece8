// Package assistant orchestrates the model-backed task tooling: field
// generation for the wizard, full task enrichment, and story/task-list
// generation. It owns the prompts, the cost accounting, and the fallbacks
// that keep the features usable when the model misbehaves.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"labtrack/internal/config"
	"labtrack/internal/domain"
	"labtrack/internal/llm"
	"labtrack/internal/store"
)

type Service struct {
	client     llm.Client
	gw         *store.Gateway
	inputRate  float64
	outputRate float64
	log        *slog.Logger
}

func NewService(client llm.Client, gw *store.Gateway, cfg config.ModelConfig, log *slog.Logger) *Service {
	return &Service{
		client:     client,
		gw:         gw,
		inputRate:  cfg.InputRatePer1K,
		outputRate: cfg.OutputRatePer1K,
		log:        log,
	}
}

// Result is one model answer with its token and cost accounting.
type Result struct {
	Text         string  `json:"text"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

func (r *Result) add(other Result) {
	r.InputTokens += other.InputTokens
	r.OutputTokens += other.OutputTokens
	r.TotalTokens += other.TotalTokens
	r.Cost += other.Cost
}

// Cost prices a call at the configured per-1K-token rates.
func (s *Service) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)/1000)*s.inputRate + (float64(outputTokens)/1000)*s.outputRate
}

func (s *Service) call(ctx context.Context, system, user string) (Result, error) {
	c, err := s.client.Complete(ctx, system, user)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:         strings.TrimSpace(c.Text),
		InputTokens:  c.InputTokens,
		OutputTokens: c.OutputTokens,
		TotalTokens:  c.InputTokens + c.OutputTokens,
		Cost:         s.Cost(c.InputTokens, c.OutputTokens),
	}, nil
}

// Describe generates a professional task description from its title.
func (s *Service) Describe(ctx context.Context, title string) (Result, error) {
	return s.call(ctx, describeSystem, describePrompt(title))
}

// Categorize asks the model for a display label and maps it back to the
// internal category. Unknown answers resolve to other.
func (s *Service) Categorize(ctx context.Context, title, description string) (domain.Category, Result, error) {
	res, err := s.call(ctx, categorizeSystem(), categorizePrompt(title, description))
	if err != nil {
		return domain.DefaultCategory, Result{}, err
	}
	return domain.CategoryFromLabel(res.Text), res, nil
}

// EstimateEffort asks the model for an hour count. A non-numeric answer
// yields 0, never an error.
func (s *Service) EstimateEffort(ctx context.Context, title, description, category string) (int, Result, error) {
	res, err := s.call(ctx, effortSystem, effortPrompt(title, description, category))
	if err != nil {
		return 0, Result{}, err
	}
	return domain.CoerceEffort(res.Text), res, nil
}

func (s *Service) AnalyzeRisks(ctx context.Context, title, description, category string) (Result, error) {
	return s.call(ctx, risksSystem, risksPrompt(title, description, category))
}

func (s *Service) ProposeMitigation(ctx context.Context, title, description, category, risks string) (Result, error) {
	return s.call(ctx, mitigationSystem, mitigationPrompt(title, description, category, risks))
}

// ProcessTask runs the full enrichment chain on a task: description, then
// category, effort, risks, and mitigation plan, each call building on the
// previous answers. The first failure aborts the chain and the task is
// returned unchanged. Token and cost totals accumulate onto the task.
func (s *Service) ProcessTask(ctx context.Context, t domain.Task) (domain.Task, Result, error) {
	var total Result

	desc, err := s.Describe(ctx, t.Title)
	if err != nil {
		return t, total, fmt.Errorf("describe: %w", err)
	}
	total.add(desc)

	category, catRes, err := s.Categorize(ctx, t.Title, desc.Text)
	if err != nil {
		return t, total, fmt.Errorf("categorize: %w", err)
	}
	total.add(catRes)

	effort, effRes, err := s.EstimateEffort(ctx, t.Title, desc.Text, category.Label())
	if err != nil {
		return t, total, fmt.Errorf("estimate effort: %w", err)
	}
	total.add(effRes)

	risks, err := s.AnalyzeRisks(ctx, t.Title, desc.Text, category.Label())
	if err != nil {
		return t, total, fmt.Errorf("analyze risks: %w", err)
	}
	total.add(risks)

	mitigation, err := s.ProposeMitigation(ctx, t.Title, desc.Text, category.Label(), risks.Text)
	if err != nil {
		return t, total, fmt.Errorf("propose mitigation: %w", err)
	}
	total.add(mitigation)

	t.Description = desc.Text
	t.Category = category
	t.Effort = effort
	t.RiskAnalysis = risks.Text
	t.MitigationPlan = mitigation.Text
	t.TokensSpent += total.TotalTokens
	t.Cost += total.Cost
	return t, total, nil
}

// GenerateStory turns a free-text prompt into a persisted user story. The
// model answers JSON; a malformed answer that still contains a balanced
// object block is salvaged, anything worse is an invalid-output error.
func (s *Service) GenerateStory(ctx context.Context, prompt string) (domain.UserStory, error) {
	res, err := s.call(ctx, storySystem, prompt)
	if err != nil {
		return domain.UserStory{}, err
	}
	rec, err := llm.ExtractObject[map[string]any](res.Text)
	if err != nil {
		return domain.UserStory{}, err
	}
	story := domain.UserStory{
		Project:     stringField(rec, "project"),
		Role:        stringField(rec, "role"),
		Goal:        stringField(rec, "goal"),
		Reason:      stringField(rec, "reason"),
		Description: stringField(rec, "description"),
		Priority:    domain.PriorityFromLabel(stringField(rec, "priority")),
		StoryPoints: domain.CoerceInt(rec["story_points"]),
		EffortHours: domain.CoerceFloat(rec["effort_hours"]),
	}
	return s.gw.CreateStory(ctx, story)
}

type taskItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// placeholderTasks is the last-resort fallback when the model's task list
// cannot be parsed at all.
func placeholderTasks() []taskItem {
	items := make([]taskItem, 5)
	for i := range items {
		items[i] = taskItem{
			Title:       fmt.Sprintf("Tarea %d", i+1),
			Description: fmt.Sprintf("Descripción de la tarea %d", i+1),
		}
	}
	return items
}

// GenerateTaskList asks the model for five tasks covering the story and
// persists them linked to it. Each generated task is categorized best
// effort; a categorization failure falls back to other rather than losing
// the task.
func (s *Service) GenerateTaskList(ctx context.Context, storyID int64) ([]domain.Task, error) {
	story, err := s.gw.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(
		"Genera una lista de tareas en formato JSON para la siguiente historia de usuario: Proyecto: %s, Rol: %s, Objetivo: %s, Razón: %s, Descripción: %s.",
		story.Project, story.Role, story.Goal, story.Reason, story.Description)

	res, err := s.call(ctx, taskListSystem, prompt)
	if err != nil {
		return nil, err
	}
	items, err := llm.ExtractArray[[]taskItem](res.Text)
	if err != nil {
		s.log.Warn("unparseable task list, using placeholders", "error", err)
		items = placeholderTasks()
	}

	perTask := Result{}
	if len(items) > 0 {
		perTask = Result{
			TotalTokens: res.TotalTokens / len(items),
			Cost:        res.Cost / float64(len(items)),
		}
	}

	tasks := make([]domain.Task, 0, len(items))
	for i, item := range items {
		title := item.Title
		if title == "" {
			title = fmt.Sprintf("Tarea %d", i+1)
		}
		category := domain.DefaultCategory
		catTokens, catCost := 0, 0.0
		if c, catRes, err := s.Categorize(ctx, title, item.Description); err == nil {
			category = c
			catTokens = catRes.TotalTokens
			catCost = catRes.Cost
		} else {
			s.log.Warn("categorization failed for generated task", "title", title, "error", err)
		}
		created, err := s.gw.CreateTask(ctx, map[string]any{
			"title":           title,
			"description":     item.Description,
			"category":        string(category),
			"user_story_id":   storyID,
			"tokens_gastados": perTask.TotalTokens + catTokens,
			"costos":          perTask.Cost + catCost,
		})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, created)
	}
	return tasks, nil
}

func stringField(rec map[string]any, key string) string {
	s, _ := rec[key].(string)
	return strings.TrimSpace(s)
}
