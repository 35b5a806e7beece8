package server

import (
	"labtrack/internal/assistant"
	"labtrack/internal/domain"
	"labtrack/internal/ledger"
	"labtrack/internal/store"
)

// Success payloads always carry success=true; failures go through apiError.

type TaskEnvelope struct {
	Success bool        `json:"success"`
	Task    domain.Task `json:"task"`
}

type TaskListEnvelope struct {
	Success bool                   `json:"success"`
	Tasks   []domain.TaskWithStory `json:"tasks"`
	Count   int                    `json:"count"`
}

type TaskStoryEnvelope struct {
	Success bool                 `json:"success"`
	Task    domain.TaskWithStory `json:"task"`
}

type StatsEnvelope struct {
	Success bool        `json:"success"`
	Stats   store.Stats `json:"stats"`
}

type StoryEnvelope struct {
	Success bool             `json:"success"`
	Story   domain.UserStory `json:"user_story"`
}

type StoryListEnvelope struct {
	Success bool               `json:"success"`
	Stories []domain.UserStory `json:"user_stories"`
	Count   int                `json:"count"`
}

type GeneratedTasksEnvelope struct {
	Success bool          `json:"success"`
	Tasks   []domain.Task `json:"tasks"`
	Count   int           `json:"count"`
}

type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CreateStoryRequest struct {
	Project     string  `json:"project"`
	Role        string  `json:"role"`
	Goal        string  `json:"goal"`
	Reason      string  `json:"reason"`
	Description string  `json:"description"`
	Priority    string  `json:"priority,omitempty"`
	StoryPoints int     `json:"story_points,omitempty"`
	EffortHours float64 `json:"effort_hours,omitempty"`
}

type GenerateStoryRequest struct {
	Prompt string `json:"prompt"`
}

// Usage is the token and cost accounting attached to every assist answer.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

type FormEnvelope struct {
	Success bool   `json:"success"`
	FormID  string `json:"form_id"`
}

type AssistRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Category     string `json:"category,omitempty"`
	RiskAnalysis string `json:"risk_analysis,omitempty"`
	FormID       string `json:"form_id,omitempty"`
}

type DescribeEnvelope struct {
	Success     bool           `json:"success"`
	Description string         `json:"description"`
	Usage       Usage          `json:"usage"`
	Form        *ledger.Totals `json:"form,omitempty"`
}

type CategorizeEnvelope struct {
	Success       bool           `json:"success"`
	Category      string         `json:"category"`
	CategoryLabel string         `json:"category_label"`
	Usage         Usage          `json:"usage"`
	Form          *ledger.Totals `json:"form,omitempty"`
}

type EffortEnvelope struct {
	Success bool           `json:"success"`
	Effort  int            `json:"effort"`
	Usage   Usage          `json:"usage"`
	Form    *ledger.Totals `json:"form,omitempty"`
}

type RisksEnvelope struct {
	Success      bool           `json:"success"`
	RiskAnalysis string         `json:"risk_analysis"`
	Usage        Usage          `json:"usage"`
	Form         *ledger.Totals `json:"form,omitempty"`
}

type MitigationEnvelope struct {
	Success        bool           `json:"success"`
	MitigationPlan string         `json:"mitigation_plan"`
	Usage          Usage          `json:"usage"`
	Form           *ledger.Totals `json:"form,omitempty"`
}

type DevLoginRequest struct {
	User string `json:"user"`
}

type DevLoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

func usageOf(r assistant.Result) Usage {
	return Usage{
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
		TotalTokens:  r.TotalTokens,
		Cost:         r.Cost,
	}
}
