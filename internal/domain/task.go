package domain

import (
	"strconv"
	"strings"
	"time"
)

// Task is one unit of work. Construction and update are permissive: unknown
// priority, status, or category values fall back to defaults instead of
// failing, and effort coerces to a non-negative integer.
type Task struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       Priority `json:"priority"`
	Effort         int      `json:"effort"`
	Status         Status   `json:"status"`
	AssignedTo     string   `json:"assigned_to"`
	AssignedRole   string   `json:"assigned_role"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
	UpdatedAt      string   `json:"updated_at" format:"date-time"`
	Category       Category `json:"category"`
	RiskAnalysis   string   `json:"risk_analysis"`
	MitigationPlan string   `json:"mitigation_plan"`
	TokensSpent    int      `json:"tokens_gastados"`
	Cost           float64  `json:"costos"`
	StoryID        *int64   `json:"user_story_id,omitempty"`
}

// TaskWithStory is a task flattened with the narrative fields of its parent
// user story. Tasks without a story carry blank story fields.
type TaskWithStory struct {
	Task
	StoryProject     string `json:"user_story_project"`
	StoryRole        string `json:"user_story_role"`
	StoryGoal        string `json:"user_story_goal"`
	StoryReason      string `json:"user_story_reason"`
	StoryPriority    string `json:"user_story_priority"`
	StoryDescription string `json:"user_story_description"`
}

// Flatten attaches a story's narrative fields to the task. A nil story
// leaves them blank.
func (t Task) Flatten(s *UserStory) TaskWithStory {
	tw := TaskWithStory{Task: t}
	if s != nil {
		tw.StoryProject = s.Project
		tw.StoryRole = s.Role
		tw.StoryGoal = s.Goal
		tw.StoryReason = s.Reason
		tw.StoryPriority = string(s.Priority)
		tw.StoryDescription = s.Description
	}
	return tw
}

// NewTask builds a validated task from loosely-typed fields. Out-of-vocabulary
// priority/status/category silently take their defaults; missing timestamps
// are stamped with now.
func NewTask(fields map[string]any, now time.Time) Task {
	t := Task{
		ID:             CoerceInt64(fields["id"]),
		Title:          coerceString(fields["title"]),
		Description:    coerceString(fields["description"]),
		Priority:       DefaultPriority,
		Effort:         CoerceEffort(fields["effort"]),
		Status:         DefaultStatus,
		AssignedTo:     coerceString(fields["assigned_to"]),
		AssignedRole:   coerceString(fields["assigned_role"]),
		Category:       DefaultCategory,
		RiskAnalysis:   coerceString(fields["risk_analysis"]),
		MitigationPlan: coerceString(fields["mitigation_plan"]),
		TokensSpent:    CoerceInt(fields["tokens_gastados"]),
		Cost:           CoerceFloat(fields["costos"]),
	}
	if p := Priority(coerceString(fields["priority"])); p.Valid() {
		t.Priority = p
	}
	if s := Status(coerceString(fields["status"])); s.Valid() {
		t.Status = s
	}
	if c := Category(coerceString(fields["category"])); c.Valid() {
		t.Category = c
	}
	stamp := now.UTC().Format(time.RFC3339)
	t.CreatedAt = coerceString(fields["created_at"])
	if t.CreatedAt == "" {
		t.CreatedAt = stamp
	}
	t.UpdatedAt = coerceString(fields["updated_at"])
	if t.UpdatedAt == "" {
		t.UpdatedAt = stamp
	}
	if id, ok := coerceOptionalInt64(fields["user_story_id"]); ok {
		t.StoryID = &id
	}
	return t
}

// Record flattens the task into the storage/API key-value shape. Every field
// is present; user_story_id only when set.
func (t Task) Record() map[string]any {
	rec := map[string]any{
		"id":              t.ID,
		"title":           t.Title,
		"description":     t.Description,
		"priority":        string(t.Priority),
		"effort":          t.Effort,
		"status":          string(t.Status),
		"assigned_to":     t.AssignedTo,
		"assigned_role":   t.AssignedRole,
		"created_at":      t.CreatedAt,
		"updated_at":      t.UpdatedAt,
		"category":        string(t.Category),
		"risk_analysis":   t.RiskAnalysis,
		"mitigation_plan": t.MitigationPlan,
		"tokens_gastados": t.TokensSpent,
		"costos":          t.Cost,
	}
	if t.StoryID != nil {
		rec["user_story_id"] = *t.StoryID
	}
	return rec
}

// TaskFromRecord is the inverse of Record. It accepts the legacy
// risk_mitigation key as an alias for mitigation_plan.
func TaskFromRecord(rec map[string]any, now time.Time) Task {
	fields := make(map[string]any, len(rec))
	for k, v := range rec {
		fields[k] = v
	}
	if coerceString(fields["mitigation_plan"]) == "" {
		if legacy, ok := fields["risk_mitigation"]; ok {
			fields["mitigation_plan"] = legacy
		}
	}
	return NewTask(fields, now)
}

// updatableTaskFields is the whitelist Apply honors. Identifier and
// timestamps are never written from input.
var updatableTaskFields = map[string]bool{
	"title": true, "description": true, "priority": true, "effort": true,
	"status": true, "assigned_to": true, "assigned_role": true,
	"category": true, "risk_analysis": true, "mitigation_plan": true,
	"tokens_gastados": true, "costos": true, "user_story_id": true,
}

// Apply copies whitelisted fields onto the task, skipping out-of-vocabulary
// priority/status/category values. The update timestamp is bumped even when
// nothing changed.
func (t *Task) Apply(fields map[string]any, now time.Time) {
	for name, value := range fields {
		if !updatableTaskFields[name] {
			continue
		}
		switch name {
		case "title":
			t.Title = coerceString(value)
		case "description":
			t.Description = coerceString(value)
		case "priority":
			if p := Priority(coerceString(value)); p.Valid() {
				t.Priority = p
			}
		case "effort":
			t.Effort = CoerceEffort(value)
		case "status":
			if s := Status(coerceString(value)); s.Valid() {
				t.Status = s
			}
		case "assigned_to":
			t.AssignedTo = coerceString(value)
		case "assigned_role":
			t.AssignedRole = coerceString(value)
		case "category":
			if c := Category(coerceString(value)); c.Valid() {
				t.Category = c
			}
		case "risk_analysis":
			t.RiskAnalysis = coerceString(value)
		case "mitigation_plan":
			t.MitigationPlan = coerceString(value)
		case "tokens_gastados":
			t.TokensSpent = CoerceInt(value)
		case "costos":
			t.Cost = CoerceFloat(value)
		case "user_story_id":
			if id, ok := coerceOptionalInt64(value); ok {
				t.StoryID = &id
			} else {
				t.StoryID = nil
			}
		}
	}
	t.UpdatedAt = now.UTC().Format(time.RFC3339)
}

// CoerceEffort converts any input to a non-negative hour count. Empty, nil,
// and non-numeric values become 0; this never fails.
func CoerceEffort(v any) int {
	n := CoerceInt(v)
	if n < 0 {
		return 0
	}
	return n
}

// CoerceInt converts numeric-like input to int, 0 on failure.
func CoerceInt(v any) int {
	return int(CoerceInt64(v))
}

// CoerceInt64 converts numeric-like input to int64, 0 on failure. Floats
// truncate; strings parse after trimming.
func CoerceInt64(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}

// CoerceFloat converts numeric-like input to float64, 0.0 on failure.
func CoerceFloat(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0.0
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0.0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return 0.0
	default:
		return 0.0
	}
}

func coerceString(v any) string {
	s, _ := v.(string)
	return s
}

func coerceOptionalInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		return 0, false
	default:
		return 0, false
	}
}
