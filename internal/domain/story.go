package domain

import (
	"errors"
	"fmt"
	"strings"
)

// UserStory is a backlog item tasks attach to. Unlike Task, the narrative
// fields and priority are hard requirements enforced at the storage boundary.
type UserStory struct {
	ID          int64    `json:"id"`
	Project     string   `json:"project"`
	Role        string   `json:"role"`
	Goal        string   `json:"goal"`
	Reason      string   `json:"reason"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	StoryPoints int      `json:"story_points"`
	EffortHours float64  `json:"effort_hours"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
}

var ErrInvalidStory = errors.New("invalid user story")

// Validate reports the first constraint violation, if any.
func (s UserStory) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"project", s.Project},
		{"role", s.Role},
		{"goal", s.Goal},
		{"reason", s.Reason},
		{"description", s.Description},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidStory, f.name)
		}
	}
	if !s.Priority.Valid() {
		return fmt.Errorf("%w: priority must be one of low, medium, high, blocking", ErrInvalidStory)
	}
	return nil
}
