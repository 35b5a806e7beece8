package domain

import "strings"

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityBlocking Priority = "blocking"
)

// DefaultPriority is assigned when input carries no priority or an unknown one.
const DefaultPriority = PriorityMedium

var priorityLabels = map[Priority]string{
	PriorityLow:      "Baja",
	PriorityMedium:   "Media",
	PriorityHigh:     "Alta",
	PriorityBlocking: "Bloqueante",
}

// Priorities lists the valid priority values in display order.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityBlocking}
}

func (p Priority) Valid() bool {
	_, ok := priorityLabels[p]
	return ok
}

func (p Priority) Label() string {
	return priorityLabels[p]
}

// PriorityFromLabel resolves a display label ("Alta") back to its priority.
// The lookup is case-insensitive; an internal value passes through; anything
// else falls back to the default.
func PriorityFromLabel(label string) Priority {
	needle := strings.TrimSpace(label)
	if p := Priority(strings.ToLower(needle)); p.Valid() {
		return p
	}
	for p, l := range priorityLabels {
		if strings.EqualFold(l, needle) {
			return p
		}
	}
	return DefaultPriority
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusDone       Status = "done"
)

const DefaultStatus = StatusPending

var statusLabels = map[Status]string{
	StatusPending:    "Pendiente",
	StatusInProgress: "En Progreso",
	StatusInReview:   "En Revisión",
	StatusDone:       "Completada",
}

func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusInReview, StatusDone}
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) Label() string {
	return statusLabels[s]
}

// Category classifies a task within the quality-control lab.
type Category string

const (
	CategoryTesting          Category = "testing"
	CategoryFrontend         Category = "frontend"
	CategoryBackend          Category = "backend"
	CategoryDevelopment      Category = "development"
	CategoryDesign           Category = "design"
	CategoryDocumentation    Category = "documentation"
	CategoryDatabase         Category = "database"
	CategorySecurity         Category = "security"
	CategoryInfrastructure   Category = "infrastructure"
	CategoryMaintenance      Category = "maintenance"
	CategoryResearch         Category = "research"
	CategorySupervision      Category = "supervision"
	CategoryOccupationalRisk Category = "occupational_risk"
	CategoryCleaning         Category = "cleaning"
	CategoryOther            Category = "other"
)

const DefaultCategory = CategoryOther

// categoryLabels maps internal values to the display names shown to users
// and quoted verbatim in model prompts.
var categoryLabels = map[Category]string{
	CategoryTesting:          "Testing y Control de Calidad",
	CategoryFrontend:         "Desarrollo Frontend",
	CategoryBackend:          "Desarrollo Backend",
	CategoryDevelopment:      "Desarrollo General",
	CategoryDesign:           "Diseño de Sistemas",
	CategoryDocumentation:    "Documentación",
	CategoryDatabase:         "Base de Datos",
	CategorySecurity:         "Seguridad",
	CategoryInfrastructure:   "Infraestructura",
	CategoryMaintenance:      "Mantenimiento",
	CategoryResearch:         "Investigación",
	CategorySupervision:      "Supervisión",
	CategoryOccupationalRisk: "Riesgos Laborales",
	CategoryCleaning:         "Limpieza",
	CategoryOther:            "Otro",
}

func Categories() []Category {
	return []Category{
		CategoryTesting, CategoryFrontend, CategoryBackend, CategoryDevelopment,
		CategoryDesign, CategoryDocumentation, CategoryDatabase, CategorySecurity,
		CategoryInfrastructure, CategoryMaintenance, CategoryResearch,
		CategorySupervision, CategoryOccupationalRisk, CategoryCleaning,
		CategoryOther,
	}
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

func (c Category) Label() string {
	return categoryLabels[c]
}

// CategoryLabels returns every display name in the order of Categories.
func CategoryLabels() []string {
	cats := Categories()
	labels := make([]string, len(cats))
	for i, c := range cats {
		labels[i] = c.Label()
	}
	return labels
}

// CategoryFromLabel resolves a display name back to its internal value.
// Matching is case-insensitive and ignores surrounding whitespace; unknown
// labels resolve to CategoryOther.
func CategoryFromLabel(label string) Category {
	needle := strings.ToLower(strings.TrimSpace(label))
	for c, l := range categoryLabels {
		if strings.ToLower(l) == needle {
			return c
		}
	}
	return CategoryOther
}
