package assistant

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labtrack/internal/config"
	"labtrack/internal/domain"
	"labtrack/internal/llm"
	"labtrack/internal/store"
)

// scriptedClient returns canned completions in order, or errors when the
// script says so.
type scriptedClient struct {
	answers []answer
	calls   int
	prompts []string
}

type answer struct {
	text string
	in   int
	out  int
	err  error
}

func (c *scriptedClient) Complete(ctx context.Context, system, user string) (llm.Completion, error) {
	if c.calls >= len(c.answers) {
		panic("scripted client exhausted")
	}
	a := c.answers[c.calls]
	c.calls++
	c.prompts = append(c.prompts, user)
	if a.err != nil {
		return llm.Completion{}, a.err
	}
	return llm.Completion{Text: a.text, InputTokens: a.in, OutputTokens: a.out}, nil
}

func newTestService(t *testing.T, client llm.Client) (*Service, *store.Gateway) {
	t.Helper()
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	files := store.NewFileStore(filepath.Join(dir, "tasks.json"), filepath.Join(dir, "stories.json"), log)
	gw := store.NewGateway(nil, files, log)
	cfg := config.Default().Model
	return NewService(client, gw, cfg, log), gw
}

func TestCostArithmetic(t *testing.T) {
	svc, _ := newTestService(t, &scriptedClient{})
	// (1000/1000)*0.01 + (500/1000)*0.03
	assert.InDelta(t, 0.025, svc.Cost(1000, 500), 1e-9)
	assert.Equal(t, 0.0, svc.Cost(0, 0))
}

func TestCategorizeMapsDisplayLabel(t *testing.T) {
	client := &scriptedClient{answers: []answer{
		{text: "Desarrollo Backend", in: 40, out: 3},
	}}
	svc, _ := newTestService(t, client)

	category, res, err := svc.Categorize(context.Background(), "migrar API", "mover endpoints")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryBackend, category)
	assert.Equal(t, 43, res.TotalTokens)
}

func TestCategorizeUnknownLabelFallsBack(t *testing.T) {
	client := &scriptedClient{answers: []answer{
		{text: "Jardinería", in: 10, out: 2},
	}}
	svc, _ := newTestService(t, client)

	category, _, err := svc.Categorize(context.Background(), "x", "")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryOther, category)
}

func TestEstimateEffortParsing(t *testing.T) {
	cases := []struct {
		reply string
		want  int
	}{
		{"8", 8},
		{" 16 ", 16},
		{"unas cuantas horas", 0},
	}
	for _, tc := range cases {
		client := &scriptedClient{answers: []answer{{text: tc.reply, in: 5, out: 1}}}
		svc, _ := newTestService(t, client)
		hours, _, err := svc.EstimateEffort(context.Background(), "t", "", "")
		require.NoError(t, err)
		assert.Equal(t, tc.want, hours, "reply %q", tc.reply)
	}
}

func TestProcessTaskChain(t *testing.T) {
	client := &scriptedClient{answers: []answer{
		{text: "descripción generada", in: 100, out: 50},
		{text: "Testing y Control de Calidad", in: 60, out: 5},
		{text: "8", in: 40, out: 1},
		{text: "riesgo de contaminación cruzada", in: 80, out: 30},
		{text: "plan de mitigación detallado", in: 120, out: 60},
	}}
	svc, _ := newTestService(t, client)

	task := domain.Task{Title: "Validar método analítico", TokensSpent: 10, Cost: 0.001}
	enriched, usage, err := svc.ProcessTask(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, "descripción generada", enriched.Description)
	assert.Equal(t, domain.CategoryTesting, enriched.Category)
	assert.Equal(t, 8, enriched.Effort)
	assert.Equal(t, "riesgo de contaminación cruzada", enriched.RiskAnalysis)
	assert.Equal(t, "plan de mitigación detallado", enriched.MitigationPlan)

	wantTokens := 100 + 50 + 60 + 5 + 40 + 1 + 80 + 30 + 120 + 60
	assert.Equal(t, wantTokens, usage.TotalTokens)
	assert.Equal(t, 10+wantTokens, enriched.TokensSpent)
	assert.InDelta(t, 0.001+usage.Cost, enriched.Cost, 1e-9)

	// Later prompts build on the generated description.
	assert.Contains(t, client.prompts[1], "descripción generada")
	assert.Contains(t, client.prompts[4], "riesgo de contaminación cruzada")
}

func TestProcessTaskAbortsOnFirstFailure(t *testing.T) {
	client := &scriptedClient{answers: []answer{
		{text: "descripción", in: 10, out: 5},
		{err: llm.ErrRateLimited},
	}}
	svc, _ := newTestService(t, client)

	task := domain.Task{Title: "x"}
	got, _, err := svc.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrRateLimited)
	assert.Equal(t, 2, client.calls, "chain must stop at the failing call")
	assert.Empty(t, got.Description, "task returned unchanged")
}

func TestGenerateStoryPersists(t *testing.T) {
	client := &scriptedClient{answers: []answer{
		{text: "```json\n{\"project\": \"LIMS\", \"role\": \"analista\", \"goal\": \"registrar\", \"reason\": \"trazabilidad\", \"description\": \"como analista...\", \"priority\": \"alta\", \"story_points\": 5, \"effort_hours\": 12.5}\n```", in: 50, out: 80},
	}}
	svc, gw := newTestService(t, client)

	story, err := svc.GenerateStory(context.Background(), "necesitamos registrar resultados")
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityHigh, story.Priority)
	assert.Equal(t, 5, story.StoryPoints)
	assert.InDelta(t, 12.5, story.EffortHours, 1e-9)

	stored, err := gw.GetStory(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Equal(t, "LIMS", stored.Project)
}

func TestGenerateStoryRejectsGarbage(t *testing.T) {
	client := &scriptedClient{answers: []answer{
		{text: "no pienso devolver JSON", in: 5, out: 5},
	}}
	svc, _ := newTestService(t, client)

	_, err := svc.GenerateStory(context.Background(), "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrInvalidOutput)
}

func seedStory(t *testing.T, gw *store.Gateway) domain.UserStory {
	t.Helper()
	story, err := gw.CreateStory(context.Background(), domain.UserStory{
		Project: "LIMS", Role: "analista", Goal: "g", Reason: "r",
		Description: "d", Priority: domain.PriorityMedium,
	})
	require.NoError(t, err)
	return story
}

func TestGenerateTaskListParsesAndLinks(t *testing.T) {
	client := &scriptedClient{answers: []answer{
		{text: `[{"title": "Definir casos de prueba", "description": "x"}, {"title": "Automatizar regresión", "description": "y"}]`, in: 100, out: 60},
		{text: "Testing y Control de Calidad", in: 20, out: 4},
		{text: "Desarrollo Backend", in: 20, out: 4},
	}}
	svc, gw := newTestService(t, client)
	story := seedStory(t, gw)

	tasks, err := svc.GenerateTaskList(context.Background(), story.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.CategoryTesting, tasks[0].Category)
	assert.Equal(t, domain.CategoryBackend, tasks[1].Category)
	for _, task := range tasks {
		require.NotNil(t, task.StoryID)
		assert.Equal(t, story.ID, *task.StoryID)
	}

	linked, err := gw.TasksByStory(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Len(t, linked, 2)
}

func TestGenerateTaskListPlaceholderFallback(t *testing.T) {
	answers := []answer{{text: "lo siento, no puedo generar eso", in: 10, out: 10}}
	for i := 0; i < 5; i++ {
		answers = append(answers, answer{err: llm.ErrAPI})
	}
	client := &scriptedClient{answers: answers}
	svc, gw := newTestService(t, client)
	story := seedStory(t, gw)

	tasks, err := svc.GenerateTaskList(context.Background(), story.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	for i, task := range tasks {
		assert.Equal(t, domain.CategoryOther, task.Category)
		assert.Contains(t, task.Title, "Tarea")
		assert.Equal(t, int64(i+1), task.ID)
	}
	assert.Equal(t, "Tarea 1", tasks[0].Title)
	assert.Equal(t, "Tarea 5", tasks[4].Title)
}

func TestGenerateTaskListUnknownStory(t *testing.T) {
	svc, _ := newTestService(t, &scriptedClient{})
	_, err := svc.GenerateTaskList(context.Background(), 404)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
