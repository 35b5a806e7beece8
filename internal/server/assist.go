package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"labtrack/internal/ledger"
)

// The assist endpoints back the task creation wizard: one call per form
// field, each reporting its own token usage. When the request carries a form
// id the response also carries the form's running totals.

func (s *server) recordForm(formID string, step ledger.Step, tokens int, cost float64) *ledger.Totals {
	if formID == "" {
		return nil
	}
	totals := s.forms.Record(formID, step, ledger.Entry{Tokens: tokens, Cost: cost})
	return &totals
}

func requireTitle(input *AssistRequest) huma.StatusError {
	if strings.TrimSpace(input.Title) == "" {
		return newAPIError(http.StatusBadRequest, "bad_request", "title is required")
	}
	return nil
}

func (s *server) registerAssist(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "open-assist-form",
		Method:        http.MethodPost,
		Path:          "/assist/forms",
		Summary:       "Open a wizard form for token accounting",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body FormEnvelope `json:"body"`
	}, error) {
		return &struct {
			Body FormEnvelope `json:"body"`
		}{Body: FormEnvelope{Success: true, FormID: s.forms.Open()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assist-describe",
		Method:      http.MethodPost,
		Path:        "/assist/describe",
		Summary:     "Generate a task description",
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body AssistRequest `json:"body"`
	}) (*struct {
		Body DescribeEnvelope `json:"body"`
	}, error) {
		if err := requireTitle(&input.Body); err != nil {
			return nil, err
		}
		res, err := s.assist.Describe(ctx, input.Body.Title)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body DescribeEnvelope `json:"body"`
		}{Body: DescribeEnvelope{
			Success:     true,
			Description: res.Text,
			Usage:       usageOf(res),
			Form:        s.recordForm(input.Body.FormID, ledger.StepDescribe, res.TotalTokens, res.Cost),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assist-categorize",
		Method:      http.MethodPost,
		Path:        "/assist/categorize",
		Summary:     "Categorize a task",
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body AssistRequest `json:"body"`
	}) (*struct {
		Body CategorizeEnvelope `json:"body"`
	}, error) {
		if err := requireTitle(&input.Body); err != nil {
			return nil, err
		}
		category, res, err := s.assist.Categorize(ctx, input.Body.Title, input.Body.Description)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body CategorizeEnvelope `json:"body"`
		}{Body: CategorizeEnvelope{
			Success:       true,
			Category:      string(category),
			CategoryLabel: category.Label(),
			Usage:         usageOf(res),
			Form:          s.recordForm(input.Body.FormID, ledger.StepCategorize, res.TotalTokens, res.Cost),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assist-effort",
		Method:      http.MethodPost,
		Path:        "/assist/effort",
		Summary:     "Estimate the effort in hours",
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body AssistRequest `json:"body"`
	}) (*struct {
		Body EffortEnvelope `json:"body"`
	}, error) {
		if err := requireTitle(&input.Body); err != nil {
			return nil, err
		}
		effort, res, err := s.assist.EstimateEffort(ctx, input.Body.Title, input.Body.Description, input.Body.Category)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body EffortEnvelope `json:"body"`
		}{Body: EffortEnvelope{
			Success: true,
			Effort:  effort,
			Usage:   usageOf(res),
			Form:    s.recordForm(input.Body.FormID, ledger.StepEffort, res.TotalTokens, res.Cost),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assist-risks",
		Method:      http.MethodPost,
		Path:        "/assist/risks",
		Summary:     "Analyze execution risks",
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body AssistRequest `json:"body"`
	}) (*struct {
		Body RisksEnvelope `json:"body"`
	}, error) {
		if err := requireTitle(&input.Body); err != nil {
			return nil, err
		}
		res, err := s.assist.AnalyzeRisks(ctx, input.Body.Title, input.Body.Description, input.Body.Category)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body RisksEnvelope `json:"body"`
		}{Body: RisksEnvelope{
			Success:      true,
			RiskAnalysis: res.Text,
			Usage:        usageOf(res),
			Form:         s.recordForm(input.Body.FormID, ledger.StepRisks, res.TotalTokens, res.Cost),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assist-mitigation",
		Method:      http.MethodPost,
		Path:        "/assist/mitigation",
		Summary:     "Propose a mitigation plan",
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body AssistRequest `json:"body"`
	}) (*struct {
		Body MitigationEnvelope `json:"body"`
	}, error) {
		if err := requireTitle(&input.Body); err != nil {
			return nil, err
		}
		res, err := s.assist.ProposeMitigation(ctx, input.Body.Title, input.Body.Description, input.Body.Category, input.Body.RiskAnalysis)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body MitigationEnvelope `json:"body"`
		}{Body: MitigationEnvelope{
			Success:        true,
			MitigationPlan: res.Text,
			Usage:          usageOf(res),
			Form:           s.recordForm(input.Body.FormID, ledger.StepMitigation, res.TotalTokens, res.Cost),
		}}, nil
	})
}
