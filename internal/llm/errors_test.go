package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassifyAPIErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"rate limit", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, ErrRateLimited},
		{"quota via 429", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Code: "insufficient_quota"}, ErrQuota},
		{"unauthorized", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, ErrAuth},
		{"forbidden", &openai.APIError{HTTPStatusCode: http.StatusForbidden}, ErrAuth},
		{"gateway timeout", &openai.APIError{HTTPStatusCode: http.StatusGatewayTimeout}, ErrTimeout},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}, ErrAPI},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrTimeout},
		{"request error", &openai.RequestError{HTTPStatusCode: http.StatusTooManyRequests}, ErrRateLimited},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			assert.ErrorIs(t, got, tc.want)
		})
	}
}

func TestClassifyWrappedAPIError(t *testing.T) {
	inner := &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}
	got := Classify(fmt.Errorf("complete: %w", inner))
	assert.ErrorIs(t, got, ErrAuth)

	// The provider error stays reachable for logging.
	var apiErr *openai.APIError
	assert.True(t, errors.As(got, &apiErr))
}

func TestClassifyUnknownPassesThrough(t *testing.T) {
	err := errors.New("weird network thing")
	assert.Equal(t, err, Classify(err))
	assert.Nil(t, Classify(nil))
}

func TestUserMessages(t *testing.T) {
	assert.Contains(t, UserMessage(ErrRateLimited), "límite de solicitudes")
	assert.Contains(t, UserMessage(ErrAuth), "autenticación")
	assert.Contains(t, UserMessage(ErrQuota), "cuota")
	assert.Contains(t, UserMessage(ErrTimeout), "tiempo de espera")
	assert.Contains(t, UserMessage(errors.New("???")), "Error al llamar al modelo")
}
