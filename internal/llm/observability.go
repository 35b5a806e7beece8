package llm

import (
	"errors"
	"log/slog"
)

// CallEvent records metadata about a single model invocation.
type CallEvent struct {
	Model        string
	LatencyMs    int64
	InputTokens  int
	OutputTokens int
	Success      bool
	ErrorCode    string
}

// Observer receives events about model calls for logging and metrics.
type Observer interface {
	OnCallComplete(event CallEvent)
}

// LogObserver writes model call events to a structured logger.
type LogObserver struct {
	Log *slog.Logger
}

func (o LogObserver) OnCallComplete(event CallEvent) {
	if event.Success {
		o.Log.Info("model call",
			"model", event.Model,
			"latency_ms", event.LatencyMs,
			"input_tokens", event.InputTokens,
			"output_tokens", event.OutputTokens)
		return
	}
	o.Log.Warn("model call failed",
		"model", event.Model,
		"latency_ms", event.LatencyMs,
		"error_code", event.ErrorCode)
}

// NoopObserver discards all events. Useful for tests.
type NoopObserver struct{}

func (NoopObserver) OnCallComplete(CallEvent) {}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrAuth):
		return "AUTH"
	case errors.Is(err, ErrQuota):
		return "QUOTA"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrInvalidOutput):
		return "INVALID_OUTPUT"
	case errors.Is(err, ErrAPI):
		return "API"
	default:
		return "UNKNOWN"
	}
}
