package llm

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrRateLimited indicates the provider rejected the call with 429.
	ErrRateLimited = errors.New("model rate limit exceeded")

	// ErrAuth indicates the API key or deployment was rejected.
	ErrAuth = errors.New("model authentication failed")

	// ErrQuota indicates the subscription quota is exhausted.
	ErrQuota = errors.New("model quota exceeded")

	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("model request timed out")

	// ErrAPI covers provider-side failures that are none of the above.
	ErrAPI = errors.New("model api error")

	// ErrInvalidOutput indicates the model response could not be parsed
	// into the expected structured format.
	ErrInvalidOutput = errors.New("invalid model output format")
)

// Classify maps a raw provider error onto the sentinel taxonomy using the
// typed API error, not message text. The original error stays wrapped for
// logging.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			if apiErr.Code == "insufficient_quota" {
				return errors.Join(ErrQuota, err)
			}
			return errors.Join(ErrRateLimited, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Join(ErrAuth, err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return errors.Join(ErrTimeout, err)
		}
		if apiErr.Code == "insufficient_quota" {
			return errors.Join(ErrQuota, err)
		}
		return errors.Join(ErrAPI, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return errors.Join(ErrRateLimited, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Join(ErrAuth, err)
		}
		return errors.Join(ErrAPI, err)
	}
	return err
}

// UserMessage renders a classified error as the remediation text shown to
// the team. Unclassified errors get a generic message.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "Se ha excedido el límite de solicitudes al modelo. Por favor, espera un momento antes de intentar nuevamente."
	case errors.Is(err, ErrAuth):
		return "Error de autenticación con el servicio de IA. Verifica tus credenciales."
	case errors.Is(err, ErrQuota):
		return "Se ha excedido la cuota del servicio de IA. Verifica tu plan de suscripción."
	case errors.Is(err, ErrTimeout):
		return "La solicitud al servicio de IA ha excedido el tiempo de espera. Intenta nuevamente."
	case errors.Is(err, ErrInvalidOutput):
		return "La respuesta del modelo no tiene el formato esperado."
	case errors.Is(err, ErrAPI):
		return "Error en la API del servicio de IA."
	default:
		return "Error al llamar al modelo."
	}
}
