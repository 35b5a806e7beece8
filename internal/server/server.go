// Package server exposes the labtrack HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"labtrack/internal/assistant"
	"labtrack/internal/domain"
	"labtrack/internal/ledger"
	"labtrack/internal/llm"
	"labtrack/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Gateway   *store.Gateway
	Assistant *assistant.Service
	Forms     *ledger.Ledger
	BasePath  string
	Auth      AuthConfig
	Logger    *slog.Logger
}

// apiError models the error envelope every failure uses.
type apiError struct {
	status  int
	Success bool   `json:"success"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, code, message string) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{status: status, Code: code, Message: message}
}

type server struct {
	gw     *store.Gateway
	assist *assistant.Service
	forms  *ledger.Ledger
	log    *slog.Logger
}

// New returns an HTTP handler exposing the labtrack API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("server: gateway is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	forms := cfg.Forms
	if forms == nil {
		forms = ledger.New(ledger.DefaultTTL)
	}
	s := &server{gw: cfg.Gateway, assist: cfg.Assistant, forms: forms, log: log}

	huma.DefaultArrayNullable = false
	// Route every huma-generated error through the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request.
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg)
	}

	router := chi.NewRouter()
	if cfg.Auth.JWTSecret != "" {
		router.Use(newAuthMiddleware(basePath, cfg.Auth, log))
	}
	hcfg := huma.DefaultConfig("Labtrack API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	s.registerTasks(group)
	s.registerStories(group)
	s.registerAssist(group)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

// handleError translates internal failures into the API envelope. Storage
// failures never leak details to the client; the remediation text for model
// failures is the message the wizard shows the team.
func (s *server) handleError(err error) huma.StatusError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidStory):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error())
	case isModelError(err):
		s.log.Warn("model failure", "error", err)
		return newAPIError(http.StatusBadGateway, "model_error", llm.UserMessage(err))
	default:
		s.log.Error("storage failure", "error", err)
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func isModelError(err error) bool {
	for _, sentinel := range []error{
		llm.ErrRateLimited, llm.ErrAuth, llm.ErrQuota,
		llm.ErrTimeout, llm.ErrAPI, llm.ErrInvalidOutput,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusBadGateway:
		return "model_error"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Labtrack API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}
