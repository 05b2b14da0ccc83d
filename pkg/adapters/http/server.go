// Package http exposes the lifecycle service over a JSON REST API described by an
// embedded OpenAPI document, plus a server-sent event stream of transitions per object.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/admin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type server struct {
	svc        *admin.Service
	authorizer Authorizer
	streams    *StreamManager
	logger     *slog.Logger
	version    string
	apiVersion string
}

// Option configures the handler.
type Option func(*server)

// WithAuthorizer installs the policy consulted before mutating requests.
func WithAuthorizer(a Authorizer) Option {
	return func(s *server) { s.authorizer = a }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *server) { s.logger = l }
}

// WithStreams shares a StreamManager whose Hooks are installed on the engine.
func WithStreams(sm *StreamManager) Option {
	return func(s *server) { s.streams = sm }
}

// WithVersion sets the build version reported by /info.
func WithVersion(v string) Option {
	return func(s *server) { s.version = v }
}

// NewHandler builds the REST handler for svc.
func NewHandler(svc *admin.Service, opts ...Option) (http.Handler, error) {
	s := &server{
		svc:        svc,
		authorizer: AllowAll,
		logger:     logging.NewNop(),
		version:    "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.streams == nil {
		s.streams = NewStreamManager(s.logger)
	}

	doc, err := LoadSpec()
	if err != nil {
		return nil, err
	}
	s.apiVersion = doc.Info.Version
	validate, err := requestValidator(doc)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.withLogger)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)

	r.Route("/v1", func(r chi.Router) {
		r.Use(validate)

		r.Route("/configs", func(r chi.Router) {
			r.Get("/", s.listConfigs)
			r.With(s.authorize("config.create")).Post("/", s.createConfig)

			r.Route("/{configID}", func(r chi.Router) {
				r.Get("/", s.getConfig)
				r.Get("/graph", s.getGraph)
				r.With(s.authorize("config.update")).Put("/", s.updateConfig)
				r.With(s.authorize("config.delete")).Delete("/", s.deleteConfig)
				r.With(s.authorize("config.activate")).Post("/activate", s.activateConfig)
				r.With(s.authorize("config.disable")).Post("/disable", s.disableConfig)

				r.With(s.authorize("config.update")).Post("/states", s.addState)
				r.With(s.authorize("config.update")).Put("/states/{stateID}", s.updateState)
				r.With(s.authorize("config.update")).Delete("/states/{stateID}", s.deleteState)
				r.Get("/states/{stateID}/actions", s.getActions)
				r.With(s.authorize("config.update")).Put("/states/{stateID}/actions", s.replaceActions)

				r.With(s.authorize("config.update")).Post("/transitions", s.addTransition)
				r.With(s.authorize("config.update")).Delete("/transitions/{transitionID}", s.deleteTransition)
				r.Get("/transitions/{transitionID}/conditions", s.getConditions)
				r.With(s.authorize("config.update")).Put("/transitions/{transitionID}/conditions", s.replaceConditions)
				r.Post("/transitions/{transitionID}/evaluate", s.evaluate)
			})
		})

		r.Route("/objects", func(r chi.Router) {
			r.With(s.authorize("object.enroll")).Post("/", s.enroll)
			r.Get("/{objectID}/status", s.getStatus)
			r.With(s.authorize("object.transition")).Post("/{objectID}/transitions", s.applyTransition)
			r.Get("/{objectID}/events", s.subscribeEvents)
		})
	})

	return enableCORS(r), nil
}

func (s *server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		ctx := context.WithValue(r.Context(), loggerKey{}, log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) authorize(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := s.authorizer.Authorize(r, callerFrom(r), action); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderTenant+", "+HeaderActor)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"app":         "waypoint-http",
		"version":     s.version,
		"api_version": s.apiVersion,
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Waypoint API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`
