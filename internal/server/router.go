package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/pixelforge/forge/internal/auth"
	"github.com/pixelforge/forge/internal/logging"
	forgemw "github.com/pixelforge/forge/internal/middleware"
	"github.com/pixelforge/forge/internal/services/document"
	"github.com/pixelforge/forge/internal/services/iam"
	"github.com/pixelforge/forge/internal/services/project"
	"github.com/pixelforge/forge/internal/telemetry"
	"github.com/pixelforge/forge/internal/validation"
)

// RouterOptions controls the construction of the forge HTTP router.
// IAM, Projects, Coordinator, Documents and Validator are required.
type RouterOptions struct {
	IAM           iam.Service
	Projects      *project.Service
	Coordinator   *project.Coordinator
	Documents     *document.Service
	Validator     *validation.RequestValidator
	Logger        *zap.SugaredLogger
	Metrics       *telemetry.ServerMetrics
	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns the development CORS policy for the web client.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
			"http://localhost:3000",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type api struct {
	iam         iam.Service
	projects    *project.Service
	coordinator *project.Coordinator
	documents   *document.Service
	validator   *validation.RequestValidator
	log         *zap.SugaredLogger
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy, and
// the forge API mounted under /api.
func NewRouter(opts RouterOptions) chi.Router {
	log := logging.OrNop(opts.Logger)
	a := &api{
		iam:         opts.IAM,
		projects:    opts.Projects,
		coordinator: opts.Coordinator,
		documents:   opts.Documents,
		validator:   opts.Validator,
		log:         log,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(forgemw.RequestLogger(log))
	r.Use(forgemw.Metrics(opts.Metrics))
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	allow := func(op auth.Operation) func(http.Handler) http.Handler {
		return forgemw.RequireOperation(opts.IAM, op)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(forgemw.Authenticate(opts.IAM, log))

			r.With(allow(auth.OpRegister)).Post("/auth/register", a.handleRegister)
			r.With(allow(auth.OpChangePassword)).Put("/auth/change-password", a.handleChangePassword)
			r.With(allow(auth.OpWhoAmI)).Get("/auth/me", a.handleWhoAmI)
			r.With(allow(auth.OpListDevelopers)).Get("/auth/developers", a.handleListDevelopers)

			r.With(allow(auth.OpCreateProject)).Post("/projects/create", a.handleCreateProject)
			r.With(allow(auth.OpListProjects)).Get("/projects/all", a.handleListProjects)
			r.With(allow(auth.OpCompleteProject)).Put("/projects/complete/{id}", a.handleCompleteProject)
			r.With(allow(auth.OpDeleteProject)).Delete("/projects/{id}", a.handleDeleteProject)
			r.With(allow(auth.OpAssignDeveloper)).Post("/projects/assign", a.handleAssign)
			r.With(allow(auth.OpUnassignDeveloper)).Post("/projects/unassign", a.handleUnassign)
			r.With(allow(auth.OpListAssignedProject)).Get("/projects/assigned", a.handleListAssigned)

			r.With(allow(auth.OpUploadDocument)).Post("/docs/upload", a.handleUpload)
			r.With(allow(auth.OpListDocuments)).Get("/docs/{projectId}", a.handleListDocuments)
			r.With(allow(auth.OpDownloadDocument)).Get("/docs/{projectId}/{documentId}", a.handleDownloadDocument)
		})
	})

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	return r
}

// NewH2CHandler wraps the router so HTTP/2 clients can connect without TLS.
func NewH2CHandler(opts RouterOptions) http.Handler {
	return h2c.NewHandler(NewRouter(opts), &http2.Server{})
}
