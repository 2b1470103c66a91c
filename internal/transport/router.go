package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/korubo/kybdash/internal/config"
	"github.com/korubo/kybdash/internal/observability"
	"github.com/korubo/kybdash/internal/runner"
	"github.com/korubo/kybdash/internal/store"
	"github.com/korubo/kybdash/model"
)

// CustomerCatalog is the directory view the transport layer needs.
type CustomerCatalog interface {
	Customers() []model.Customer
	Contains(id string) bool
}

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Sessions   *runner.Sessions
	Store      store.Store
	Directory  CustomerCatalog
	Navigation *NavigationSink
	Ready      observability.ReadinessChecks

	// Authenticate is the JWT middleware; nil disables authentication,
	// which only tests use.
	Authenticate func(http.Handler) http.Handler
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(Recovery(deps.Logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	// Metrics are recorded here, inside chi, so the route pattern is
	// resolved and every route (public included) is counted exactly once.
	r.Use(deps.Metrics.MetricsMiddleware)

	// Public routes.
	r.Get("/ui/health", observability.HandleHealth())
	r.Get("/ui/ready", observability.HandleReady(deps.Ready))
	if deps.Config.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, deps.Config.Observability.Metrics.Path, observability.Handler())
	}

	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildRequestContext)
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(deps.Logger))

		r.Get("/ui/customers", deps.handleListCustomers)
		r.Post("/ui/customers/select", deps.handleSelectCustomer)

		r.Get("/ui/dashboard", deps.handleDashboard)

		r.Post("/ui/runs", deps.handleStartRun)
		r.Get("/ui/runs/current", deps.handleCurrentRun)
		r.Post("/ui/runs/reset", deps.handleResetRun)
		r.Get("/ui/runs/completion", deps.handleRunCompletion)

		r.Get("/ui/results/latest", deps.handleLatestResult)
		r.Put("/ui/results/latest/override", deps.handleOverride)
		r.Get("/ui/reports/latest", deps.handleLatestReport)
	})

	return r
}
