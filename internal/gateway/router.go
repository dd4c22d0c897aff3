package gateway

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/varnlund/gridlink/internal/config"
	"github.com/varnlund/gridlink/internal/forms"
	"github.com/varnlund/gridlink/internal/ionapi"
	"github.com/varnlund/gridlink/internal/mi"
	"github.com/varnlund/gridlink/internal/observability"
)

// ionProxyPrefix is stripped from proxied request paths before they are
// resolved against the ION base URL.
const ionProxyPrefix = "/api/ion"

// Dependencies holds all injected dependencies for the gateway.
type Dependencies struct {
	Config   *config.Config
	Forms    *forms.Client
	MI       *mi.Client
	Ion      *ionapi.Broker
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, metrics, and the API document bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	// Public routes.
	r.Get("/healthz", observability.HandleHealth())
	if deps.Registry != nil {
		path := deps.Config.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Get(path, promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	r.Get("/openapi.json", handleOpenAPIDocument())

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(Authenticator(deps.Config.Gateway))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))
		r.Use(MetricsRecording(deps.Metrics))

		r.Post("/api/form/bookmark", handleBookmark(deps.Forms))
		r.Post("/api/form/search", handleSearch(deps.Forms))
		r.Post("/api/form/command", handleCommand(deps.Forms))
		r.Post("/api/form/request", handleFormRequest(deps.Forms))
		r.Post("/api/form/translate", handleTranslate(deps.Forms))
		r.Get("/api/form/environment", handleEnvironment(deps.Forms))
		r.Get("/api/form/usercontext", handleUserContext(deps.Forms))
		r.Post("/api/form/logoff", handleLogoff(deps.Forms))

		r.Get("/api/mi/{program}/{transaction}", handleMIExecute(deps.MI))
		r.Post("/api/mi/{program}/{transaction}", handleMIExecute(deps.MI))

		r.Handle("/api/ion/*", handleIonProxy(deps.Ion, ionProxyPrefix))
	})

	return r
}
