package http

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/quick-flayer-api/internal/auth"
	"github.com/redmonkez12/quick-flayer-api/internal/config"
	"github.com/redmonkez12/quick-flayer-api/internal/httputil"
	"github.com/redmonkez12/quick-flayer-api/internal/logging"
	"github.com/redmonkez12/quick-flayer-api/internal/metrics"
	"github.com/redmonkez12/quick-flayer-api/internal/ratelimit"
	"github.com/redmonkez12/quick-flayer-api/internal/user"
)

// Route binds a method and pattern to a handler and its access rule
type Route struct {
	Method  string
	Pattern string
	Access  auth.RouteAccess
	Handler http.Handler
}

// Dependencies are the collaborators the router mounts
type Dependencies struct {
	Config         *config.Config
	AuthHandler    *auth.Handler
	Guard          *auth.Guard
	Limiter        *ratelimit.Limiter // nil disables rate limiting
	// TrustedProxies may set the client address through forwarding headers
	TrustedProxies []netip.Prefix
	Metrics        *metrics.Metrics
	Logger         *logging.Logger
}

// Routes is the complete table of API routes and who may call them
func Routes(cfg *config.Config, h *auth.Handler, m *metrics.Metrics) []Route {
	routes := []Route{
		{http.MethodGet, "/health", auth.Public(), http.HandlerFunc(handleHealth)},
		{http.MethodGet, "/metrics", auth.Public(), m.Handler()},

		{http.MethodPost, "/auth/login", auth.Public(), http.HandlerFunc(h.Login)},
		{http.MethodPost, "/auth/register", auth.Public(), http.HandlerFunc(h.Register)},
		{http.MethodPost, "/auth/verify", auth.Public(), http.HandlerFunc(h.Verify)},
		{http.MethodGet, "/auth/profile", auth.Authenticated(), http.HandlerFunc(h.Profile)},
		{http.MethodGet, "/auth/admin-check", auth.RequireRoles(user.RoleAdmin), http.HandlerFunc(h.AdminCheck)},
	}

	// Production builds do not expose the API docs
	if cfg.Server.IsDevelopment() {
		routes = append(routes, Route{http.MethodGet, "/swagger/*", auth.Public(), httpSwagger.WrapHandler})
	}

	return routes
}

// NewRouter creates and configures the HTTP router
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(deps.Config.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.Config.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders(!deps.Config.Server.IsDevelopment()))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(ratelimit.CapturePeer)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(deps.Logger))
	r.Use(deps.Metrics.Middleware)
	if deps.Limiter != nil {
		r.Use(ratelimit.Middleware(deps.Limiter, deps.Metrics, deps.TrustedProxies...))
	}
	r.Use(middleware.Compress(5))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondErrorWithCode(w, "route not found", httputil.CodeNotFound, http.StatusNotFound)
	})

	for _, route := range Routes(deps.Config, deps.AuthHandler, deps.Metrics) {
		r.With(deps.Guard.Middleware(route.Access)).Method(route.Method, route.Pattern, route.Handler)
	}

	deps.Logger.Info("routes mounted", "swagger", deps.Config.Server.IsDevelopment())

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
