package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/xmoney-playground/internal/cards"
	"github.com/noah-isme/xmoney-playground/internal/checkout"
	"github.com/noah-isme/xmoney-playground/internal/common"
	"github.com/noah-isme/xmoney-playground/internal/credentials"
	"github.com/noah-isme/xmoney-playground/internal/events"
	"github.com/noah-isme/xmoney-playground/internal/health"
	"github.com/noah-isme/xmoney-playground/internal/lock"
	"github.com/noah-isme/xmoney-playground/internal/obs"
	"github.com/noah-isme/xmoney-playground/internal/order"
	"github.com/noah-isme/xmoney-playground/internal/ratelimit"
	"github.com/noah-isme/xmoney-playground/internal/security"
)

// NewRouter mounts every HTTP route on a chi router.
func NewRouter(d *Dependencies) http.Handler {
	cfg := d.Config
	logger := d.Logger

	checkoutHandler := &checkout.Handler{
		Svc: &checkout.Service{
			Builder: order.NewBuilder(),
			Signer:  d.Signer,
			Resolver: order.BaseURLResolver{
				BaseURL:   cfg.BaseURL,
				VercelURL: cfg.VercelURL,
				VitePort:  cfg.VitePort,
			},
			Store:    d.Credentials,
			Fallback: cfg.CredentialsFallback,
		},
		Logger: logger,
	}
	cardsHandler := &cards.Handler{
		Svc:    &cards.Service{API: d.XMoney, Store: d.Credentials, Fallback: cfg.CredentialsFallback},
		Logger: logger,
	}
	eventsHandler := &events.Handler{Bus: d.Events, Logger: logger}
	credentialsHandler := &credentials.Handler{Store: d.Credentials, Logger: logger}
	if d.Redis != nil {
		credentialsHandler.Lock = lock.Locker{R: d.Redis, Prefix: "xmoney:lock:", Wait: 2 * time.Second}
	}

	var checker health.Checker
	if d.Redis != nil {
		checker = health.RedisChecker{R: d.Redis}
	}
	healthHandler := health.Handler{Checker: checker}

	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	limit := ratelimit.Handler{
		Limiter: d.Limiter,
		Config:  ratelimit.Config{Key: ratelimit.ByClientIP, Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))
	r.NotFound(notFound)
	r.MethodNotAllowed(common.MethodNotAllowed)

	if d.HTTPMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api", func(api chi.Router) {
		api.NotFound(notFound)
		api.MethodNotAllowed(common.MethodNotAllowed)
		api.Get("/health", healthHandler.API)

		api.Group(func(g chi.Router) {
			g.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
			g.Use(limit.Middleware)

			g.Post("/orders", checkoutHandler.Orders)
			g.Post("/orders/verify", checkoutHandler.VerifySignature)
			g.Post("/verify-card", checkoutHandler.VerifyCard)
			g.Post("/get-cards", cardsHandler.GetCards)
			g.With(idem.Middleware).Post("/delete-card", cardsHandler.DeleteCard)
			g.Post("/widget-events", eventsHandler.Emit)
			g.Get("/widget-events", eventsHandler.Recent)

			if cfg.CredentialsAPIEnabled {
				g.Get("/credentials", credentialsHandler.Get)
				g.Put("/credentials", credentialsHandler.Put)
			}
		})
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	common.JSONError(w, http.StatusNotFound, "Not found", nil)
}
