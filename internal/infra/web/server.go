package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/config"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/metrics"
	"github.com/smitsergei/tma-subscription-sub002/internal/usecase"
)

// RateLimiter is satisfied by redis.RateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Deps are the use cases behind the HTTP API. RateLimiter and Ready may be nil.
type Deps struct {
	Identity      usecase.IdentityUseCase
	Catalog       usecase.CatalogUseCase
	Payments      usecase.PaymentUseCase
	Subscriptions usecase.SubscriptionUseCase
	Demos         usecase.DemoUseCase
	Promos        usecase.PromoUseCase
	Broadcasts    usecase.BroadcastUseCase
	IPN           adapter.IPNVerifier
	RateLimiter   RateLimiter
	// Ready reports whether backing stores are reachable.
	Ready func(ctx context.Context) error
}

type Server struct {
	cfg            config.HTTPConfig
	deps           Deps
	limitPerMinute int
	log            *zerolog.Logger
	router         chi.Router
	srv            *http.Server
}

func NewServer(cfg config.HTTPConfig, rl config.RateLimitConfig, deps Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http").Logger()
	s := &Server{
		cfg:            cfg,
		deps:           deps,
		limitPerMinute: rl.PerMinute,
		log:            &l,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, TraceID, RequestLog(s.log), middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", initDataHeader, traceHeader},
			ExposedHeaders:   []string{traceHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/webhooks/nowpayments", s.handleNOWPayments)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/me", s.handleMe)
			r.With(s.rateLimit("auth_session")).Post("/auth/session", s.handleSession)
			r.Get("/products", s.handleListProducts)
			r.Get("/products/{id}", s.handleGetProduct)
			r.Get("/subscriptions", s.handleMySubscriptions)
			r.Get("/demo", s.handleMyDemos)
			r.With(s.rateLimit("demo")).Post("/demo", s.handleGrantDemo)
			r.With(s.rateLimit("promo_apply")).Post("/promo/apply", s.handleApplyPromo)
			r.With(s.rateLimit("payments")).Post("/payments", s.handleCheckout)
			r.Get("/payments/{id}", s.handleGetPayment)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireAdmin)

				r.Get("/channels", s.handleListChannels)
				r.Post("/channels", s.handleCreateChannel)
				r.Post("/products", s.handleCreateProduct)
				r.Put("/products/{id}", s.handleUpdateProduct)
				r.Post("/promos", s.handleCreatePromo)
				r.Post("/subscriptions", s.handleAdminGrant)
				r.Post("/subscriptions/{id}/revoke", s.handleRevoke)
				r.Get("/users/{tgID}/subscriptions", s.handleUserSubscriptions)
				r.Post("/demo/{id}/deactivate", s.handleDeactivateDemo)
				r.Post("/payments/{id}/confirm", s.handleConfirmPayment)
				r.Post("/payments/{id}/fail", s.handleFailPayment)
				r.With(s.rateLimit("broadcasts")).Post("/broadcasts", s.handleCreateBroadcast)
				r.Get("/broadcasts/{id}", s.handleGetBroadcast)
			})
		})
	})
	return r
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
