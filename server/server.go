// Package server implements the HTTP surface of the authorization server:
// the authorize/grant/token protocol endpoints, revoke/userinfo/discovery,
// the user-removal sweep, and the ambient routing/CORS/metrics/health glue
// around them.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	gosundheit "github.com/AppsFlyer/go-sundheit"
	gosundheithttp "github.com/AppsFlyer/go-sundheit/http"
	"github.com/felixge/httpsnoop"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ohx-cloud/authd/pendingintent"
	"github.com/ohx-cloud/authd/refreshtoken"
)

// Server routes and serves the HTTP surface described by SPEC_FULL.md §6.
type Server struct {
	cfg     Config
	router  *mux.Router
	handler http.Handler
	health  gosundheit.Health

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New builds a Server, wiring every route and health check. Callers embed
// the returned Server as an http.Handler (it applies CORS, metrics, and
// rate-limiting itself).
func New(cfg Config) *Server {
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		health: gosundheit.New(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_http_requests_total",
			Help: "Total HTTP requests, by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "authd_http_request_duration_seconds",
			Help: "HTTP request latency, by route.",
		}, []string{"route"}),
	}
	// A second Server in the same process (tests build one per case) reuses
	// the collectors the first one registered.
	if err := prometheus.Register(s.requests); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		s.requests = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := prometheus.Register(s.latency); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		s.latency = are.ExistingCollector.(*prometheus.HistogramVec)
	}

	s.registerHealthChecks()
	s.routes()
	// Apache-combined-format request logging around the whole router,
	// matching the pack's general practice of wrapping a mux.Router in
	// gorilla/handlers' access-log middleware rather than hand-rolling one.
	s.handler = handlers.CombinedLoggingHandler(os.Stdout, s.router)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.corsMiddleware)

	s.handle(r, http.MethodGet, "/", s.handleRoot)
	s.handle(r, http.MethodPost, "/authorize", s.rateLimited(s.handleAuthorize))
	s.handle(r, http.MethodPost, "/grant_scopes", s.rateLimited(s.handleGrantScopes))
	s.handle(r, http.MethodPost, "/token", s.rateLimited(s.handleToken))
	s.handle(r, http.MethodGet, "/revoke", s.handleRevoke)
	s.handle(r, http.MethodGet, "/userinfo", s.handleUserInfo)
	s.handle(r, http.MethodGet, "/.well-known/jwks.json", s.handleJWKS)
	s.handle(r, http.MethodGet, "/.well-known/openid-configuration", s.handleDiscovery)
	s.handle(r, http.MethodGet, "/check_for_users", s.handleCheckForUsers)
	s.handle(r, http.MethodGet, "/list_intermediate_tokens", s.handleListIntermediateTokens)

	r.HandleFunc("/healthz", gosundheithttp.HandleHealthJSON(s.health))
	r.Handle("/metrics", promhttp.Handler())
}

// handle registers an instrumented route: CORS preflight is always answered
// (gorilla doesn't route OPTIONS to a GET/POST-only route by default),
// requests are counted and timed per-route.
func (s *Server) handle(r *mux.Router, method, path string, h http.HandlerFunc) {
	r.Handle(path, s.instrument(path, h)).Methods(method, http.MethodOptions)
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		start := time.Now()
		m := httpsnoop.CaptureMetrics(h, w, r)
		s.requests.WithLabelValues(route, strconv.Itoa(m.Code)).Inc()
		s.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type providerCheck struct {
	name string
	fn   func(ctx context.Context) error
}

func (c providerCheck) Name() string { return c.name }
func (c providerCheck) Execute() (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return nil, c.fn(ctx)
}

func (s *Server) registerHealthChecks() {
	_ = s.health.RegisterCheck(
		providerCheck{name: "pending-intent-store", fn: func(ctx context.Context) error {
			_, err := s.cfg.PendingIntents.Get(ctx, "__healthcheck__")
			if err != nil && !errors.Is(err, pendingintent.ErrNotFound) {
				return err
			}
			return nil
		}},
		gosundheit.ExecutionPeriod(30*time.Second),
	)
	_ = s.health.RegisterCheck(
		providerCheck{name: "refresh-token-registry", fn: func(ctx context.Context) error {
			_, err := s.cfg.RefreshTokens.Get(ctx, "__healthcheck__")
			if err != nil && !errors.Is(err, refreshtoken.ErrNotFound) {
				return err
			}
			return nil
		}},
		gosundheit.ExecutionPeriod(30*time.Second),
	)
	_ = s.health.RegisterCheck(
		providerCheck{name: "identity-provider", fn: func(ctx context.Context) error {
			_, err := s.cfg.Identity.QueuedRemovals(ctx)
			return err
		}},
		gosundheit.ExecutionPeriod(time.Minute),
	)
}
