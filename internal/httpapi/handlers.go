// Package httpapi exposes the community administration API over HTTP and a
// gRPC health service.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"sigepa.cl/internal/auth"
	"sigepa.cl/internal/estate"
	"sigepa.cl/internal/obs"
	"sigepa.cl/internal/stream"
)

const serviceName = "sigepa-api"

// ReadyProbe is a simple readiness check (a database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// API is the HTTP layer.
type API struct {
	router chi.Router
	estate *estate.Service
	tokens *auth.Tokens
	gate   *auth.Gate
	stream *stream.Stream
	ready  readinessChecker
	log    *zap.Logger

	version     string
	corsOrigins []string
	maxBody     int64
	rateBurst   int
	ratePerSec  int
	heartbeat   time.Duration
	proxies     []netip.Prefix
}

// Option configures API.
type Option func(*API)

func WithVersion(v string) Option { return func(a *API) { a.version = v } }

func WithReadiness(rc readinessChecker) Option {
	return func(a *API) {
		if rc != nil {
			a.ready = rc
		}
	}
}

// WithStream enables GET /api/notifications/stream.
func WithStream(s *stream.Stream) Option { return func(a *API) { a.stream = s } }

func WithLogger(l *zap.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

func WithCORSOrigins(origins []string) Option {
	return func(a *API) { a.corsOrigins = origins }
}

func WithMaxBodyBytes(n int64) Option { return func(a *API) { a.maxBody = n } }

// WithTrustedProxies lists the reverse proxies whose X-Forwarded-For header
// names the client for rate limiting and logs.
func WithTrustedProxies(proxies []netip.Prefix) Option {
	return func(a *API) { a.proxies = proxies }
}

func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		if burst > 0 && perSecond > 0 {
			a.rateBurst = burst
			a.ratePerSec = perSecond
		}
	}
}

// New wires the routes. tokens both issues session tokens at login and
// verifies them for the gate.
func New(svc *estate.Service, tokens *auth.Tokens, opts ...Option) *API {
	a := &API{
		estate:     svc,
		tokens:     tokens,
		ready:      ReadyProbe{},
		log:        obs.Logger(),
		version:    "dev",
		maxBody:    1 << 20,
		rateBurst:  40,
		ratePerSec: 20,
		heartbeat:  25 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.gate = auth.NewGate(tokens,
		auth.WithLogger(a.log.Named("auth")),
		auth.WithObserver(obs.ObserveAuthDecision),
	)
	a.router = a.routes()
	return a
}

// Handler returns the router wrapped in the middleware stack.
func (a *API) Handler() http.Handler {
	return a.wrap(a.router)
}

// wrap applies the middleware stack, outermost last. Recover sits inside
// Logging so a recovered panic is still logged with its 500.
func (a *API) wrap(h http.Handler) http.Handler {
	h = MaxBodyBytes(a.maxBody)(h)
	h = RateLimit(a.rateBurst, a.ratePerSec)(h)
	h = CORS(a.corsOrigins)(h)
	h = SecurityHeaders(h)
	h = Recover(h)
	h = Logging(h)
	h = RealIP(a.proxies)(h)
	h = RequestID(a.log)(h)
	return h
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(obs.Instrument)

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Handle("/metrics", obs.Handler())
	r.Post("/api/auth/login", a.login)

	r.Group(func(r chi.Router) {
		r.Use(a.gate.Require(auth.Self))
		r.Get("/api/auth/me", a.me)
		r.Get("/api/profile", a.me)
		r.Put("/api/profile", a.updateProfile)
		r.Get("/api/parcels/mine", a.myParcels)
		r.Get("/api/payments/mine", a.myPayments)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.gate.Require(auth.CommunityMember))
		r.Get("/api/parcels/map", a.parcelMap)
		r.Get("/api/notifications", a.listNotifications)
		r.Get("/api/notifications/stream", a.streamNotifications)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.gate.Require(auth.OwnerOrAdmin))
		r.Get("/api/parcels/{id}", a.getParcel)
		r.Get("/api/payments/{id}", a.getPayment)
		r.Post("/api/payments/{id}/checkout", a.checkout)
		r.Post("/api/payments/confirm", a.confirm)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.gate.Require(auth.AdminOnly))
		r.Get("/api/parcels", a.listParcels)
		r.Post("/api/parcels", a.createParcel)
		r.Delete("/api/parcels/{id}", a.deleteParcel)

		r.Post("/api/notifications", a.createNotification)
		r.Delete("/api/notifications/{id}", a.deleteNotification)

		r.Get("/api/contracts", a.listContracts)
		r.Post("/api/contracts", a.createContract)
		r.Delete("/api/contracts/{id}", a.deleteContract)

		r.Get("/api/expenses", a.listExpenses)
		r.Post("/api/expenses", a.createExpense)

		r.Get("/api/users", a.listUsers)
		r.Post("/api/users", a.createUser)
		r.Delete("/api/users/{id}", a.deleteUser)

		r.Get("/api/payments", a.listPayments)
		r.Post("/api/payments/{id}/reset", a.resetCheckout)
		r.Get("/api/stats/summary", a.summary)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ready.Check(ctx); err != nil {
		obs.LoggerFrom(r.Context()).Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
		"payment": a.estate.GatewayName(),
	})
}
