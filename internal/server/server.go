package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/raysh454/clarity/docs/swagger" // registers the OpenAPI document
	"github.com/raysh454/clarity/internal/logging"
	"github.com/raysh454/clarity/internal/model"
	"github.com/raysh454/clarity/internal/registry"
)

// Scanner runs one accessibility scan.
type Scanner interface {
	Scan(ctx context.Context, raw string) (*model.ScanResult, error)
	Strategy() model.StrategyKind
}

// QuotaService tracks the daily free scan allowance per email.
type QuotaService interface {
	Status(ctx context.Context, email string) (registry.QuotaStatus, error)
	Consume(ctx context.Context, email string) (registry.QuotaStatus, error)
}

// SubscriberStore persists subscriber emails.
type SubscriberStore interface {
	Subscribe(ctx context.Context, email string, now time.Time) (*registry.Subscriber, bool, error)
}

// CheckoutCreator starts a hosted checkout for a plan.
type CheckoutCreator interface {
	CreateSession(ctx context.Context, plan, email string) (string, error)
}

// Instrumentation exposes HTTP metrics. Implemented by *metrics.Metrics.
type Instrumentation interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Deps are the components behind the API. Scanner is required; the rest
// switch their routes off when nil.
type Deps struct {
	Scanner     Scanner
	Quota       QuotaService
	Subscribers SubscriberStore
	Checkout    CheckoutCreator
	Metrics     Instrumentation
	Clock       func() time.Time
}

// Server is the HTTP API surface for Clarity.
type Server struct {
	cfg     Config
	deps    Deps
	router  chi.Router
	limiter *ipRateLimiter
	logger  logging.Logger
}

// NewServer wires the router around deps.
func NewServer(cfg Config, deps Deps, logger logging.Logger) *Server {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: chi.NewRouter(),
		logger: logger.With(logging.Field{Key: "component", Value: "server"}),
	}
	if cfg.RateLimit.RPS > 0 {
		s.limiter = newIPRateLimiter(cfg.RateLimit, deps.Clock)
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.requestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware)
	}

	// CORS preflight
	r.Options("/api/scan", s.optionsHandler("GET, POST"))
	r.Options("/api/quota", s.optionsHandler("GET"))
	r.Options("/api/subscribe", s.optionsHandler("POST"))
	r.Options("/api/checkout", s.optionsHandler("POST"))

	// Scans
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		r.Get("/api/scan", s.handleScanGet)
		r.Post("/api/scan", s.handleScanPost)
	})

	r.Get("/api/quota", s.handleQuota)
	r.Post("/api/subscribe", s.handleSubscribe)
	r.Post("/api/checkout", s.handleCheckout)

	// Ops
	r.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Scans-Remaining")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// requestIDMiddleware keeps a caller-supplied X-Request-ID or mints a UUID,
// and stores it where middleware.GetReqID finds it.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: redactQuery(q)})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes)); err == nil {
			fields = append(fields, redactBody(bodyBytes))
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Request logs keep email addresses only as a masked local part and domain.
const emailKey = "email"

func maskEmail(addr string) string {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" {
		return "***"
	}
	return string([]rune(local)[:1]) + "***@" + domain
}

func redactQuery(q url.Values) url.Values {
	if _, ok := q[emailKey]; !ok {
		return q
	}
	out := make(url.Values, len(q))
	for k, vs := range q {
		out[k] = vs
	}
	masked := make([]string, len(q[emailKey]))
	for i, v := range q[emailKey] {
		masked[i] = maskEmail(v)
	}
	out[emailKey] = masked
	return out
}

// redactBody returns the body log field. JSON objects are logged with the
// email masked; anything else is logged by size only.
func redactBody(raw []byte) logging.Field {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return logging.Field{Key: "body_bytes", Value: len(raw)}
	}
	if v, ok := obj[emailKey].(string); ok {
		obj[emailKey] = maskEmail(v)
	}
	return logging.Field{Key: "body", Value: obj}
}

// HTTPServer creates an *http.Server ready to ListenAndServe. WriteTimeout
// must outlast the scan timeout or slow scans get cut mid-response.
func (s *Server) HTTPServer() *http.Server {
	read := s.cfg.ReadTimeout
	if read <= 0 {
		read = 15 * time.Second
	}
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
}

// --- JSON helpers ---

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
