// Package http implements the REST API for the Oqu Learning Hub.
// It exposes lesson completion recording, learner stats, course progress
// and the aggregated dashboard, plus health probes for orchestration.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oqu-hub/oqu-learning-hub/internal/application/command"
	"github.com/oqu-hub/oqu-learning-hub/internal/application/query"
	"github.com/oqu-hub/oqu-learning-hub/internal/interface/http/handlers"
	"github.com/oqu-hub/oqu-learning-hub/pkg/logger"
)

// Config contains HTTP server configuration.
type Config struct {
	// Host is the bind address, "0.0.0.0" by default.
	Host string

	// Port is the listen port, 8080 by default.
	Port int

	// ReadTimeout bounds reading of the whole request.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing of the response.
	WriteTimeout time.Duration

	// IdleTimeout bounds keep-alive connections between requests.
	IdleTimeout time.Duration

	// MaxHeaderBytes caps request header size.
	MaxHeaderBytes int

	// MaxBodyBytes caps the accepted request body size.
	MaxBodyBytes int64

	// EnableCORS turns on CORS headers.
	EnableCORS bool

	// AllowedOrigins lists origins permitted by CORS.
	AllowedOrigins []string

	// EnableMetrics exposes the metrics endpoint.
	EnableMetrics bool

	// RateLimitPerMinute caps requests per minute per IP, 0 disables.
	RateLimitPerMinute int

	// DefaultTimezone is used for learners whose requests carry no
	// timezone header. Empty means UTC.
	DefaultTimezone string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20, // 1 MB
		MaxBodyBytes:       1 << 20,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		EnableMetrics:      true,
		RateLimitPerMinute: 120,
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	RecordCompletionHandler *command.RecordCompletionHandler

	// Query Handlers (CQRS Read Side)
	GetStatsHandler          *query.GetStatsHandler
	GetCourseProgressHandler *query.GetCourseProgressHandler
	GetDashboardHandler      *query.GetDashboardHandler
	ListCoursesHandler       *query.ListCoursesHandler

	// Logger
	Logger *logger.Logger

	// Health Check Dependencies
	HealthChecker handlers.HealthChecker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	logger     *logger.Logger
	limiter    *rateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
	}

	if s.logger == nil {
		s.logger = logger.Default()
	}
	if config.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(config.RateLimitPerMinute, time.Minute)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.handler(),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth) // Kubernetes alias
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)
	s.router.HandleFunc("GET /", s.handleRoot)

	// API v1 - progress & gamification
	s.router.HandleFunc("POST /api/v1/completions", s.handleRecordCompletion)
	s.router.HandleFunc("GET /api/v1/stats", s.handleGetStats)
	s.router.HandleFunc("GET /api/v1/dashboard", s.handleGetDashboard)
	s.router.HandleFunc("GET /api/v1/courses", s.handleListCourses)
	s.router.HandleFunc("GET /api/v1/courses/{id}/progress", s.handleGetCourseProgress)

	if s.config.EnableMetrics {
		s.router.HandleFunc("GET /metrics", s.handleMetrics)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

type middleware func(http.Handler) http.Handler

// handler assembles the middleware chain around the router. The first
// entry in the list sees the request first.
func (s *Server) handler() http.Handler {
	chain := []middleware{}
	if s.limiter != nil {
		chain = append(chain, s.rateLimitMiddleware)
	}
	if s.config.EnableCORS {
		chain = append(chain, s.corsMiddleware)
	}
	chain = append(chain,
		s.recoveryMiddleware,
		s.loggingMiddleware,
		s.requestIDMiddleware,
		s.learnerContextMiddleware,
	)

	var h http.Handler = s.router
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

// learnerContextMiddleware extracts the authenticated learner identity
// injected by the platform gateway. Requests without the header proceed
// as anonymous; individual handlers decide whether that is acceptable.
func (s *Server) learnerContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if learnerID := strings.TrimSpace(r.Header.Get(headerLearnerID)); learnerID != "" {
			ctx = context.WithValue(ctx, contextKeyLearnerID, learnerID)
		}
		if tz := strings.TrimSpace(r.Header.Get(headerLearnerTimezone)); tz != "" {
			ctx = context.WithValue(ctx, contextKeyTimezone, tz)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestIDMiddleware tags each request with an ID, honoring one supplied
// by the gateway.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs all HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.status),
			logger.Int64("duration_ms", time.Since(start).Milliseconds()),
			logger.String("ip", clientIP(r)),
			logger.String("request_id", getRequestID(r.Context())),
		)
	})
}

// recoveryMiddleware converts handler panics into 500 responses.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					logger.Any("error", err),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
					logger.String("request_id", getRequestID(r.Context())),
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers and answers preflight requests.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Learner-ID, X-Learner-Timezone, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.config.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// rateLimitMiddleware implements per-IP rate limiting.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start runs the server and blocks until it stops. A clean shutdown
// returns nil.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address returns the server address.
func (s *Server) Address() string {
	return s.config.Address()
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, resp JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a success envelope around data.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, JSONResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    &ResponseMeta{Timestamp: time.Now().UTC(), Version: "v1"},
	})
}

// writeJSONError writes an error envelope.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSONErrorWithDetails(w, status, code, message, "")
}

// writeJSONErrorWithDetails writes an error envelope with extra detail text.
func writeJSONErrorWithDetails(w http.ResponseWriter, status int, code, message, details string) {
	writeEnvelope(w, status, JSONResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message, Details: details},
		Meta:    &ResponseMeta{Timestamp: time.Now().UTC()},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

// Headers injected by the platform gateway after authentication.
const (
	headerLearnerID       = "X-Learner-ID"
	headerLearnerTimezone = "X-Learner-Timezone"
)

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyLearnerID contextKey = "learner_id"
	contextKeyTimezone  contextKey = "learner_timezone"
)

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// clientIP resolves the caller address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// getRequestID extracts the request ID from context.
func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// getLearnerID extracts the authenticated learner ID from context.
func getLearnerID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyLearnerID).(string); ok {
		return id
	}
	return ""
}

// getLearnerTimezone extracts the learner timezone from context.
func getLearnerTimezone(ctx context.Context) string {
	if tz, ok := ctx.Value(contextKeyTimezone).(string); ok {
		return tz
	}
	return ""
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// rateLimiter counts requests per key in fixed windows. The counter
// resets at window boundaries, so a burst can reach at most twice the
// limit across a boundary; good enough for abuse protection.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
}

type bucket struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
	}
	go rl.janitor()
	return rl
}

func (rl *rateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		rl.buckets[key] = &bucket{count: 1, resetAt: now.Add(rl.window)}
		return true
	}
	if b.count >= rl.limit {
		return false
	}
	b.count++
	return true
}

// janitor drops expired buckets so idle keys do not accumulate.
func (rl *rateLimiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		rl.mu.Lock()
		for key, b := range rl.buckets {
			if now.After(b.resetAt) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}
