package record

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/bread-tally/internal/metrics"
)

// Server handles HTTP requests for records and statistics
type Server struct {
	service  *Service
	resolver IdentityResolver
	mux      *http.ServeMux
	http     *http.Server
}

type identityKey struct{}

// NewServer creates a new Server with default mux
func NewServer(service *Service, resolver IdentityResolver) *Server {
	return NewServerWithMux(service, resolver, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, resolver IdentityResolver, mux *http.ServeMux) *Server {
	s := &Server{
		service:  service,
		resolver: resolver,
		mux:      mux,
	}
	s.http = &http.Server{Handler: s}
	s.registerRoutes()
	return s
}

// identityFrom returns the identity stored by requireIdentity
func identityFrom(ctx context.Context) Identity {
	who, _ := ctx.Value(identityKey{}).(Identity)
	return who
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireIdentity resolves the caller and rejects the request if that fails
func (s *Server) requireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, ok := s.resolver.Resolve(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Bread Tally"`)
			writeError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, who)))
	}
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests per handler, method and status
func instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.HTTPRequestsTotal.WithLabelValues(name, r.Method, strconv.Itoa(rec.status)).Inc()
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/records", instrument("create_record", s.requireIdentity(s.handleCreateRecord)))
	s.mux.HandleFunc("GET /api/records", instrument("list_records", s.requireIdentity(s.handleListRecords)))
	s.mux.HandleFunc("GET /api/stats", instrument("statistics", s.requireIdentity(s.handleStatistics)))

	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Start starts the HTTP server and blocks until it is shut down
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	s.http.Addr = addr
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops a server started with Start
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
