package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/siskocapital/finking/internal/logging"
)

// HeaderRequestID carries the per-request correlation id
const HeaderRequestID = "X-Request-Id"

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wrote {
		r.status = http.StatusOK
		r.wrote = true
	}
	return r.ResponseWriter.Write(b)
}

// cors allows any origin and answers preflight requests directly
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+HeaderRequestID)
		h.Set("Access-Control-Expose-Headers", HeaderRequestID)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// routeName returns the route template r matches, or "unmatched"
func routeName(router *mux.Router, r *http.Request) string {
	var match mux.RouteMatch
	if router.Match(r, &match) && match.Route != nil {
		if tpl, err := match.Route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// instrument assigns a request id, recovers panics, and records logs and metrics
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := routeName(s.router, r)

		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)

		logger := s.logger.With().Str("request_id", id).Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				logger.Error().Interface("panic", p).Str("path", r.URL.Path).Msg("handler panicked")
				if !rec.wrote {
					writeError(rec, http.StatusInternalServerError, msgInternal)
				}
			}

			elapsed := time.Since(start)
			s.metrics.observeRequest(route, r.Method, rec.status, elapsed)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", rec.status).
				Dur("elapsed", elapsed).
				Str("remote", r.RemoteAddr).
				Interface("headers", logging.SafeHeaders(r.Header)).
				Msg("request")
		}()

		next.ServeHTTP(rec, r)
	})
}
