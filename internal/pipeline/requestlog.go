// ABOUTME: Request logging stage that tags each request with a correlation ID
// ABOUTME: Logs method, path, status and elapsed time at a status-dependent level

package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HeaderCorrelationID carries the short per-request ID back to the caller.
const HeaderCorrelationID = "X-Correlation-ID"

type correlationKey struct{}

// CorrelationID returns the ID assigned by RequestLog, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// WithCorrelationID stores id on ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// NewCorrelationID returns the first eight characters of a random UUID.
func NewCorrelationID() string {
	return uuid.NewString()[:8]
}

// quietPaths are probed constantly by orchestrators and are not logged.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/health":  true,
}

// RequestLog logs every request except liveness probes. A panic from an inner
// handler is logged and then propagated unchanged.
func RequestLog(logger *slog.Logger) Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			id := NewCorrelationID()
			w.Header().Set(HeaderCorrelationID, id)
			r = r.WithContext(WithCorrelationID(r.Context(), id))
			rec := newStatusRecorder(w)
			start := time.Now()

			defer func() {
				if p := recover(); p != nil {
					logger.Error("request failed",
						"correlation_id", id,
						"method", r.Method,
						"path", r.URL.Path,
						"panic", p,
						"elapsed_ms", time.Since(start).Milliseconds(),
					)
					panic(p)
				}
			}()

			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "request",
				"correlation_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.wroteHeader = true
	}
	return s.ResponseWriter.Write(b)
}

// Flush keeps streaming responses working through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
