package middleware

import (
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type wrappedWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *wrappedWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// silentPaths are high-frequency polling endpoints that are only logged on errors (status >= 400).
var silentPaths = map[string]bool{
	"/api/health": true,
}

// silentPrefixes cover job polling (/api/jobs/{id}).
var silentPrefixes = []string{
	"/api/jobs/",
}

func isSilent(path string) bool {
	if silentPaths[path] {
		return true
	}
	for _, p := range silentPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Logger logs one line per request with the chi request id and echoes the
// id in the response header.
func Logger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			if id := chimw.GetReqID(r.Context()); id != "" {
				w.Header().Set(chimw.RequestIDHeader, id)
			}
			wrapped := &wrappedWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			if isSilent(r.URL.Path) && wrapped.statusCode < 400 {
				return
			}

			entry := logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     wrapped.statusCode,
				"latency":    time.Since(start).String(),
				"request_id": chimw.GetReqID(r.Context()),
				"remote":     r.RemoteAddr,
			})
			switch {
			case wrapped.statusCode >= 500:
				entry.Error("[http] request")
			case wrapped.statusCode >= 400:
				entry.Warn("[http] request")
			default:
				entry.Info("[http] request")
			}
		})
	}
}
