package middleware

import (
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CORSOptions builds the cross-origin policy for the browser frontend.
// A "*" anywhere in origins opens the API to every origin without
// credentials. The request id chi assigns is exposed so the frontend can
// quote it when reporting a failed download or edit.
func CORSOptions(origins []string) cors.Options {
	allowed := make([]string, 0, len(origins))
	wildcard := len(origins) == 0
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			wildcard = true
		default:
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		wildcard = true
	}
	if wildcard {
		allowed = []string{"*"}
	}

	return cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", chimw.RequestIDHeader},
		ExposedHeaders:   []string{chimw.RequestIDHeader, "Content-Disposition"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}
}
