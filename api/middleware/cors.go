package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

// corsHeaders are the request headers storefront and panel clients send.
var corsHeaders = []string{
	"Accept",
	"Authorization",
	"Content-Type",
	"Last-Event-ID",
	idempotencyHeader,
	CartSessionHeader,
	requestIDHeader,
}

// CORS allows the configured storefront and operator panel origins. Cookies are never
// used, so credentials stay off and "*" is accepted as an origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: corsHeaders,
		ExposedHeaders: []string{requestIDHeader, replayedHeader, "Retry-After"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	})
}
