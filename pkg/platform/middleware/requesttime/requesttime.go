// Package requesttime provides middleware for request-scoped time.
// All operations within a single HTTP request share the same "now", so a
// checklist's completion date and descriptor timestamps line up.
package requesttime

import (
	"net/http"
	"time"

	"github.com/docsales/realstate-docgen-front-sub000/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
