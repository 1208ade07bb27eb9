// Package requestid propagates a correlation ID through the request context.
package requestid

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/docsales/realstate-docgen-front-sub000/pkg/requestcontext"
)

// Header carries the correlation ID in both directions.
const Header = "X-Request-ID"

// Middleware reuses an inbound X-Request-ID or mints a new one, stores it in
// the context and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(Header))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
