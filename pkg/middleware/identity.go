package middleware

import (
	"net/http"

	"servicehub/pkg/auth"
	apperrors "servicehub/pkg/errors"
	"servicehub/pkg/logger"
)

// Identity attaches the bearer token's user to the request context. Requests without a token pass
// through anonymously; services decide which operations need an identity. A token that is present
// but invalid is rejected. A nil verifier leaves every request anonymous.
func Identity(verifier *auth.Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := auth.BearerToken(header)
			if !ok {
				writeAppError(w, apperrors.Unauthorized("Authorization header must be a bearer token"))
				return
			}

			id, err := verifier.Parse(raw)
			if err != nil {
				log.Warn("Rejected bearer token",
					"request_id", requestIDFrom(r),
					"path", r.URL.Path,
					"error", err,
				)
				writeAppError(w, apperrors.Unauthorized("Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}
