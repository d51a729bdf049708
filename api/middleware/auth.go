package middleware

import (
	"net/http"

	"github.com/0x360x36/miauhome.cl/api/responses"
	"github.com/0x360x36/miauhome.cl/pkg/auth"
	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
)

// IdentityParser turns a bearer token into an identity.
type IdentityParser interface {
	Parse(token string) (*auth.Identity, error)
}

// Identity reads an optional bearer token. Requests without one proceed as
// guests; an unreadable or expired token is rejected and flagged so the UI
// drops it.
func Identity(parser IdentityParser, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := auth.BearerToken(header)
			if !ok {
				responses.MarkSessionExpired(w)
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed authorization header"))
				return
			}
			identity, err := parser.Parse(token)
			if err != nil {
				responses.MarkSessionExpired(w)
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			if logg != nil && identity.Subject != "" {
				ctx = logg.WithUserID(ctx, identity.Subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
