package controllers

import (
	"context"
	"net/http"

	"github.com/0x360x36/miauhome.cl/api/middleware"
	"github.com/0x360x36/miauhome.cl/api/responses"
	"github.com/0x360x36/miauhome.cl/internal/session"
	"github.com/0x360x36/miauhome.cl/pkg/auth"
	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
)

// SessionResolver maps a visitor to their cart session.
type SessionResolver interface {
	Get(ctx context.Context, profileID string, identity *auth.Identity) (*session.Session, error)
}

func resolveSession(w http.ResponseWriter, r *http.Request, sessions SessionResolver, logg *logger.Logger) (*session.Session, bool) {
	if sessions == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart sessions unavailable"))
		return nil, false
	}
	profileID := middleware.GuestIDFromContext(r.Context())
	if profileID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "guest profile missing"))
		return nil, false
	}
	sess, err := sessions.Get(r.Context(), profileID, middleware.IdentityFromContext(r.Context()))
	if err != nil {
		writeSessionError(w, r, nil, err, logg)
		return nil, false
	}
	return sess, true
}

// writeSessionError reports err and tells the UI to drop its token when the
// backend rejected it.
func writeSessionError(w http.ResponseWriter, r *http.Request, sess *session.Session, err error, logg *logger.Logger) {
	expired := sess.Expired()
	if expired || pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		responses.MarkSessionExpired(w)
	}
	responses.WriteError(r.Context(), logg, w, err)
}

func flagExpired(w http.ResponseWriter, sess *session.Session) {
	if sess.Expired() {
		responses.MarkSessionExpired(w)
	}
}
