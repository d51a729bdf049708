package middleware

import (
	"net/http"
	"time"

	"github.com/0x360x36/miauhome.cl/pkg/guest"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
	"github.com/google/uuid"
)

// GuestCookie configures the cookie naming a browser profile's guest cart.
type GuestCookie struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// GuestProfile makes sure every request carries a guest profile id, issuing a
// fresh one when the cookie is missing or malformed.
func GuestProfile(cookie GuestCookie, logg *logger.Logger) func(http.Handler) http.Handler {
	if cookie.Name == "" {
		cookie.Name = "mh_guest"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profileID := ""
			if c, err := r.Cookie(cookie.Name); err == nil && guest.ValidateProfileID(c.Value) == nil {
				profileID = c.Value
			}
			if profileID == "" {
				profileID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookie.Name,
					Value:    profileID,
					Path:     "/",
					MaxAge:   int(cookie.MaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cookie.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := WithGuestID(r.Context(), profileID)
			if logg != nil {
				ctx = logg.WithGuestID(ctx, profileID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
