package middleware

import (
	"context"
	"net/http"

	"github.com/google/logger"

	"cocktail-voucher/internal/session"
)

// CookieName holds the opaque session id
const CookieName = "voucher_session"

type ctxKey struct{}

// RequireSession only lets identified participants through. Anyone else is
// sent back to the identification page.
func RequireSession(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}

			sess, ok := store.Get(cookie.Value)
			if !ok || sess.Identity.PhoneNumber == "" {
				logger.Infof("Unknown session from %s, redirecting to identification", r.RemoteAddr)
				ClearSessionCookie(w)
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFrom returns the session attached by RequireSession
func SessionFrom(ctx context.Context) (session.Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(session.Session)
	return sess, ok
}

// SetSessionCookie binds the browser to a session
func SetSessionCookie(w http.ResponseWriter, id string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
