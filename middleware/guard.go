// Package middleware adapts the engine's authentication and authorization
// to net/http. It owns nothing but the bearer-token plumbing; all decisions
// come from the engine.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"authcore"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by [Authenticate] or
// [AuthenticatePartial].
func IdentityFromContext(ctx context.Context) (*authcore.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*authcore.Identity)
	return id, ok
}

// Authenticate requires a full bearer access token and applies the guards.
// The resolved identity is stored on the request context.
func Authenticate(engine *authcore.Engine, guards ...authcore.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tok, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identity, err := engine.Authorize(r.Context(), tok, guards...)
			if err != nil {
				http.Error(w, http.StatusText(authcore.StatusCode(err)), authcore.StatusCode(err))
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthenticatePartial requires a partial bearer token, for routes that
// finish a pending-2FA login. Full tokens are rejected.
func AuthenticatePartial(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tok, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identity, err := engine.AuthenticatePartial(r.Context(), tok)
			if err != nil {
				http.Error(w, http.StatusText(authcore.StatusCode(err)), authcore.StatusCode(err))
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
