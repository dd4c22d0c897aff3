package gateway

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/varnlund/gridlink/internal/config"
	"github.com/varnlund/gridlink/model"
)

// Authenticator builds the inbound auth middleware from config. When no
// secret is configured the gateway runs open and the middleware is a
// pass-through.
func Authenticator(cfg config.GatewayConfig) func(http.Handler) http.Handler {
	secret := ""
	if cfg.AuthSecretEnv != "" {
		secret = os.Getenv(cfg.AuthSecretEnv)
	}
	if secret == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	return jwtAuthenticator([]byte(secret), cfg.Audience)
}

// jwtAuthenticator verifies HS256 bearer tokens from the Authorization
// header before letting a request through.
func jwtAuthenticator(secret []byte, audience string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				WriteError(w, model.NewUnauthorizedError("missing authorization header"))
				return
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				WriteError(w, model.NewUnauthorizedError("invalid authorization header format"))
				return
			}

			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"HS256"}),
				jwt.WithLeeway(30 * time.Second),
				jwt.WithExpirationRequired(),
			}
			if audience != "" {
				opts = append(opts, jwt.WithAudience(audience))
			}

			token, err := jwt.Parse(auth[7:],
				func(*jwt.Token) (any, error) { return secret, nil },
				opts...,
			)
			if err != nil {
				WriteError(w, model.NewUnauthorizedError(classifyJWTError(err)))
				return
			}
			if !token.Valid {
				WriteError(w, model.NewUnauthorizedError("invalid token"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func classifyJWTError(err error) string {
	s := err.Error()
	switch {
	case strings.Contains(s, "expired"):
		return "token expired"
	case strings.Contains(s, "audience"):
		return "invalid token audience"
	case strings.Contains(s, "signing method"):
		return "disallowed signing algorithm"
	case strings.Contains(s, "signature"):
		return "invalid token signature"
	default:
		return "invalid token"
	}
}
