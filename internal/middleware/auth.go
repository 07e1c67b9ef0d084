package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/MikhailRaia/paylink/internal/auth"
)

type contextKey string

// UserIDKey is the context key used to store authenticated user ID.
const UserIDKey contextKey = "userID"

// AuthCookieName carries the user token in browsers.
const AuthCookieName = "paylink_token"

// AuthMiddleware identifies the user issuing links, either from the auth
// cookie or from an "Authorization: Bearer" header.
type AuthMiddleware struct {
	jwtService *auth.JWTService
}

func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// AuthenticateUser ensures a user is present, issuing a token and cookie if needed.
func (a *AuthMiddleware) AuthenticateUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.userFromRequest(r)
		if err != nil {
			log.Debug().Err(err).Msg("No valid token, issuing a new user")

			userID, err = a.jwtService.GenerateUserID()
			if err != nil {
				log.Error().Err(err).Msg("Failed to generate user ID")
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			token, err := a.jwtService.GenerateToken(userID)
			if err != nil {
				log.Error().Err(err).Msg("Failed to generate token")
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     AuthCookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   int(auth.TokenLifetime.Seconds()),
			})
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests without a valid token.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.userFromRequest(r)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *AuthMiddleware) userFromRequest(r *http.Request) (string, error) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		cookie, err := r.Cookie(AuthCookieName)
		if err != nil {
			return "", auth.ErrInvalidToken
		}
		token = cookie.Value
	}

	claims, err := a.jwtService.ValidateToken(token)
	if err != nil {
		return "", err
	}

	return claims.UserID, nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// GetUserIDFromContext extracts the authenticated user ID from context.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}
