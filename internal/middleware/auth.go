package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kaskelas/backend/internal/config"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/services"
)

type contextKey string

const actorKey contextKey = "actor"

// Claims is the access token payload.
type Claims struct {
	NIM     string      `json:"nim,omitempty"`
	Name    string      `json:"name,omitempty"`
	Role    models.Role `json:"role"`
	ClassID string      `json:"classId"`
	jwt.RegisteredClaims
}

// Auth accepts an HS256 access token from the Authorization header or the access cookie
// and stores the caller as a services.Actor on the request context.
func Auth(cfg config.JWTConfig) func(http.Handler) http.Handler {
	secret := []byte(cfg.SecretKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := tokenFromRequest(r, cfg.CookieName)
			if err != nil {
				services.SendStatusError(w, http.StatusUnauthorized, services.CodeUnauthorized, err.Error())
				return
			}

			actor, err := validateToken(token, secret)
			if err != nil {
				services.SendStatusError(w, http.StatusUnauthorized, services.CodeUnauthorized, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func tokenFromRequest(r *http.Request, cookieName string) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", errors.New("Invalid authorization header format")
		}
		return parts[1], nil
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", errors.New("Authorization header required")
}

func validateToken(tokenString string, secret []byte) (services.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return services.Actor{}, err
	}
	if !token.Valid {
		return services.Actor{}, errors.New("invalid token")
	}

	if claims.Subject == "" {
		return services.Actor{}, errors.New("token has no subject")
	}
	if claims.Role != models.RoleStudent && claims.Role != models.RoleBendahara {
		return services.Actor{}, errors.New("token has unknown role")
	}
	return services.Actor{UserID: claims.Subject, Role: claims.Role, ClassID: claims.ClassID}, nil
}

// IssueToken signs an access token for the actor.
func IssueToken(secret string, actor services.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:    actor.Role,
		ClassID: actor.ClassID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func WithActor(ctx context.Context, actor services.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFrom(ctx context.Context) (services.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(services.Actor)
	return actor, ok
}

// RequireTreasurer rejects callers who are not bendahara. Use after Auth.
func RequireTreasurer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		if !ok {
			services.SendStatusError(w, http.StatusUnauthorized, services.CodeUnauthorized, "Authentication required")
			return
		}
		if !actor.IsTreasurer() {
			services.SendStatusError(w, http.StatusForbidden, services.CodeForbidden, "Treasurer role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
