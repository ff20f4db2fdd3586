package middleware

import (
	"context"
	"net/http"
	"strings"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/actor"
	"campusdrive/internal/http/response"
	"campusdrive/internal/security"
)

type contextKey string

const (
	ContextActorKey     contextKey = "actor"
	ContextRequestIDKey contextKey = "request_id"
)

type AuthMiddleware struct {
	jwt *security.JWTProvider
}

func NewAuthMiddleware(jwt *security.JWTProvider) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Error(w, common.NewError(common.CodeUnauthorized, "missing authorization header", nil))
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Error(w, common.NewError(common.CodeUnauthorized, "invalid authorization header", nil))
			return
		}
		a, err := m.jwt.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(w, common.NewError(common.CodeUnauthorized, "invalid token", err))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
	})
}

func WithActor(ctx context.Context, a actor.Actor) context.Context {
	return context.WithValue(ctx, ContextActorKey, a)
}

func ActorFromContext(ctx context.Context) (actor.Actor, bool) {
	a, ok := ctx.Value(ContextActorKey).(actor.Actor)
	return a, ok
}
