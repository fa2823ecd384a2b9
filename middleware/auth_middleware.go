package middleware

import (
	"net/http"
	"strings"

	"github.com/glazeworks/actiongate/models"
	"github.com/glazeworks/actiongate/utils"
	"go.uber.org/zap"
)

// TokenVerifier defines the interface for verifying delegation tokens
type TokenVerifier interface {
	// Verify parses a delegation token and returns the actor context it carries
	Verify(token string) (*models.ActorContext, error)
}

// AuthMiddleware resolves the actor context from the delegation token on
// each request.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// RequireActor is a middleware that requires a valid delegation token
func (m *AuthMiddleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractToken(r)
		if token == "" {
			m.logger.Warn("missing delegation token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		actor, err := m.verifier.Verify(token)
		if err != nil {
			m.logger.Warn("delegation token verification failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired delegation token")
			return
		}

		ctx = WithActor(ctx, actor)

		m.logger.Debug("actor resolved",
			zap.String("request_id", requestID),
			zap.String("actor_id", actor.ActorID),
			zap.String("actor_type", string(actor.ActorType)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken extracts the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
