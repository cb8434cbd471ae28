package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"github.com/boddenberg/card-advisor-bfa-go/internal/service"
	"go.uber.org/zap"
)

type contextKey string

const callerKey contextKey = "caller"

// ServiceAuthMiddleware only lets through requests carrying a valid service
// token. The token subject is stored as the caller of the request.
func ServiceAuthMiddleware(tokens *service.TokenService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(tokens, r)
			if err != nil {
				reason := "unauthorized"
				var unauth *domain.ErrUnauthorized
				if errors.As(err, &unauth) && unauth.Reason != "" {
					reason = unauth.Reason
				}
				logger.Warn("service token rejected",
					zap.String("reason", reason),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), claims.Sub)))
		})
	}
}

func authenticate(tokens *service.TokenService, r *http.Request) (*service.ServiceClaims, error) {
	raw, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}
	return tokens.ValidateServiceToken(raw)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" value.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", &domain.ErrUnauthorized{Reason: "missing_token", Message: "Token de autenticación no proporcionado"}
	}
	scheme, raw, ok := strings.Cut(header, " ")
	raw = strings.TrimSpace(raw)
	if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
		return "", &domain.ErrUnauthorized{Reason: "bad_format", Message: "Formato de token inválido"}
	}
	return raw, nil
}

func withCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext returns the subject of the service token that
// authenticated the request, or "" when auth is disabled.
func CallerFromContext(ctx context.Context) string {
	v, _ := ctx.Value(callerKey).(string)
	return v
}
