package service

import (
	"fmt"
	"time"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceTokenType is the "type" claim carried by front-end service tokens.
const ServiceTokenType = "service"

// ServiceClaims are the claims of a service token issued to the chat front end.
type ServiceClaims struct {
	Sub  string `json:"sub"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 service tokens.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a token service signing with secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), now: time.Now}
}

// ValidateServiceToken parses and checks a bearer token.
func (s *TokenService) ValidateServiceToken(tokenString string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Reason: "invalid_token", Message: "Token inválido o expirado"}
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Reason: "invalid_claims", Message: "Token inválido"}
	}

	if claims.Type != ServiceTokenType {
		return nil, &domain.ErrUnauthorized{Reason: "wrong_type", Message: "Tipo de token inválido"}
	}

	return claims, nil
}

// IssueServiceToken signs a token for subject. A zero ttl issues a token
// without expiry.
func (s *TokenService) IssueServiceToken(subject string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := ServiceClaims{
		Sub:  subject,
		Type: ServiceTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   "card-advisor-bfa",
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
