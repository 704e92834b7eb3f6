package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
)

// ScopeBatch grants access to the rescore and profile rebuild endpoints.
const ScopeBatch = "aml:batch"

const tokenIssuer = "aml-risk-engine"

// ServiceClaims are the claims carried by service tokens.
type ServiceClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// SignServiceToken issues an HS256 token for subject with the batch scope.
func SignServiceToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", &domain.ErrValidation{Field: "jwt_secret", Message: "required"}
	}
	now := time.Now()
	claims := ServiceClaims{
		Scope: ScopeBatch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    tokenIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ValidateServiceToken parses tokenString and checks signature, expiry and scope.
// An empty secret rejects every token.
func ValidateServiceToken(secret []byte, tokenString string) (*ServiceClaims, error) {
	if len(secret) == 0 {
		return nil, &domain.ErrUnauthorized{Message: "service tokens are not configured"}
	}

	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Scope != ScopeBatch {
		return nil, &domain.ErrUnauthorized{Message: "token scope does not allow batch jobs"}
	}
	if claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "token has no subject"}
	}
	return claims, nil
}
