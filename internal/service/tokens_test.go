package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
	"github.com/boddenberg/aml-risk-engine/internal/service"
)

func TestServiceToken_RoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := service.SignServiceToken(secret, "scheduler", time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	claims, err := service.ValidateServiceToken(secret, token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.Subject != "scheduler" || claims.Scope != service.ScopeBatch {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestServiceToken_Rejected(t *testing.T) {
	secret := []byte("test-secret")
	valid, _ := service.SignServiceToken(secret, "scheduler", time.Minute)
	expired, _ := service.SignServiceToken(secret, "scheduler", -time.Minute)
	wrongScope, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, service.ServiceClaims{
		Scope: "read",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "scheduler",
			Issuer:    "aml-risk-engine",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString(secret)

	tests := []struct {
		name   string
		secret []byte
		token  string
	}{
		{"wrong secret", []byte("other"), valid},
		{"expired", secret, expired},
		{"wrong scope", secret, wrongScope},
		{"garbage", secret, "not-a-jwt"},
		{"no secret configured", nil, valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ValidateServiceToken(tt.secret, tt.token)
			var unauthorized *domain.ErrUnauthorized
			if !errors.As(err, &unauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestSignServiceToken_RequiresSecret(t *testing.T) {
	_, err := service.SignServiceToken(nil, "scheduler", time.Minute)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
