package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "orderdesk",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	operatorID := uuid.New()
	tenantID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		OperatorID: operatorID,
		TenantID:   tenantID,
		Role:       enums.OperatorRoleOwner,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.OperatorID != operatorID {
		t.Fatalf("expected operator_id %s, got %s", operatorID, claims.OperatorID)
	}
	if claims.TenantID != tenantID {
		t.Fatalf("tenant id not preserved")
	}
	if claims.Role != enums.OperatorRoleOwner {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		OperatorID: uuid.New(),
		TenantID:   uuid.New(),
		Role:       enums.OperatorRoleManager,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{
		OperatorID: uuid.New(),
		TenantID:   uuid.New(),
		Role:       enums.OperatorRoleStaff,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = ParseAccessToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseAccessTokenRequiresTenant(t *testing.T) {
	cfg := testJWTConfig()
	claims := AccessTokenClaims{
		OperatorID: uuid.New(),
		Role:       enums.OperatorRoleStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expected missing tenant error")
	}
}

func TestMintAccessTokenInvalidRole(t *testing.T) {
	payload := AccessTokenPayload{
		OperatorID: uuid.New(),
		TenantID:   uuid.New(),
		Role:       "",
	}
	if _, err := MintAccessToken(testJWTConfig(), time.Now(), payload); err == nil {
		t.Fatal("expected invalid role error")
	}
}

func TestParseAccessTokenRequiresOperatorAndExpiry(t *testing.T) {
	cfg := testJWTConfig()
	for name, claims := range map[string]AccessTokenClaims{
		"missing operator": {
			TenantID: uuid.New(),
			Role:     enums.OperatorRoleStaff,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    cfg.Issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		},
		"missing expiry": {
			OperatorID:       uuid.New(),
			TenantID:         uuid.New(),
			Role:             enums.OperatorRoleStaff,
			RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer},
		},
	} {
		signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
		if err != nil {
			t.Fatalf("%s: sign: %v", name, err)
		}
		if _, err := ParseAccessToken(cfg, signed); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}
