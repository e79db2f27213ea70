// Package auth verifies the operator tokens issued by the account service.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
)

const clockLeeway = 30 * time.Second

var signingMethod = jwt.SigningMethodHS256

// AccessTokenPayload is what MintAccessToken signs.
type AccessTokenPayload struct {
	OperatorID uuid.UUID
	TenantID   uuid.UUID
	Role       enums.OperatorRole
	JTI        string
}

// AccessTokenClaims is the operator JWT body. One token is bound to exactly one
// tenant; switching tenants means a new token.
type AccessTokenClaims struct {
	OperatorID uuid.UUID          `json:"operator_id"`
	TenantID   uuid.UUID          `json:"tenant_id"`
	Role       enums.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks of jwt.Parser.
func (c AccessTokenClaims) Validate() error {
	if c.TenantID == uuid.Nil {
		return errors.New("token missing tenant_id")
	}
	if c.OperatorID == uuid.Nil {
		return errors.New("token missing operator_id")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("token carries invalid role %q", c.Role)
	}
	return nil
}

// MintAccessToken signs payload with the configured TTL. Production tokens come from
// the account service; this serves tooling and tests.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("jwt expiration minutes must be positive")
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		OperatorID: payload.OperatorID,
		TenantID:   payload.TenantID,
		Role:       payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   payload.OperatorID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        jti,
		},
	}
	if err := claims.Validate(); err != nil {
		return "", err
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry and returns the claims.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
	)
	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}
