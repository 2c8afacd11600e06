// Package auth mints and validates the register session tokens carried on
// every authenticated API request. A token binds a register to the employee
// signed in at it.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// RegisterSessionPayload captures the data available when minting a token.
type RegisterSessionPayload struct {
	RegisterID   string
	EmployeeID   string
	EmployeeName string
}

// RegisterSessionClaims is the typed JWT issued to registers.
type RegisterSessionClaims struct {
	RegisterID   string `json:"register_id"`
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name,omitempty"`
	jwt.RegisteredClaims
}

// MintRegisterToken issues a signed JWT for the payload using the configured TTL.
func MintRegisterToken(cfg config.JWTConfig, now time.Time, payload RegisterSessionPayload) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	if payload.RegisterID == "" {
		return "", fmt.Errorf("register id is required")
	}
	if payload.EmployeeID == "" {
		return "", fmt.Errorf("employee id is required")
	}

	claims := RegisterSessionClaims{
		RegisterID:   payload.RegisterID,
		EmployeeID:   payload.EmployeeID,
		EmployeeName: payload.EmployeeName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseRegisterToken validates the JWT string and returns typed claims.
func ParseRegisterToken(cfg config.JWTConfig, tokenString string) (*RegisterSessionClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &RegisterSessionClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
