// Package clientauth authenticates third-party client systems. The order
// core never talks to this package directly; it only reads the client system
// the middleware resolved into the request context.
package clientauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Client is a third-party system allowed to create barcode payments.
type Client struct {
	ID         int64     `json:"id"`
	ClientID   string    `json:"client_id"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"-"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Claims represents JWT token claims issued to a client system.
type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// TokenGenerator creates and validates client tokens.
type TokenGenerator interface {
	GenerateAccessToken(clientID string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

type Tokens struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type JWTTokenGenerator struct {
	Secret   []byte
	TokenTTL time.Duration
}
