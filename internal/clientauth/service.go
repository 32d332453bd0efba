package clientauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/yuchialin/cvspay/internal"
)

// ClientRepository looks up client systems by their public id.
type ClientRepository interface {
	GetByClientID(clientID string) (*Client, error)
}

// ServiceAPI is what the HTTP handler and the auth middleware consume.
type ServiceAPI interface {
	Authenticate(dto TokenRequestDTO) (Tokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
}

type Service struct {
	clientRepo     ClientRepository
	tokenGenerator TokenGenerator
	bcryptCost     int
}

func NewService(clientRepo ClientRepository, tokenGen TokenGenerator, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		clientRepo:     clientRepo,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
	}
}

func NewJWTTokenGenerator(secret string, tokenTTL time.Duration) *JWTTokenGenerator {
	if tokenTTL == 0 {
		tokenTTL = time.Hour
	}
	return &JWTTokenGenerator{
		Secret:   []byte(secret),
		TokenTTL: tokenTTL,
	}
}

// Authenticate validates a client id and API key pair and issues a token.
func (s *Service) Authenticate(dto TokenRequestDTO) (Tokens, error) {
	if err := dto.Validate(); err != nil {
		return Tokens{}, err
	}

	client, err := s.clientRepo.GetByClientID(dto.ClientID)
	if err != nil {
		return Tokens{}, internal.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.APIKeyHash), []byte(dto.APIKey)); err != nil {
		return Tokens{}, internal.ErrInvalidCredentials
	}

	if !client.Active {
		return Tokens{}, internal.ErrClientInactive
	}

	accessToken, err := s.tokenGenerator.GenerateAccessToken(client.ClientID)
	if err != nil {
		return Tokens{}, err
	}

	ttl := time.Hour
	if gen, ok := s.tokenGenerator.(*JWTTokenGenerator); ok {
		ttl = gen.TokenTTL
	}
	return Tokens{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
	}, nil
}

// ValidateAccessToken validates a token and confirms the client still exists
// and is active.
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.tokenGenerator.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	client, err := s.clientRepo.GetByClientID(claims.ClientID)
	if err != nil {
		return nil, internal.ErrInvalidToken
	}
	if !client.Active {
		return nil, internal.ErrClientInactive
	}

	return claims, nil
}

// HashAPIKey creates a bcrypt hash for storing a new client API key.
func (s *Service) HashAPIKey(apiKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (j *JWTTokenGenerator) GenerateAccessToken(clientID string) (string, error) {
	expiresAt := time.Now().Add(j.TokenTTL)

	claims := &Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   clientID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, internal.ErrInvalidToken
}
