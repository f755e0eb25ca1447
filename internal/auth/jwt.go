// Package auth выпускает и проверяет JWT операторов и игроков
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer значение iss в токенах сервиса
const Issuer = "vertical-border"

var (
	ErrInvalidToken = errors.New("недействительный токен")
	ErrWeakSecret   = errors.New("secret key must be at least 32 bytes")
)

// Claims represents JWT claims
type Claims struct {
	ActorID string `json:"actor_id"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenService подписывает и проверяет токены общим HMAC-секретом
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService принимает секрет в base64 (не короче 32 байт).
// Пустой секрет заменяется случайным: токены живут до перезапуска.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if secret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("генерация секрета: %w", err)
		}
		return &TokenService{secret: key, ttl: ttl}, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("секрет JWT: %w", err)
	}
	if len(decoded) < 32 {
		return nil, ErrWeakSecret
	}
	return &TokenService{secret: decoded, ttl: ttl}, nil
}

// Generate creates a signed token for the actor
func (s *TokenService) Generate(actorID string, isAdmin bool) (string, error) {
	now := time.Now()
	claims := &Claims{
		ActorID: actorID,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Subject:   actorID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate checks token validity and returns its claims
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(Issuer))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ActorID == "" {
		return nil, fmt.Errorf("%w: пустой actor_id", ErrInvalidToken)
	}
	return claims, nil
}

// GenerateSecureSecret generates a new secure secret key
func GenerateSecureSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
