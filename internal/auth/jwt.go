package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rx3lixir/tempvoice/pkg/password"
)

const (
	ScopeAdmin = "admin"
	issuer     = "tempvoice"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Service issues and checks admin API tokens. There is a single admin
// account whose password hash comes from configuration.
type Service struct {
	secretKey           []byte
	accessTokenDuration time.Duration
	adminUser           string
	adminPasswordHash   string
}

// NewService creates a new JWT service
func NewService(secretKey string, accessDuration time.Duration, adminUser, adminPasswordHash string) *Service {
	return &Service{
		secretKey:           []byte(secretKey),
		accessTokenDuration: accessDuration,
		adminUser:           adminUser,
		adminPasswordHash:   adminPasswordHash,
	}
}

// Login checks the admin credentials and returns a fresh access token
func (s *Service) Login(username, pass string) (string, time.Time, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.adminUser)) == 1
	passOK := s.adminPasswordHash != "" && password.Verify(pass, s.adminPasswordHash)
	if !userOK || !passOK {
		return "", time.Time{}, ErrInvalidCredentials
	}

	return s.GenerateAccessToken(username)
}

// ValidateAccessToken validates and parses the JWT token
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("invalid access token: missing subject")
	}

	if claims.Scope != ScopeAdmin {
		return nil, fmt.Errorf("invalid access token: scope %q not allowed", claims.Scope)
	}

	return claims, nil
}

// GenerateAccessToken creates a short-lived access token
func (s *Service) GenerateAccessToken(subject string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(s.accessTokenDuration)

	claims := Claims{
		Scope: ScopeAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expires, nil
}
