package facerecognition

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"summercamp_backend/platform/config"
)

// Service names carried in the "service" claim.
const (
	ServiceFacePreload = "face-preload"
	ServiceFaceUnload  = "face-unload"
	ServiceRecognition = "attendance-recognition"
)

// TokenIssuer signs short-lived HS256 service tokens.
type TokenIssuer struct {
	secret  []byte
	subject string
	ttl     time.Duration
	now     func() time.Time
}

// NewTokenIssuer builds an issuer from the shared service token settings.
func NewTokenIssuer(cfg config.ServiceTokenConfig) *TokenIssuer {
	ttl := cfg.GetServiceTokenTTL()
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenIssuer{
		secret:  []byte(cfg.GetServiceTokenSecret()),
		subject: cfg.GetServiceTokenSubject(),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue returns a signed token for service.
func (i *TokenIssuer) Issue(service string) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("service token secret is not configured")
	}
	now := i.now()
	claims := jwt.MapClaims{
		"sub":     i.subject,
		"service": service,
		"iat":     now.Unix(),
		"exp":     now.Add(i.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
