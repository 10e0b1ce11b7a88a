package httpkit

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"summercamp_backend/platform/config"
	"summercamp_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ContextUserIDKey holds the staff subject after AuthRequired.
	ContextUserIDKey = "userID"
	// ContextRolesKey holds the staff roles after AuthRequired.
	ContextRolesKey = "roles"
	// ContextServiceKey holds the calling service after ServiceTokenRequired.
	ContextServiceKey = "serviceName"
)

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// AuthRequired accepts HS256 access tokens signed with the staff JWT secret.
// The token must carry type=access and a subject.
func AuthRequired(cfg config.JWTConfig) gin.HandlerFunc {
	secret := []byte(cfg.GetJWTAccessSecret())
	return func(c *gin.Context) {
		claims, err := bearerClaims(c.Request, secret)
		if err != nil {
			unauthorized(c, err)
			return
		}
		subject, _ := claims["sub"].(string)
		if kind, _ := claims["type"].(string); kind != "access" || strings.TrimSpace(subject) == "" {
			unauthorized(c, errInvalidToken)
			return
		}

		c.Set(ContextUserIDKey, subject)
		c.Set(ContextRolesKey, rolesClaim(claims["roles"]))
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.UserIDKey, subject))
		c.Next()
	}
}

// ServiceTokenRequired accepts tokens minted for other services, such as the
// face recognition callback. The "service" claim names the caller.
func ServiceTokenRequired(cfg config.ServiceTokenConfig) gin.HandlerFunc {
	secret := []byte(cfg.GetServiceTokenSecret())
	return func(c *gin.Context) {
		claims, err := bearerClaims(c.Request, secret)
		if err != nil {
			unauthorized(c, err)
			return
		}
		service, _ := claims["service"].(string)
		if strings.TrimSpace(service) == "" {
			unauthorized(c, errInvalidToken)
			return
		}

		c.Set(ContextServiceKey, service)
		c.Next()
	}
}

// RequireRole must run after AuthRequired.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, _ := c.Get(ContextRolesKey)
		if list, ok := roles.([]string); ok && slices.Contains(list, role) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

func bearerClaims(r *http.Request, secret []byte) (jwt.MapClaims, error) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, errMissingToken
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

func rolesClaim(v interface{}) []string {
	var roles []string
	switch typed := v.(type) {
	case []string:
		roles = append(roles, typed...)
	case []interface{}:
		for _, item := range typed {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
	}
	return roles
}

func unauthorized(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
}
