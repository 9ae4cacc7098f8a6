// Package auth verifies the bearer tokens minted by the hosted sign-in
// provider. Tokens are HS256 JWTs whose subject is the user id.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"weboptimizer-backend/internal/config"
	"weboptimizer-backend/pkg/logger"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

const userIDKey = "auth.user_id"

type Authenticator struct {
	secret    []byte
	issuer    string
	enabled   bool
	anonymous string
}

func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		enabled:   cfg.Enabled,
		anonymous: cfg.AnonymousUser,
	}
}

// Issue signs a token for userID. Used by the token command and tests; in
// production tokens come from the sign-in provider.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("auth secret is empty")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify returns the user id carried by token.
func (a *Authenticator) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Middleware resolves the caller. With auth disabled every request runs as
// the anonymous user.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.enabled {
			c.Set(userIDKey, a.anonymous)
			c.Next()
			return
		}

		token, err := bearerToken(c.Request)
		if err == nil {
			var userID string
			userID, err = a.Verify(token)
			if err == nil {
				c.Set(userIDKey, userID)
				c.Next()
				return
			}
		}

		logger.WithFields(logrus.Fields{"path": c.Request.URL.Path}).Warnf("rejected request: %v", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	}
}

// UserID is the caller resolved by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// bearerToken reads the Authorization header, or the token query parameter
// for clients that cannot set headers (EventSource, WebSocket).
func bearerToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", ErrMissingToken
		}
		return token, nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}
