package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Bahdan321/Study-Practice-3-course/internal/config"
	apperrors "github.com/Bahdan321/Study-Practice-3-course/internal/errors"
	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID    = "userID"
	ContextRole      = "role"
	ContextSessionID = "sessionID"
)

const tokenIssuer = "fintrack-api"

// getJWTKey returns the JWT key from configuration
func getJWTKey() []byte {
	return []byte(config.Get().JWTSecret)
}

// AccessTokenTTL is the lifetime of issued access tokens.
func AccessTokenTTL() time.Duration {
	if d := config.Get().JWTExpirationDur; d > 0 {
		return d
	}
	return 15 * time.Minute
}

// JWTClaims represents the claims in the JWT. Every access token is bound to
// the session it was issued for.
type JWTClaims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// SessionChecker reports whether a session is still alive. The returned
// session carries its user, whose stored role is authoritative.
type SessionChecker interface {
	GetActiveSession(sessionID string) (*models.Session, error)
}

// GenerateAccessToken generates a short-lived JWT access token for a user's session.
func GenerateAccessToken(user *models.User, sessionID string) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		UserID:    user.ID,
		Role:      string(user.Role),
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTKey())
}

// ParseAccessToken validates the signature and expiry of an access token.
func ParseAccessToken(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return getJWTKey(), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" || claims.SessionID == "" {
		return nil, errors.New("invalid access token")
	}
	return claims, nil
}

func abortWithAppError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}

// AuthMiddleware verifies the bearer token, checks that its session has not
// been revoked and sets the user, role and session in the context.
func AuthMiddleware(sessions SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithAppError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Authorization header is required"))
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithAppError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid authorization header format"))
			return
		}

		claims, err := ParseAccessToken(parts[1])
		if err != nil {
			abortWithAppError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token"))
			return
		}

		session, err := sessions.GetActiveSession(claims.SessionID)
		if err != nil || session.User == nil || session.UserID != claims.UserID {
			abortWithAppError(c, apperrors.ErrInvalidSession)
			return
		}

		// A role change applies at once, not when the token expires.
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, string(session.User.Role))
		c.Set(ContextSessionID, claims.SessionID)
		c.Next()
	}
}
