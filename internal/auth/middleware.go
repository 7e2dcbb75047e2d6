package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/music-spaces/pkg/apperr"
	"github.com/music-spaces/pkg/jwt"
	"github.com/music-spaces/pkg/redis"
)

const (
	// UserIDKey is the gin context key holding the authenticated user id.
	UserIDKey    = "user_id"
	sessionIDKey = "session_id"
	CookieName   = "auth_token"
)

// Guards picks the auth check per route. They differ only in the status an
// anonymous caller receives.
type Guards struct {
	Unauthorized gin.HandlerFunc
	Forbidden    gin.HandlerFunc
}

type Middleware struct {
	issuer   *jwt.Issuer
	sessions *redis.SessionStore
	log      *zap.Logger
}

func NewMiddleware(issuer *jwt.Issuer, sessions *redis.SessionStore, log *zap.Logger) *Middleware {
	return &Middleware{issuer: issuer, sessions: sessions, log: log}
}

func (m *Middleware) Guards() Guards {
	return Guards{
		Unauthorized: m.Require(http.StatusUnauthorized),
		Forbidden:    m.Require(http.StatusForbidden),
	}
}

// Require authenticates the request from the auth_token cookie or a bearer
// header and answers status when there is no live session.
func (m *Middleware) Require(status int) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(status, gin.H{"error": "UNAUTHENTICATED", "message": "Unauthenticated"})
			return
		}

		claims, err := m.issuer.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(status, gin.H{"error": "UNAUTHENTICATED", "message": "Invalid token"})
			return
		}

		session, err := m.sessions.GetSession(c.Request.Context(), claims.ID)
		if errors.Is(err, redis.ErrSessionNotFound) {
			c.AbortWithStatusJSON(status, gin.H{"error": "UNAUTHENTICATED", "message": "Session expired"})
			return
		}
		if err != nil {
			apperr.Write(c, m.log, err)
			return
		}
		if session.UserID != claims.UserID {
			c.AbortWithStatusJSON(status, gin.H{"error": "UNAUTHENTICATED", "message": "Invalid token"})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(sessionIDKey, claims.ID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
