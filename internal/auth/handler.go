package auth

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/music-spaces/pkg/apperr"
	"github.com/music-spaces/pkg/database"
	"github.com/music-spaces/pkg/jwt"
	"github.com/music-spaces/pkg/models"
	"github.com/music-spaces/pkg/redis"
)

// SecretHeader carries the shared secret of the trusted identity gateway.
const SecretHeader = "X-Identity-Secret"

type Handler struct {
	db           *database.DB
	issuer       *jwt.Issuer
	sessions     *redis.SessionStore
	sharedSecret string
	secureCookie bool
	log          *zap.Logger
}

func NewHandler(db *database.DB, issuer *jwt.Issuer, sessions *redis.SessionStore, sharedSecret string, secureCookie bool, log *zap.Logger) *Handler {
	return &Handler{
		db:           db,
		issuer:       issuer,
		sessions:     sessions,
		sharedSecret: sharedSecret,
		secureCookie: secureCookie,
		log:          log,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guards Guards) {
	auth := r.Group("/auth")
	{
		auth.POST("/identity", h.identity)
		auth.POST("/logout", guards.Unauthorized, h.logout)
	}
	r.GET("/user", guards.Unauthorized, h.user)
}

type IdentityRequest struct {
	Provider string `json:"provider" binding:"required,max=32"`
	Subject  string `json:"subject" binding:"required,max=191"`
	Email    string `json:"email" binding:"omitempty,email,max=191"`
	Name     string `json:"name" binding:"max=191"`
}

// identity maps a proof already verified by the gateway onto a local user
// and opens a session for it.
func (h *Handler) identity(c *gin.Context) {
	given := c.GetHeader(SecretHeader)
	if h.sharedSecret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(h.sharedSecret)) != 1 {
		apperr.Write(c, h.log, apperr.New(apperr.ErrForbidden, "Unknown identity gateway"))
		return
	}

	var req IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Write(c, h.log, apperr.Binding(err))
		return
	}

	ctx := c.Request.Context()
	user, err := h.db.UpsertIdentityUser(ctx, &models.User{
		ID:       uuid.NewString(),
		Provider: req.Provider,
		Subject:  req.Subject,
		Email:    req.Email,
		Name:     req.Name,
	})
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}

	token, claims, err := h.issuer.GenerateToken(user.ID)
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}

	session := &redis.SessionInfo{
		UserID:    user.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := h.sessions.StoreSession(ctx, claims.ID, session); err != nil {
		apperr.Write(c, h.log, err)
		return
	}

	h.log.Info("session opened",
		zap.String("user_id", user.ID),
		zap.String("provider", user.Provider))

	h.setCookie(c, token, int(time.Until(session.ExpiresAt).Seconds()))
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": session.ExpiresAt,
		"user":      user,
	})
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.sessions.DeleteSession(c.Request.Context(), c.GetString(sessionIDKey)); err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) user(c *gin.Context) {
	user, err := h.db.GetUserByID(c.Request.Context(), c.GetString(UserIDKey))
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
