package space

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/music-spaces/internal/auth"
	"github.com/music-spaces/pkg/apperr"
	"github.com/music-spaces/pkg/models"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guards auth.Guards) {
	spaces := r.Group("/spaces")
	{
		spaces.POST("", guards.Forbidden, h.createSpace)
		spaces.GET("", guards.Unauthorized, h.listSpaces)
		spaces.POST("/join", guards.Unauthorized, h.joinSpace)
		spaces.GET("/:id", guards.Unauthorized, h.getSpace)
		spaces.DELETE("/:id", guards.Forbidden, h.deleteSpace)
		spaces.GET("/:id/share", guards.Unauthorized, h.shareSpace)
	}
}

type CreateSpaceRequest struct {
	Name string `json:"spaceName" binding:"required,min=3,max=50"`
}

// SpaceView is a space as seen by one caller.
type SpaceView struct {
	models.Space
	IsHost bool `json:"isHost"`
}

func (h *Handler) createSpace(c *gin.Context) {
	var req CreateSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Write(c, h.log, apperr.Binding(err))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		apperr.Write(c, h.log, apperr.Field("spaceName", "must not be blank"))
		return
	}

	userID := c.GetString(auth.UserIDKey)
	space, err := h.service.CreateSpace(c.Request.Context(), userID, name)
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Space created successfully", "space": space})
}

func (h *Handler) listSpaces(c *gin.Context) {
	spaces, err := h.service.ListSpaces(c.Request.Context(), c.GetString(auth.UserIDKey))
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spaces": spaces})
}

func (h *Handler) getSpace(c *gin.Context) {
	space, err := h.service.GetSpace(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, SpaceView{
		Space:  *space,
		IsHost: space.HostID == c.GetString(auth.UserIDKey),
	})
}

func (h *Handler) deleteSpace(c *gin.Context) {
	userID := c.GetString(auth.UserIDKey)
	if err := h.service.DeleteSpace(c.Request.Context(), c.Param("id"), userID); err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Space deleted successfully"})
}

func (h *Handler) joinSpace(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		apperr.Write(c, h.log, apperr.Field("code", "is required"))
		return
	}
	space, err := h.service.JoinSpace(c.Request.Context(), code)
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spaceId": space.ID})
}

func (h *Handler) shareSpace(c *gin.Context) {
	code, err := h.service.ShareCode(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sharableId": code})
}
