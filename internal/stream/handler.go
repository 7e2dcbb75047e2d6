package stream

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/music-spaces/internal/auth"
	"github.com/music-spaces/pkg/apperr"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guards auth.Guards) {
	spaces := r.Group("/spaces/:id")
	{
		spaces.POST("/streams", guards.Unauthorized, h.submit)
		spaces.GET("/streams", guards.Unauthorized, h.queue)
		spaces.DELETE("/streams/:streamId", guards.Forbidden, h.remove)
		spaces.POST("/streams/empty", guards.Forbidden, h.empty)
		spaces.GET("/next", guards.Forbidden, h.next)
	}

	streams := r.Group("/streams")
	{
		streams.GET("/my", guards.Forbidden, h.myStreams)
		streams.POST("/:id/upvote", guards.Forbidden, h.upvote)
		streams.POST("/:id/downvote", guards.Forbidden, h.downvote)
	}
}

type SubmitRequest struct {
	URL       string `json:"url" binding:"required,url,max=512"`
	CreatorID string `json:"creatorId" binding:"omitempty,max=36"`
}

func (h *Handler) submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Write(c, h.log, apperr.Binding(err))
		return
	}

	view, err := h.service.Submit(c.Request.Context(), c.GetString(auth.UserIDKey), SubmitInput{
		SpaceID:   c.Param("id"),
		CreatorID: req.CreatorID,
		URL:       req.URL,
	})
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stream added successfully",
		"stream":  view,
	})
}

func (h *Handler) queue(c *gin.Context) {
	state, err := h.service.Queue(c.Request.Context(), c.Param("id"), c.GetString(auth.UserIDKey))
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) myStreams(c *gin.Context) {
	views, err := h.service.MyStreams(c.Request.Context(), c.GetString(auth.UserIDKey))
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"streams": views})
}

func (h *Handler) upvote(c *gin.Context) {
	count, err := h.service.Upvote(c.Request.Context(), c.GetString(auth.UserIDKey), c.Param("id"))
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Upvoted successfully", "upvotes": count})
}

func (h *Handler) downvote(c *gin.Context) {
	count, err := h.service.Downvote(c.Request.Context(), c.GetString(auth.UserIDKey), c.Param("id"))
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Downvoted successfully", "upvotes": count})
}

func (h *Handler) remove(c *gin.Context) {
	err := h.service.Remove(c.Request.Context(), c.Param("id"), c.Param("streamId"), c.GetString(auth.UserIDKey))
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Song removed successfully"})
}

func (h *Handler) empty(c *gin.Context) {
	removed, err := h.service.Empty(c.Request.Context(), c.Param("id"), c.GetString(auth.UserIDKey))
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Queue is empty", "removed": removed})
}

func (h *Handler) next(c *gin.Context) {
	view, err := h.service.Advance(c.Request.Context(), c.Param("id"), c.GetString(auth.UserIDKey))
	if err != nil {
		apperr.Write(c, h.log, err)
		return
	}
	if view == nil {
		c.JSON(http.StatusOK, gin.H{"message": "Queue is empty", "stream": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Next stream set successfully", "stream": view})
}
