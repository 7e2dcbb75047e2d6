package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type kindInfo struct {
	status  int
	code    string
	message string
}

var kinds = []struct {
	err  error
	info kindInfo
}{
	{ErrUnauthorized, kindInfo{http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized"}},
	{ErrForbidden, kindInfo{http.StatusForbidden, "FORBIDDEN", "Forbidden"}},
	{ErrNotFound, kindInfo{http.StatusNotFound, "NOT_FOUND", "Not found"}},
	{ErrValidation, kindInfo{http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request"}},
	{ErrConflict, kindInfo{http.StatusConflict, "CONFLICT", "Conflict"}},
	{ErrRateLimited, kindInfo{http.StatusBadRequest, "RATE_LIMITED", "Too many submissions"}},
	{ErrCapacityExceeded, kindInfo{http.StatusBadRequest, "CAPACITY_EXCEEDED", "Space is full"}},
	{ErrDuplicate, kindInfo{http.StatusBadRequest, "DUPLICATE", "This song was already added recently"}},
	{ErrLimitReached, kindInfo{http.StatusTooManyRequests, "LIMIT_REACHED", "Limit reached"}},
	{ErrInvalidURL, kindInfo{http.StatusBadRequest, "INVALID_URL", "Invalid URL"}},
	{ErrNotMusic, kindInfo{http.StatusBadRequest, "NOT_MUSIC", "Not a music video"}},
	{ErrResolutionFailed, kindInfo{http.StatusBadGateway, "UPSTREAM_FAILURE", "Could not look up this track, try again later"}},
}

var internal = kindInfo{http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Something went wrong"}

func lookup(err error) (kindInfo, bool) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.info, true
		}
	}
	return internal, false
}

// Status reports the HTTP status an error maps to.
func Status(err error) int {
	info, _ := lookup(err)
	return info.status
}

// Write aborts the request with the JSON body for err. Upstream and unknown
// failures are logged and answered without internal detail.
func Write(c *gin.Context, log *zap.Logger, err error) {
	info, known := lookup(err)

	if !known || errors.Is(err, ErrResolutionFailed) {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.AbortWithStatusJSON(info.status, gin.H{"error": info.code, "message": info.message})
		return
	}

	body := gin.H{"error": info.code, "message": info.message}
	var ae *Error
	if errors.As(err, &ae) {
		body["message"] = ae.Message
		if ae.Field != "" {
			body["field"] = ae.Field
		}
	}
	c.AbortWithStatusJSON(info.status, body)
}

// Binding converts a gin binding failure into a validation error.
func Binding(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &Error{Kind: ErrValidation, Field: fe.Field(), Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag())}
	}
	return &Error{Kind: ErrValidation, Message: "malformed request body"}
}
