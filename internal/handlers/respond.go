package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

// respondError writes err in the {"error": {kind, code, message, details}}
// shape. Errors outside the domain are logged and answered with a generic 500.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	if e, ok := apperrors.As(err); ok {
		c.JSON(apperrors.HTTPStatus(e), gin.H{"error": e})
		return
	}

	log.WithError(err).WithFields(map[string]interface{}{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
		"kind":    "INTERNAL",
		"code":    "INTERNAL_ERROR",
		"message": "Internal server error",
	}})
}

// bindJSON decodes the body into dst and answers 400 on failure.
func bindJSON(c *gin.Context, log *logger.Logger, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, log, apperrors.Validation("invalid request body", map[string]interface{}{"body": err.Error()}))
		return false
	}
	return true
}

// paramID parses the named path parameter as a uuid and answers 400 on failure.
func paramID(c *gin.Context, log *logger.Logger, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, log, apperrors.Validation("invalid id", map[string]interface{}{name: c.Param(name)}))
		return uuid.Nil, false
	}
	return id, true
}

func validationErr(message, field string, cause error) error {
	return apperrors.Validation(message, map[string]interface{}{field: cause.Error()})
}
