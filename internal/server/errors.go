package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/remarks/internal/apperr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorInvalidRequest = "invalid_request"
	errorUnauthorized   = "unauthorized"
	errorForbidden      = "forbidden"
	errorNotFound       = "not_found"
	errorNotConfigured  = "not_configured"
	errorInternal       = "internal_error"
	errorRateLimited    = "rate_limited"
)

func (h *httpHandler) respondValidation(c *gin.Context, fields map[string]string) {
	if fields == nil {
		fields = map[string]string{}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": errorInvalidRequest, "fields": fields})
}

// respondError maps an error kind to a status. Details beyond the kind are only logged.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	errors.As(err, &appErr)

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		var fields map[string]string
		if appErr != nil {
			fields = appErr.Fields()
		}
		h.respondValidation(c, fields)
	case apperr.KindUnauthorized:
		h.logger.Warn("credential rejected", zap.String("path", c.FullPath()), zap.String("code", codeOf(appErr)))
		c.JSON(http.StatusUnauthorized, gin.H{"error": errorUnauthorized})
	case apperr.KindForbidden:
		h.logger.Warn("ownership proof rejected", zap.String("path", c.FullPath()), zap.String("code", codeOf(appErr)))
		c.JSON(http.StatusForbidden, gin.H{"error": errorForbidden})
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": errorNotFound})
	case apperr.KindNotConfigured:
		h.logger.Warn("operator credential not configured", zap.String("code", codeOf(appErr)))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errorNotConfigured})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorInternal})
	}
}

func codeOf(appErr *apperr.Error) string {
	if appErr == nil {
		return ""
	}
	return appErr.Code()
}
