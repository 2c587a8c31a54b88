package server

import (
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/remarks/internal/feedback"
	"github.com/MarcoPoloResearchLab/remarks/internal/normalize"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleCreateFeedback(c *gin.Context) {
	var request createFeedbackPayload
	if !h.bind(c, &request) {
		return
	}

	result, err := h.feedback.Create(c.Request.Context(), feedback.CreateRequest{
		Category:  feedback.Category(request.Category),
		Message:   request.Message,
		Email:     request.Email,
		PageURL:   request.PageURL,
		UserAgent: c.Request.UserAgent(),
		Decoy:     request.Website,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *httpHandler) handleListFeedback(c *gin.Context) {
	mode, err := feedback.ParseListMode(c.Query("mode"))
	if err != nil {
		h.respondValidation(c, map[string]string{"mode": "must be recent or all"})
		return
	}
	statuses, ok := h.queryStatuses(c)
	if !ok {
		return
	}
	limit, ok := h.queryLimit(c)
	if !ok {
		return
	}

	items, err := h.feedback.ListPublicSafe(c.Request.Context(), mode, statuses, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *httpHandler) handleModerationListFeedback(c *gin.Context) {
	limit, ok := h.queryLimit(c)
	if !ok {
		return
	}
	filter := feedback.ModerationFilter{Limit: limit}
	if raw := normalize.Trimmed(c.Query("status")); raw != "" {
		status, err := feedback.ParseStatus(raw)
		if err != nil {
			h.respondValidation(c, map[string]string{"status": "must be one of new, triaged, closed"})
			return
		}
		filter.Status = status
	}
	if raw := normalize.Trimmed(c.Query("category")); raw != "" {
		category, err := feedback.ParseCategory(raw)
		if err != nil {
			h.respondValidation(c, map[string]string{"category": "must be one of bug, feature, content, other"})
			return
		}
		filter.Category = category
	}

	items, err := h.feedback.ListForModeration(c.Request.Context(), c.GetHeader(headerAdminKey), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *httpHandler) handleUpdateFeedback(c *gin.Context) {
	var request updateFeedbackPayload
	if !h.bind(c, &request) {
		return
	}
	update := feedback.UpdateRequest{Message: request.Message}
	if request.Status != nil {
		status := feedback.Status(*request.Status)
		update.Status = &status
	}
	if err := h.feedback.Update(c.Request.Context(), c.GetHeader(headerAdminKey), c.Param("id"), update); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleDeleteFeedback(c *gin.Context) {
	if err := h.feedback.Delete(c.Request.Context(), c.GetHeader(headerAdminKey), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// queryStatuses accepts ?status=a,b as well as repeated ?status= parameters.
func (h *httpHandler) queryStatuses(c *gin.Context) ([]feedback.Status, bool) {
	var statuses []feedback.Status
	for _, value := range c.QueryArray("status") {
		for _, raw := range strings.Split(value, ",") {
			if normalize.Trimmed(raw) == "" {
				continue
			}
			status, err := feedback.ParseStatus(raw)
			if err != nil {
				h.respondValidation(c, map[string]string{"status": "must be one of new, triaged, closed"})
				return nil, false
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, true
}
