package server

import (
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/remarks/internal/comments"
	"github.com/MarcoPoloResearchLab/remarks/internal/moderation"
	"github.com/MarcoPoloResearchLab/remarks/internal/normalize"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleCreateComment(c *gin.Context) {
	var request createCommentPayload
	if !h.bind(c, &request) {
		return
	}

	result, err := h.comments.Create(c.Request.Context(), comments.CreateRequest{
		NormalizedKey: request.NormalizedKey,
		Brand:         request.Brand,
		Model:         request.Model,
		Type:          comments.Type(request.Type),
		Body:          request.Body,
		AuthorName:    request.AuthorName,
		AuthorEmail:   request.AuthorEmail,
		Decoy:         request.Website,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	items, err := h.comments.ListPublic(c.Request.Context(), c.Query("normalizedKey"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *httpHandler) handleSelfEditComment(c *gin.Context) {
	var request editCommentPayload
	if !h.bind(c, &request) {
		return
	}
	if err := h.comments.SelfEdit(c.Request.Context(), c.Param("id"), request.Body, c.GetHeader(headerOwnerToken)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleSelfDeleteComment(c *gin.Context) {
	if err := h.comments.SelfDelete(c.Request.Context(), c.Param("id"), c.GetHeader(headerOwnerToken)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleModerationListComments(c *gin.Context) {
	limit, ok := h.queryLimit(c)
	if !ok {
		return
	}
	filter := comments.ModerationFilter{
		NormalizedKey: c.Query("normalizedKey"),
		Limit:         limit,
	}
	if raw := normalize.Trimmed(c.Query("status")); raw != "" {
		status, err := moderation.ParseStatus(raw)
		if err != nil {
			h.respondValidation(c, map[string]string{"status": "must be one of pending, visible, hidden"})
			return
		}
		filter.Status = status
	}

	items, err := h.comments.ListForModeration(c.Request.Context(), c.GetHeader(headerAdminKey), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *httpHandler) handleSetCommentStatus(c *gin.Context) {
	var request commentStatusPayload
	if !h.bind(c, &request) {
		return
	}
	err := h.comments.SetStatus(c.Request.Context(), c.GetHeader(headerAdminKey), c.Param("id"), moderation.Status(request.Status))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleModeratorDeleteComment(c *gin.Context) {
	if err := h.comments.Delete(c.Request.Context(), c.GetHeader(headerAdminKey), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleClaimComments(c *gin.Context) {
	var request claimPayload
	if !h.bind(c, &request) {
		return
	}
	result, err := h.claims.ClaimByEmail(c.Request.Context(), serviceCredential(c), request.UserID, request.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// queryLimit parses ?limit=. Absent means zero, which services replace with their default.
func (h *httpHandler) queryLimit(c *gin.Context) (int, bool) {
	raw := normalize.Trimmed(c.Query("limit"))
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		h.respondValidation(c, map[string]string{"limit": "must be a non-negative integer"})
		return 0, false
	}
	return limit, true
}
