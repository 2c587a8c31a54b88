package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/remarks/internal/claims"
	"github.com/MarcoPoloResearchLab/remarks/internal/comments"
	"github.com/MarcoPoloResearchLab/remarks/internal/feedback"
	"github.com/MarcoPoloResearchLab/remarks/internal/moderation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errMissingCommentService  = errors.New("comment service dependency required")
	errMissingFeedbackService = errors.New("feedback service dependency required")
	errMissingClaimLinker     = errors.New("claim linker dependency required")
)

// CommentService is the comment lifecycle as seen by the transport.
type CommentService interface {
	Create(ctx context.Context, request comments.CreateRequest) (comments.CreateResult, error)
	ListPublic(ctx context.Context, normalizedKey string) ([]comments.PublicComment, error)
	ListForModeration(ctx context.Context, credential string, filter comments.ModerationFilter) ([]comments.ModeratedComment, error)
	SetStatus(ctx context.Context, credential, id string, target moderation.Status) error
	Delete(ctx context.Context, credential, id string) error
	SelfEdit(ctx context.Context, id, newBody, presentedSecret string) error
	SelfDelete(ctx context.Context, id, presentedSecret string) error
}

// FeedbackService is the feedback lifecycle as seen by the transport.
type FeedbackService interface {
	Create(ctx context.Context, request feedback.CreateRequest) (feedback.CreateResult, error)
	ListPublicSafe(ctx context.Context, mode feedback.ListMode, statusFilter []feedback.Status, limit int) ([]feedback.PublicFeedback, error)
	ListForModeration(ctx context.Context, credential string, filter feedback.ModerationFilter) ([]feedback.ModeratedFeedback, error)
	Update(ctx context.Context, credential, id string, request feedback.UpdateRequest) error
	Delete(ctx context.Context, credential, id string) error
}

// ClaimLinker attaches anonymous comments to an authenticated identity.
type ClaimLinker interface {
	ClaimByEmail(ctx context.Context, credential, userID, email string) (claims.Result, error)
}

type Dependencies struct {
	Comments       CommentService
	Feedback       FeedbackService
	Claims         ClaimLinker
	HealthCheck    func(ctx context.Context) error
	AllowedOrigins []string
	// TrustedProxies lists the proxy addresses or CIDRs whose forwarding headers are believed.
	// Empty means the peer address is always the client address.
	TrustedProxies []string
	RateLimit      RateLimitConfig
	Clock          func() time.Time
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Comments == nil {
		return nil, errMissingCommentService
	}
	if deps.Feedback == nil {
		return nil, errMissingFeedbackService
	}
	if deps.Claims == nil {
		return nil, errMissingClaimLinker
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		comments:  deps.Comments,
		feedback:  deps.Feedback,
		claims:    deps.Claims,
		health:    deps.HealthCheck,
		validator: newPayloadValidator(),
		logger:    logger,
	}
	limited := newClientLimiter(deps.RateLimit, deps.Clock).middleware(logger)

	router.GET("/healthz", handler.handleHealth)

	router.POST("/comments", limited, handler.handleCreateComment)
	router.GET("/comments", handler.handleListComments)
	router.PATCH("/comments/:id", handler.handleSelfEditComment)
	router.DELETE("/comments/:id", handler.handleSelfDeleteComment)

	router.POST("/feedback", limited, handler.handleCreateFeedback)
	router.GET("/feedback", handler.handleListFeedback)

	admin := router.Group("/admin")
	admin.GET("/comments", handler.handleModerationListComments)
	admin.PATCH("/comments/:id", handler.handleSetCommentStatus)
	admin.DELETE("/comments/:id", handler.handleModeratorDeleteComment)
	admin.GET("/feedback", handler.handleModerationListFeedback)
	admin.PATCH("/feedback/:id", handler.handleUpdateFeedback)
	admin.DELETE("/feedback/:id", handler.handleDeleteFeedback)

	router.POST("/internal/comments/claim", handler.handleClaimComments)

	return router, nil
}

type httpHandler struct {
	comments  CommentService
	feedback  FeedbackService
	claims    ClaimLinker
	health    func(ctx context.Context) error
	validator *payloadValidator
	logger    *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bind decodes the JSON body into payload, normalizes and validates it.
// It writes the 400 response itself and reports whether the handler may continue.
func (h *httpHandler) bind(c *gin.Context, payload normalizer) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		h.respondValidation(c, map[string]string{"body": "malformed JSON"})
		return false
	}
	fields, err := h.validator.check(payload)
	if err != nil {
		h.respondError(c, err)
		return false
	}
	if len(fields) > 0 {
		h.respondValidation(c, fields)
		return false
	}
	return true
}
