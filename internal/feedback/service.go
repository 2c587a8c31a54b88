package feedback

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/remarks/internal/apperr"
	"github.com/MarcoPoloResearchLab/remarks/internal/auth"
	"github.com/MarcoPoloResearchLab/remarks/internal/ids"
	"github.com/MarcoPoloResearchLab/remarks/internal/normalize"
	"github.com/MarcoPoloResearchLab/remarks/internal/spamguard"
	"go.uber.org/zap"
)

const (
	PublicListDefault     = 50
	PublicListCap         = 200
	ModerationListDefault = 100
	ModerationListCap     = 500
)

const (
	opServiceNew        = "feedback.service.new"
	opCreate            = "feedback.create"
	opListPublicSafe    = "feedback.list_public_safe"
	opListForModeration = "feedback.list_for_moderation"
	opUpdate            = "feedback.update"
	opDelete            = "feedback.delete"

	reasonMissingStore = "missing_store"
	reasonIDFailed     = "id_generation_failed"
	reasonInsertFailed = "insert_failed"
	reasonQueryFailed  = "query_failed"
	reasonUpdateFailed = "update_failed"
	reasonDeleteFailed = "delete_failed"
	reasonNotFound     = "not_found"
)

var (
	errMissingStore      = errors.New("feedback store is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// ServiceConfig describes the dependencies of the feedback lifecycle manager.
type ServiceConfig struct {
	Store      Store
	Moderators auth.Authorizer
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service creates and triages feedback records.
type Service struct {
	store      Store
	moderators auth.Authorizer
	idProvider ids.Provider
	clock      func() time.Time
	logger     *zap.Logger
}

// NewService validates cfg and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, apperr.New(apperr.KindUnexpected, opServiceNew, reasonMissingStore, errMissingStore)
	}
	if cfg.IDProvider == nil {
		return nil, apperr.New(apperr.KindUnexpected, opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      cfg.Store,
		moderators: cfg.Moderators,
		idProvider: cfg.IDProvider,
		clock:      clock,
		logger:     logger,
	}, nil
}

// CreateRequest carries a feedback submission.
type CreateRequest struct {
	Category  Category
	Message   string
	Email     string
	PageURL   string
	UserAgent string
	Decoy     string
}

// CreateResult acknowledges a submission.
type CreateResult struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// Create stores a feedback record with status new.
// Submissions that fill the decoy field receive an indistinguishable result and are not stored.
func (s *Service) Create(ctx context.Context, request CreateRequest) (CreateResult, error) {
	if fields := validateCreate(&request); len(fields) > 0 {
		return CreateResult{}, apperr.Validation(opCreate, fields)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return CreateResult{}, s.fail(opCreate, reasonIDFailed, err)
	}
	if spamguard.Triggered(request.Decoy) {
		s.logger.Info("decoy field populated; discarding feedback",
			zap.String("operation", opCreate),
			zap.String("category", string(request.Category)))
		return CreateResult{ID: id, Status: StatusNew}, nil
	}

	now := s.clock().UTC()
	record := &Feedback{
		ID:        id,
		Category:  request.Category,
		Message:   request.Message,
		Email:     request.Email,
		PageURL:   request.PageURL,
		UserAgent: request.UserAgent,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, record); err != nil {
		return CreateResult{}, s.fail(opCreate, reasonInsertFailed, err, zap.String("feedback_id", id))
	}
	return CreateResult{ID: id, Status: StatusNew}, nil
}

// ListPublicSafe returns the reduced projection of feedback whose status mode permits,
// intersected with statusFilter when one is given. An empty intersection yields no items.
func (s *Service) ListPublicSafe(ctx context.Context, mode ListMode, statusFilter []Status, limit int) ([]PublicFeedback, error) {
	if _, ok := modeStatuses[mode]; !ok {
		return nil, apperr.Validation(opListPublicSafe, map[string]string{"mode": "must be recent or all"})
	}
	statuses := allowedStatuses(mode, statusFilter)
	if len(statuses) == 0 {
		return []PublicFeedback{}, nil
	}

	records, err := s.store.Find(ctx, Filter{
		Statuses:   statuses,
		Limit:      clampLimit(limit, PublicListDefault, PublicListCap),
		PublicOnly: true,
	})
	if err != nil {
		return nil, s.fail(opListPublicSafe, reasonQueryFailed, err)
	}
	items := make([]PublicFeedback, 0, len(records))
	for _, record := range records {
		items = append(items, record.public())
	}
	return items, nil
}

// ModerationFilter narrows the moderator listing. Zero values do not constrain.
type ModerationFilter struct {
	Status   Status
	Category Category
	Limit    int
}

// ListForModeration returns full feedback records. Requires the moderator role.
func (s *Service) ListForModeration(ctx context.Context, credential string, filter ModerationFilter) ([]ModeratedFeedback, error) {
	if err := auth.Require(s.moderators, auth.RoleModerator, credential, opListForModeration); err != nil {
		return nil, err
	}

	query := Filter{
		Category: filter.Category,
		Limit:    clampLimit(filter.Limit, ModerationListDefault, ModerationListCap),
	}
	if filter.Status != "" {
		query.Statuses = []Status{filter.Status}
	}
	records, err := s.store.Find(ctx, query)
	if err != nil {
		return nil, s.fail(opListForModeration, reasonQueryFailed, err)
	}
	items := make([]ModeratedFeedback, 0, len(records))
	for _, record := range records {
		items = append(items, record.moderated())
	}
	return items, nil
}

// UpdateRequest carries the optional fields a moderator may change. At least one must be set.
type UpdateRequest struct {
	Message *string
	Status  *Status
}

// Update changes message and/or status. Requires the moderator role.
func (s *Service) Update(ctx context.Context, credential, id string, request UpdateRequest) error {
	if err := auth.Require(s.moderators, auth.RoleModerator, credential, opUpdate); err != nil {
		return err
	}
	if request.Message == nil && request.Status == nil {
		return apperr.Validation(opUpdate, map[string]string{"message": "message or status is required"})
	}

	patch := map[string]any{"updated_at": s.clock().UTC()}
	fields := map[string]string{}
	if request.Message != nil {
		message := normalize.Text(*request.Message)
		if text := validateMessage(message); text != "" {
			fields["message"] = text
		}
		patch["message"] = message
	}
	if request.Status != nil {
		status, err := ParseStatus(string(*request.Status))
		if err != nil {
			fields["status"] = "must be one of new, triaged, closed"
		}
		patch["status"] = status
	}
	if len(fields) > 0 {
		return apperr.Validation(opUpdate, fields)
	}

	updated, err := s.store.UpdateOne(ctx, id, patch)
	if err != nil {
		return s.fail(opUpdate, reasonUpdateFailed, err, zap.String("feedback_id", id))
	}
	if !updated {
		return apperr.New(apperr.KindNotFound, opUpdate, reasonNotFound, ErrRecordNotFound)
	}
	return nil
}

// Delete removes a feedback record. Requires the moderator role.
func (s *Service) Delete(ctx context.Context, credential, id string) error {
	if err := auth.Require(s.moderators, auth.RoleModerator, credential, opDelete); err != nil {
		return err
	}
	deleted, err := s.store.DeleteOne(ctx, id)
	if err != nil {
		return s.fail(opDelete, reasonDeleteFailed, err, zap.String("feedback_id", id))
	}
	if !deleted {
		return apperr.New(apperr.KindNotFound, opDelete, reasonNotFound, ErrRecordNotFound)
	}
	return nil
}

func validateCreate(request *CreateRequest) map[string]string {
	request.Message = normalize.Text(request.Message)
	request.Email = normalize.Trimmed(request.Email)
	request.PageURL = normalize.Trimmed(request.PageURL)
	request.UserAgent = normalize.Truncate(normalize.Trimmed(request.UserAgent), MaxUserAgentLen)

	fields := map[string]string{}
	if _, err := ParseCategory(string(request.Category)); err != nil {
		fields["category"] = "must be one of bug, feature, content, other"
	}
	if message := validateMessage(request.Message); message != "" {
		fields["message"] = message
	}
	if normalize.Length(request.Email) > MaxEmailLength {
		fields["email"] = "too long"
	}
	if normalize.Length(request.PageURL) > MaxPageURLLength {
		fields["pageUrl"] = "too long"
	}
	return fields
}

func validateMessage(message string) string {
	length := normalize.Length(message)
	if length < MinMessageLength || length > MaxMessageLength {
		return "must be " + strconv.Itoa(MinMessageLength) + "-" + strconv.Itoa(MaxMessageLength) + " characters"
	}
	return ""
}

func clampLimit(requested, fallback, ceiling int) int {
	if requested <= 0 {
		return fallback
	}
	if requested > ceiling {
		return ceiling
	}
	return requested
}

func (s *Service) fail(operation, reason string, err error, fields ...zap.Field) error {
	attrs := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}, fields...)
	s.logger.Error("feedback service error", attrs...)
	return apperr.New(apperr.KindUnexpected, operation, reason, err)
}
