package comments

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/remarks/internal/apperr"
	"github.com/MarcoPoloResearchLab/remarks/internal/auth"
	"github.com/MarcoPoloResearchLab/remarks/internal/ids"
	"github.com/MarcoPoloResearchLab/remarks/internal/moderation"
	"github.com/MarcoPoloResearchLab/remarks/internal/normalize"
	"github.com/MarcoPoloResearchLab/remarks/internal/ownership"
	"github.com/MarcoPoloResearchLab/remarks/internal/spamguard"
	"go.uber.org/zap"
)

const (
	PublicListCap           = 200
	ModerationListDefault   = 100
	ModerationListCap       = 500
	opServiceNew            = "comments.service.new"
	opCreate                = "comments.create"
	opListPublic            = "comments.list_public"
	opListForModeration     = "comments.list_for_moderation"
	opSetStatus             = "comments.set_status"
	opDelete                = "comments.delete"
	opSelfEdit              = "comments.self_edit"
	opSelfDelete            = "comments.self_delete"
	reasonMissingStore      = "missing_store"
	reasonIDFailed          = "id_generation_failed"
	reasonSecretFailed      = "secret_issue_failed"
	reasonInsertFailed      = "insert_failed"
	reasonQueryFailed       = "query_failed"
	reasonLookupFailed      = "lookup_failed"
	reasonUpdateFailed      = "update_failed"
	reasonDeleteFailed      = "delete_failed"
	reasonNotFound          = "not_found"
	reasonForbidden         = "forbidden"
	reasonInvalidStatus     = "invalid_status"
	reasonIllegalTransition = "illegal_transition"
)

var (
	errMissingStore      = errors.New("comment store is required")
	errMissingIDProvider = errors.New("id provider is required")
	errOwnershipRejected = errors.New("ownership proof rejected")
	noOpLogger           = zap.NewNop()
)

// SecretCodec mints and checks ownership secrets.
type SecretCodec interface {
	Issue() (ownership.Grant, error)
	Verify(candidate string, storedDigest *string) bool
}

// ServiceConfig describes the dependencies of the comment lifecycle manager.
type ServiceConfig struct {
	Store       Store
	Codec       SecretCodec
	Moderators  auth.Authorizer
	IDProvider  ids.Provider
	Clock       func() time.Time
	AutoVisible bool
	Logger      *zap.Logger
}

// Service creates, reads and mutates comments.
type Service struct {
	store       Store
	codec       SecretCodec
	moderators  auth.Authorizer
	idProvider  ids.Provider
	clock       func() time.Time
	autoVisible bool
	logger      *zap.Logger
}

// NewService validates cfg and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, apperr.New(apperr.KindUnexpected, opServiceNew, reasonMissingStore, errMissingStore)
	}
	if cfg.IDProvider == nil {
		return nil, apperr.New(apperr.KindUnexpected, opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	codec := cfg.Codec
	if codec == nil {
		codec = ownership.NewCodec()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		store:       cfg.Store,
		codec:       codec,
		moderators:  cfg.Moderators,
		idProvider:  cfg.IDProvider,
		clock:       clock,
		autoVisible: cfg.AutoVisible,
		logger:      logger,
	}, nil
}

// CreateRequest carries already-validated submission fields.
type CreateRequest struct {
	NormalizedKey string
	Brand         string
	Model         string
	Type          Type
	Body          string
	AuthorName    string
	AuthorEmail   string
	Decoy         string
}

// CreateResult is returned once per submission. OwnerSecret is never disclosed again.
type CreateResult struct {
	ID          string            `json:"id"`
	Status      moderation.Status `json:"status"`
	OwnerSecret string            `json:"ownerToken"`
}

// Create stores a new comment and returns its raw ownership secret.
// Submissions that fill the decoy field receive an indistinguishable result and are not stored.
func (s *Service) Create(ctx context.Context, request CreateRequest) (CreateResult, error) {
	if s.store == nil {
		return CreateResult{}, s.fail(opCreate, reasonMissingStore, errMissingStore)
	}
	if fields := validateCreate(&request); len(fields) > 0 {
		return CreateResult{}, apperr.Validation(opCreate, fields)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return CreateResult{}, s.fail(opCreate, reasonIDFailed, err)
	}
	grant, err := s.codec.Issue()
	if err != nil {
		return CreateResult{}, s.fail(opCreate, reasonSecretFailed, err, zap.String("comment_id", id))
	}
	status := moderation.InitialStatus(s.autoVisible)

	if spamguard.Triggered(request.Decoy) {
		s.logger.Info("decoy field populated; discarding comment",
			zap.String("operation", opCreate),
			zap.String("normalized_key", request.NormalizedKey))
		return CreateResult{ID: id, Status: status, OwnerSecret: grant.Secret}, nil
	}

	now := s.clock().UTC()
	digest := grant.Digest
	comment := &Comment{
		ID:                    id,
		NormalizedKey:         request.NormalizedKey,
		Brand:                 request.Brand,
		ModelName:             request.Model,
		Type:                  request.Type,
		Body:                  request.Body,
		AuthorName:            request.AuthorName,
		AuthorEmail:           request.AuthorEmail,
		OwnershipSecretDigest: &digest,
		Status:                status,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.store.Insert(ctx, comment); err != nil {
		return CreateResult{}, s.fail(opCreate, reasonInsertFailed, err, zap.String("comment_id", id))
	}

	return CreateResult{ID: id, Status: status, OwnerSecret: grant.Secret}, nil
}

// ListPublic returns visible comments for normalizedKey, newest first.
func (s *Service) ListPublic(ctx context.Context, normalizedKey string) ([]PublicComment, error) {
	if s.store == nil {
		return nil, s.fail(opListPublic, reasonMissingStore, errMissingStore)
	}
	key := normalize.Trimmed(normalizedKey)
	if key == "" {
		return nil, apperr.Validation(opListPublic, map[string]string{"normalizedKey": "required"})
	}

	records, err := s.store.Find(ctx, Filter{
		NormalizedKey: key,
		Statuses:      []moderation.Status{moderation.StatusVisible},
		Limit:         PublicListCap,
	}, ProjectPublic)
	if err != nil {
		return nil, s.fail(opListPublic, reasonQueryFailed, err, zap.String("normalized_key", key))
	}

	items := make([]PublicComment, 0, len(records))
	for _, record := range records {
		if !record.Status.PubliclyReadable() {
			continue
		}
		items = append(items, record.public())
	}
	return items, nil
}

// ModerationFilter narrows the moderator listing. Zero values do not constrain.
type ModerationFilter struct {
	Status        moderation.Status
	NormalizedKey string
	Limit         int
}

// ListForModeration returns matching comments including author email. Requires the moderator role.
func (s *Service) ListForModeration(ctx context.Context, credential string, filter ModerationFilter) ([]ModeratedComment, error) {
	if err := auth.Require(s.moderators, auth.RoleModerator, credential, opListForModeration); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, s.fail(opListForModeration, reasonMissingStore, errMissingStore)
	}

	query := Filter{
		NormalizedKey: normalize.Trimmed(filter.NormalizedKey),
		Limit:         clampLimit(filter.Limit, ModerationListDefault, ModerationListCap),
	}
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, apperr.Validation(opListForModeration, map[string]string{"status": "unknown status"})
		}
		query.Statuses = []moderation.Status{filter.Status}
	}

	records, err := s.store.Find(ctx, query, ProjectModeration)
	if err != nil {
		return nil, s.fail(opListForModeration, reasonQueryFailed, err)
	}
	items := make([]ModeratedComment, 0, len(records))
	for _, record := range records {
		items = append(items, record.moderated())
	}
	return items, nil
}

// SetStatus applies a moderator transition as a single conditional write.
func (s *Service) SetStatus(ctx context.Context, credential, id string, target moderation.Status) error {
	if err := auth.Require(s.moderators, auth.RoleModerator, credential, opSetStatus); err != nil {
		return err
	}
	if s.store == nil {
		return s.fail(opSetStatus, reasonMissingStore, errMissingStore)
	}
	sources, err := moderation.Sources(target)
	if err != nil {
		return apperr.New(apperr.KindValidation, opSetStatus, reasonInvalidStatus, err)
	}

	updated, err := s.store.UpdateOne(ctx, Selector{ID: id, CurrentStatuses: sources}, Patch{
		columnStatus:    target,
		columnUpdatedAt: s.clock().UTC(),
	})
	if err != nil {
		return s.fail(opSetStatus, reasonUpdateFailed, err, zap.String("comment_id", id))
	}
	if updated {
		return nil
	}

	current, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return apperr.New(apperr.KindNotFound, opSetStatus, reasonNotFound, err)
	}
	if err != nil {
		return s.fail(opSetStatus, reasonLookupFailed, err, zap.String("comment_id", id))
	}
	if !current.Status.Valid() {
		return s.repairStatus(ctx, id, current.Status, target)
	}
	_, transitionErr := moderation.Transition(current.Status, target)
	if transitionErr == nil {
		transitionErr = moderation.ErrIllegalTransition
	}
	return apperr.New(apperr.KindValidation, opSetStatus, reasonIllegalTransition, transitionErr)
}

// repairStatus moves a record out of a status the machine does not know. The write is still
// conditioned on the stored value so a concurrent moderator change wins.
func (s *Service) repairStatus(ctx context.Context, id string, stored, target moderation.Status) error {
	updated, err := s.store.UpdateOne(ctx, Selector{ID: id, CurrentStatuses: []moderation.Status{stored}}, Patch{
		columnStatus:    target,
		columnUpdatedAt: s.clock().UTC(),
	})
	if err != nil {
		return s.fail(opSetStatus, reasonUpdateFailed, err, zap.String("comment_id", id))
	}
	if !updated {
		return apperr.New(apperr.KindNotFound, opSetStatus, reasonNotFound, ErrRecordNotFound)
	}
	s.logger.Warn("repaired unknown comment status",
		zap.String("comment_id", id),
		zap.String("stored_status", string(stored)),
		zap.String("status", string(target)))
	return nil
}

// Delete removes a comment regardless of status. Requires the moderator role.
func (s *Service) Delete(ctx context.Context, credential, id string) error {
	if err := auth.Require(s.moderators, auth.RoleModerator, credential, opDelete); err != nil {
		return err
	}
	if s.store == nil {
		return s.fail(opDelete, reasonMissingStore, errMissingStore)
	}
	deleted, err := s.store.DeleteOne(ctx, Selector{ID: id})
	if err != nil {
		return s.fail(opDelete, reasonDeleteFailed, err, zap.String("comment_id", id))
	}
	if !deleted {
		return apperr.New(apperr.KindNotFound, opDelete, reasonNotFound, ErrRecordNotFound)
	}
	return nil
}

// SelfEdit replaces the body of a comment whose owner presents the matching secret.
// Status is left unchanged.
func (s *Service) SelfEdit(ctx context.Context, id, newBody, presentedSecret string) error {
	if s.store == nil {
		return s.fail(opSelfEdit, reasonMissingStore, errMissingStore)
	}
	body := normalize.Text(newBody)
	if message := validateBody(body); message != "" {
		return apperr.Validation(opSelfEdit, map[string]string{"body": message})
	}

	current, err := s.authorizeOwner(ctx, opSelfEdit, id, presentedSecret)
	if err != nil {
		return err
	}

	updated, err := s.store.UpdateOne(ctx, Selector{ID: id, OwnershipDigest: current.OwnershipSecretDigest}, Patch{
		columnBody:      body,
		columnUpdatedAt: s.clock().UTC(),
	})
	if err != nil {
		return s.fail(opSelfEdit, reasonUpdateFailed, err, zap.String("comment_id", id))
	}
	if !updated {
		return apperr.New(apperr.KindNotFound, opSelfEdit, reasonNotFound, ErrRecordNotFound)
	}
	return nil
}

// SelfDelete permanently removes a comment whose owner presents the matching secret.
func (s *Service) SelfDelete(ctx context.Context, id, presentedSecret string) error {
	if s.store == nil {
		return s.fail(opSelfDelete, reasonMissingStore, errMissingStore)
	}
	current, err := s.authorizeOwner(ctx, opSelfDelete, id, presentedSecret)
	if err != nil {
		return err
	}

	deleted, err := s.store.DeleteOne(ctx, Selector{ID: id, OwnershipDigest: current.OwnershipSecretDigest})
	if err != nil {
		return s.fail(opSelfDelete, reasonDeleteFailed, err, zap.String("comment_id", id))
	}
	if !deleted {
		return apperr.New(apperr.KindNotFound, opSelfDelete, reasonNotFound, ErrRecordNotFound)
	}
	return nil
}

func (s *Service) authorizeOwner(ctx context.Context, operation, id, presentedSecret string) (Comment, error) {
	current, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return Comment{}, apperr.New(apperr.KindNotFound, operation, reasonNotFound, err)
	}
	if err != nil {
		return Comment{}, s.fail(operation, reasonLookupFailed, err, zap.String("comment_id", id))
	}
	if !s.codec.Verify(presentedSecret, current.OwnershipSecretDigest) {
		return Comment{}, apperr.New(apperr.KindForbidden, operation, reasonForbidden, errOwnershipRejected)
	}
	return current, nil
}

func validateCreate(request *CreateRequest) map[string]string {
	request.NormalizedKey = normalize.Trimmed(request.NormalizedKey)
	request.Brand = normalize.Text(request.Brand)
	request.Model = normalize.Text(request.Model)
	request.Body = normalize.Text(request.Body)
	request.AuthorName = normalize.Text(request.AuthorName)
	request.AuthorEmail = normalize.Trimmed(request.AuthorEmail)

	fields := map[string]string{}
	if request.NormalizedKey == "" || normalize.Length(request.NormalizedKey) > MaxNormalizedKeyLength {
		fields["normalizedKey"] = "must be 1-" + strconv.Itoa(MaxNormalizedKeyLength) + " characters"
	}
	if _, err := ParseType(string(request.Type)); err != nil {
		fields["type"] = "must be one of missing-data, correction, general"
	}
	if message := validateBody(request.Body); message != "" {
		fields["body"] = message
	}
	return fields
}

func validateBody(body string) string {
	length := normalize.Length(body)
	if length < MinBodyLength || length > MaxBodyLength {
		return "must be " + strconv.Itoa(MinBodyLength) + "-" + strconv.Itoa(MaxBodyLength) + " characters"
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
	s.logError(operation, reason, err, fields...)
	return apperr.New(apperr.KindUnexpected, operation, reason, err)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("comments service error", attrs...)
}
