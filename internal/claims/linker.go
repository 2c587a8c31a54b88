package claims

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/remarks/internal/apperr"
	"github.com/MarcoPoloResearchLab/remarks/internal/auth"
	"github.com/MarcoPoloResearchLab/remarks/internal/normalize"
	"go.uber.org/zap"
)

const (
	opClaimByEmail     = "claims.claim_by_email"
	opLinkerNew        = "claims.linker.new"
	reasonMissingStore = "missing_store"
	reasonUpdateFailed = "bulk_update_failed"
	maxUserIDLength    = 190
)

var errMissingStore = errors.New("claim store is required")

// Store assigns an author identity to unclaimed records in one atomic bulk write.
type Store interface {
	AssignAuthorByEmail(ctx context.Context, email, authorID string, at time.Time) (matched int64, modified int64, err error)
}

// Result reports how many unclaimed records matched and how many were updated.
type Result struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}

// LinkerConfig describes the dependencies of the claim linker.
type LinkerConfig struct {
	Store    Store
	Services auth.Authorizer
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Linker attaches previously anonymous comments to an authenticated identity.
type Linker struct {
	store    Store
	services auth.Authorizer
	clock    func() time.Time
	logger   *zap.Logger
}

// NewLinker constructs a Linker.
func NewLinker(cfg LinkerConfig) (*Linker, error) {
	if cfg.Store == nil {
		return nil, apperr.New(apperr.KindUnexpected, opLinkerNew, reasonMissingStore, errMissingStore)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Linker{
		store:    cfg.Store,
		services: cfg.Services,
		clock:    clock,
		logger:   logger,
	}, nil
}

// ClaimByEmail sets the author identity on every comment that has none and was submitted with
// exactly email. Re-running with the same arguments matches nothing and is not an error.
// Requires the service role; moderator credentials are not accepted.
func (l *Linker) ClaimByEmail(ctx context.Context, credential, userID, email string) (Result, error) {
	if err := auth.Require(l.services, auth.RoleService, credential, opClaimByEmail); err != nil {
		return Result{}, err
	}

	fields := map[string]string{}
	switch {
	case userID == "":
		fields["userId"] = "required"
	case normalize.Length(userID) > maxUserIDLength:
		fields["userId"] = "must be at most " + strconv.Itoa(maxUserIDLength) + " characters"
	}
	if email == "" {
		fields["email"] = "required"
	}
	if len(fields) > 0 {
		return Result{}, apperr.Validation(opClaimByEmail, fields)
	}

	matched, modified, err := l.store.AssignAuthorByEmail(ctx, email, userID, l.clock().UTC())
	if err != nil {
		l.logger.Error("claim linker error",
			zap.String("operation", opClaimByEmail),
			zap.String("reason", reasonUpdateFailed),
			zap.String("user_id", userID),
			zap.Error(err))
		return Result{}, apperr.New(apperr.KindUnexpected, opClaimByEmail, reasonUpdateFailed, err)
	}

	l.logger.Info("comments claimed",
		zap.String("user_id", userID),
		zap.Int64("matched", matched),
		zap.Int64("modified", modified))
	return Result{Matched: matched, Modified: modified}, nil
}
