package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/remarks/internal/apperr"
	"github.com/MarcoPoloResearchLab/remarks/internal/auth"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

const testModeratorKey = "moderator-key"

type sequenceIDs struct {
	next int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.next++
	return "feedback-" + strconv.Itoa(s.next), nil
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) {
	return "", errors.New("entropy exhausted")
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *observer.ObservedLogs) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "feedback.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Feedback{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	core, logs := observer.New(zapcore.DebugLevel)
	current := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	service, err := NewService(ServiceConfig{
		Store:      NewGormStore(db),
		Moderators: auth.NewStaticKeyAuthorizer(auth.RoleModerator, testModeratorKey),
		IDProvider: &sequenceIDs{},
		Clock: func() time.Time {
			current = current.Add(time.Second)
			return current
		},
		Logger: zap.New(core),
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return service, db, logs
}

func mustCreate(t *testing.T, service *Service, request CreateRequest) CreateResult {
	t.Helper()
	result, err := service.Create(context.Background(), request)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	return result
}

func TestCreateStoresNewFeedback(t *testing.T) {
	service, db, _ := newTestService(t)

	result := mustCreate(t, service, CreateRequest{
		Category:  CategoryBug,
		Message:   "  The   search box\tfreezes  ",
		Email:     " reporter@example.com ",
		PageURL:   "https://example.com/search",
		UserAgent: strings.Repeat("a", MaxUserAgentLen+20),
	})
	if result.Status != StatusNew {
		t.Fatalf("expected status new, got %q", result.Status)
	}

	var stored Feedback
	if err := db.Where("id = ?", result.ID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to load feedback: %v", err)
	}
	if stored.Message != "The search box freezes" {
		t.Fatalf("expected normalized message, got %q", stored.Message)
	}
	if stored.Email != "reporter@example.com" {
		t.Fatalf("expected trimmed email, got %q", stored.Email)
	}
	if len(stored.UserAgent) != MaxUserAgentLen {
		t.Fatalf("expected user agent truncated to %d, got %d", MaxUserAgentLen, len(stored.UserAgent))
	}
}

func TestCreateRejectsInvalidFeedback(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.Create(context.Background(), CreateRequest{Category: Category("praise"), Message: "hey"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := err.(*apperr.Error).Fields()
	if _, ok := fields["category"]; !ok {
		t.Fatalf("expected category field error in %v", fields)
	}
	if _, ok := fields["message"]; !ok {
		t.Fatalf("expected message field error in %v", fields)
	}
}

func TestCreateDropsDecoySubmissions(t *testing.T) {
	service, db, logs := newTestService(t)

	result := mustCreate(t, service, CreateRequest{Category: CategoryOther, Message: "Buy cheap things now", Decoy: "filled"})
	if result.ID == "" || result.Status != StatusNew {
		t.Fatalf("expected success-shaped result, got %#v", result)
	}
	var count int64
	if err := db.Model(&Feedback{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count feedback: %v", err)
	}
	if count != 0 {
		t.Fatalf("decoy submission must not be stored")
	}
	if logs.FilterMessage("decoy field populated; discarding feedback").Len() != 1 {
		t.Fatalf("expected decoy discard to be logged")
	}
}

func TestCreateWrapsIDFailure(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "feedback.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	service, err := NewService(ServiceConfig{Store: NewGormStore(db), IDProvider: failingIDs{}})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	_, err = service.Create(context.Background(), CreateRequest{Category: CategoryBug, Message: "Something broke"})
	if !apperr.Is(err, apperr.KindUnexpected) {
		t.Fatalf("expected unexpected error, got %v", err)
	}
}

func TestListPublicSafeFiltersByModeAndProjects(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	first := mustCreate(t, service, CreateRequest{Category: CategoryBug, Message: "First report text", Email: "a@example.com", UserAgent: "agent"})
	second := mustCreate(t, service, CreateRequest{Category: CategoryFeature, Message: "Second report text"})
	third := mustCreate(t, service, CreateRequest{Category: CategoryContent, Message: "Third report text"})

	triaged := StatusTriaged
	closed := StatusClosed
	if err := service.Update(ctx, testModeratorKey, second.ID, UpdateRequest{Status: &triaged}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if err := service.Update(ctx, testModeratorKey, third.ID, UpdateRequest{Status: &closed}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	recent, err := service.ListPublicSafe(ctx, ListModeRecent, nil, 0)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected new and triaged items, got %d", len(recent))
	}
	if recent[0].Message != "Second report text" {
		t.Fatalf("expected newest first, got %q", recent[0].Message)
	}

	all, err := service.ListPublicSafe(ctx, ListModeAll, nil, 0)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected all three items, got %d", len(all))
	}

	onlyClosed, err := service.ListPublicSafe(ctx, ListModeAll, []Status{StatusClosed}, 0)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(onlyClosed) != 1 || onlyClosed[0].Status != StatusClosed {
		t.Fatalf("expected only the closed item, got %#v", onlyClosed)
	}

	excluded, err := service.ListPublicSafe(ctx, ListModeRecent, []Status{StatusClosed}, 0)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(excluded) != 0 {
		t.Fatalf("recent mode must never expose closed items, got %d", len(excluded))
	}

	limited, err := service.ListPublicSafe(ctx, ListModeAll, nil, 1)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	encoded, err := json.Marshal(all)
	if err != nil {
		t.Fatalf("failed to encode items: %v", err)
	}
	for _, forbidden := range []string{first.ID, "a@example.com", "agent", "userAgent", "email"} {
		if strings.Contains(string(encoded), forbidden) {
			t.Fatalf("public listing leaked %q: %s", forbidden, encoded)
		}
	}

	if _, err := service.ListPublicSafe(ctx, ListMode("everything"), nil, 0); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for unknown mode, got %v", err)
	}
}

func TestListForModerationReturnsFullRecords(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, service, CreateRequest{Category: CategoryBug, Message: "First report text", Email: "a@example.com", UserAgent: "agent"})
	mustCreate(t, service, CreateRequest{Category: CategoryFeature, Message: "Second report text"})

	if _, err := service.ListForModeration(ctx, "wrong", ModerationFilter{}); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	items, err := service.ListForModeration(ctx, testModeratorKey, ModerationFilter{Category: CategoryBug})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected category filter to apply, got %d", len(items))
	}
	if items[0].Email != "a@example.com" || items[0].UserAgent != "agent" || items[0].ID == "" {
		t.Fatalf("expected full record, got %#v", items[0])
	}

	byStatus, err := service.ListForModeration(ctx, testModeratorKey, ModerationFilter{Status: StatusClosed})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(byStatus) != 0 {
		t.Fatalf("expected no closed items, got %d", len(byStatus))
	}
}

func TestUpdateRules(t *testing.T) {
	service, db, _ := newTestService(t)
	ctx := context.Background()
	created := mustCreate(t, service, CreateRequest{Category: CategoryBug, Message: "Original message"})

	if err := service.Update(ctx, testModeratorKey, created.ID, UpdateRequest{}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error when nothing is supplied, got %v", err)
	}
	bogus := Status("archived")
	if err := service.Update(ctx, testModeratorKey, created.ID, UpdateRequest{Status: &bogus}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
	short := "no"
	if err := service.Update(ctx, testModeratorKey, created.ID, UpdateRequest{Message: &short}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for short message, got %v", err)
	}

	message := "  Edited   message  "
	triaged := StatusTriaged
	if err := service.Update(ctx, testModeratorKey, created.ID, UpdateRequest{Message: &message, Status: &triaged}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	var stored Feedback
	if err := db.Where("id = ?", created.ID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to reload feedback: %v", err)
	}
	if stored.Message != "Edited message" || stored.Status != StatusTriaged {
		t.Fatalf("unexpected stored state: %#v", stored)
	}

	if err := service.Update(ctx, testModeratorKey, "missing", UpdateRequest{Status: &triaged}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := service.Update(ctx, "", created.ID, UpdateRequest{Status: &triaged}); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()
	created := mustCreate(t, service, CreateRequest{Category: CategoryBug, Message: "Delete me please"})

	if err := service.Delete(ctx, "wrong", created.ID); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := service.Delete(ctx, testModeratorKey, created.ID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if err := service.Delete(ctx, testModeratorKey, created.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestParseListMode(t *testing.T) {
	mode, err := ParseListMode("")
	if err != nil || mode != ListModeRecent {
		t.Fatalf("expected recent default, got %q %v", mode, err)
	}
	mode, err = ParseListMode(" ALL ")
	if err != nil || mode != ListModeAll {
		t.Fatalf("expected all, got %q %v", mode, err)
	}
	if _, err := ParseListMode("closed"); !errors.Is(err, ErrInvalidListMode) {
		t.Fatalf("expected ErrInvalidListMode, got %v", err)
	}
}
