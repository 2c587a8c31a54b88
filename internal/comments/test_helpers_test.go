package comments

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/remarks/internal/auth"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

const testModeratorKey = "moderator-key"

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

type steppingClock struct {
	current time.Time
}

func (c *steppingClock) Now() time.Time {
	c.current = c.current.Add(time.Second)
	return c.current
}

type testHarness struct {
	service *Service
	store   *GormStore
	db      *gorm.DB
	logs    *observer.ObservedLogs
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "comments.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Comment{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newTestHarness(t *testing.T, autoVisible bool, ids ...string) testHarness {
	t.Helper()
	db := openTestDatabase(t)
	store := NewGormStore(db)
	core, logs := observer.New(zapcore.DebugLevel)
	clock := &steppingClock{current: time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)}

	service, err := NewService(ServiceConfig{
		Store:       store,
		Moderators:  auth.NewStaticKeyAuthorizer(auth.RoleModerator, testModeratorKey),
		IDProvider:  &staticIDGenerator{ids: ids},
		Clock:       clock.Now,
		AutoVisible: autoVisible,
		Logger:      zap.New(core),
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return testHarness{service: service, store: store, db: db, logs: logs}
}

func countComments(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&Comment{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count comments: %v", err)
	}
	return count
}
