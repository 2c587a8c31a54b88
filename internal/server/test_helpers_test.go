package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/remarks/internal/auth"
	"github.com/MarcoPoloResearchLab/remarks/internal/claims"
	"github.com/MarcoPoloResearchLab/remarks/internal/comments"
	"github.com/MarcoPoloResearchLab/remarks/internal/feedback"
	"github.com/MarcoPoloResearchLab/remarks/internal/ids"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

const (
	testAdminKey   = "admin-key"
	testServiceKey = "service-key"
)

type testServer struct {
	handler http.Handler
	db      *gorm.DB
	logs    *observer.ObservedLogs
}

type testServerOptions struct {
	adminKey   string
	serviceKey string
	rateLimit  RateLimitConfig
	proxies    []string
}

func defaultTestServerOptions() testServerOptions {
	return testServerOptions{adminKey: testAdminKey, serviceKey: testServiceKey}
}

func newTestServer(t *testing.T, options testServerOptions) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "server.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&comments.Comment{}, &feedback.Feedback{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	moderators := auth.NewStaticKeyAuthorizer(auth.RoleModerator, options.adminKey)
	commentStore := comments.NewGormStore(db)

	commentService, err := comments.NewService(comments.ServiceConfig{
		Store:      commentStore,
		Moderators: moderators,
		IDProvider: ids.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("failed to build comment service: %v", err)
	}
	feedbackService, err := feedback.NewService(feedback.ServiceConfig{
		Store:      feedback.NewGormStore(db),
		Moderators: moderators,
		IDProvider: ids.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("failed to build feedback service: %v", err)
	}
	linker, err := claims.NewLinker(claims.LinkerConfig{
		Store:    commentStore,
		Services: auth.NewStaticKeyAuthorizer(auth.RoleService, options.serviceKey),
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("failed to build claim linker: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Comments:  commentService,
		Feedback:  feedbackService,
		Claims:    linker,
		RateLimit:      options.rateLimit,
		TrustedProxies: options.proxies,
		Logger:         logger,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return testServer{handler: handler, db: db, logs: logs}
}

func (s testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch typed := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(typed))
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func admin() map[string]string {
	return map[string]string{headerAdminKey: testAdminKey}
}

func owner(token string) map[string]string {
	return map[string]string{headerOwnerToken: token}
}

// Stubs satisfy the service interfaces for tests that never reach a handler.
type stubCommentService struct{ CommentService }

type stubFeedbackService struct{ FeedbackService }

type stubClaimLinker struct{ ClaimLinker }
