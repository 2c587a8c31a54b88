package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/remarks/internal/auth"
	"github.com/MarcoPoloResearchLab/remarks/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	return config.AppConfig{
		HTTPAddress:        "127.0.0.1:0",
		DatabaseDriver:     "sqlite",
		DatabaseDSN:        filepath.Join(t.TempDir(), "remarks.db"),
		LogLevel:           "error",
		AdminKey:           "admin-key",
		ServiceKey:         "service-key",
		ServiceTokenSecret: "token-secret",
		ServiceTokenIssuer: "remarks-internal",
	}
}

func TestBuildApplicationServesHealth(t *testing.T) {
	app, err := buildApplication(testConfig(t))
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	defer app.Close()

	recorder := httptest.NewRecorder()
	app.handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected healthy service, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestServiceAuthorizerAcceptsKeyAndSignedToken(t *testing.T) {
	appConfig := testConfig(t)
	authorizer, err := serviceAuthorizer(appConfig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !authorizer.Authorize("service-key").Allows(auth.RoleService) {
		t.Fatalf("expected static service key to be granted")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.ServiceClaims{
		Roles: []string{string(auth.RoleService)},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    appConfig.ServiceTokenIssuer,
			Subject:   "accounts-service",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	})
	signed, err := token.SignedString([]byte(appConfig.ServiceTokenSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	if !authorizer.Authorize("Bearer " + signed).Allows(auth.RoleService) {
		t.Fatalf("expected signed service token to be granted")
	}
	if authorizer.Authorize("admin-key").Allows(auth.RoleService) {
		t.Fatalf("moderator key must not be a service credential")
	}
}

func TestClaimCommandRunsLinker(t *testing.T) {
	appConfig := testConfig(t)
	configViper := config.NewViper()
	configViper.Set("database.dsn", appConfig.DatabaseDSN)
	configViper.Set("auth.service_key", appConfig.ServiceKey)
	configViper.Set("auth.admin_key", appConfig.AdminKey)
	configViper.Set("log.level", appConfig.LogLevel)

	app, err := buildApplication(appConfig)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	body := `{"normalizedKey":"acme-widget-9000","type":"general","body":"Anonymous comment","authorEmail":"dana@example.com"}`
	request := httptest.NewRequest(http.MethodPost, "/comments", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	app.handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	app.Close()

	cmd := newClaimCommand(configViper)
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetArgs([]string{"--user-id", "user-1", "--email", "dana@example.com"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("unexpected claim error: %v", err)
	}
	if strings.TrimSpace(output.String()) != "matched=1 modified=1" {
		t.Fatalf("unexpected output %q", output.String())
	}
}

func TestServiceTokenCommandMintsAcceptedToken(t *testing.T) {
	configViper := config.NewViper()
	configViper.Set("auth.service_token_secret", "token-secret")

	cmd := newServiceTokenCommand(configViper)
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetArgs([]string{"--subject", "accounts-service"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "expires_at=") {
		t.Fatalf("unexpected output %q", output.String())
	}
	authorizer, err := auth.NewSignedTokenAuthorizer(auth.SignedTokenConfig{SigningSecret: []byte("token-secret")})
	if err != nil {
		t.Fatalf("unexpected authorizer error: %v", err)
	}
	if !authorizer.Authorize(lines[0]).Allows(auth.RoleService) {
		t.Fatalf("minted token must be accepted")
	}
}

func TestCommandsReadOnlyTheirOwnConfiguration(t *testing.T) {
	cmd := newServiceTokenCommand(config.NewViper())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--subject", "accounts-service"})
	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected missing signing secret to be reported")
	}
}
