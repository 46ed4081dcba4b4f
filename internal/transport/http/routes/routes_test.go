package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/infra/config"
	"github.com/arklim/social-platform-accounts/internal/repository/memory"
	"github.com/arklim/social-platform-accounts/internal/usecase"
)

const testJWTSecret = "routes-test-secret"

func newTestEngine(t *testing.T) (*gin.Engine, *memory.AccountRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewAccountRepository()
	service := usecase.NewAccountService(repo, nil, nil, nil, nil, zap.NewNop())

	cfg := &config.AppConfig{}
	cfg.App.Env = "test"
	cfg.JWT.Secret = testJWTSecret

	engine := Register(Dependencies{
		Config:   cfg,
		Logger:   zap.NewNop(),
		Accounts: service,
	})

	return engine, repo
}

func bearerToken(t *testing.T, login string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  login,
		"auth": "ROLE_USER",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, auth string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	return rr
}

func registerTestAccount(t *testing.T, engine *gin.Engine, login, email string) {
	t.Helper()

	rr := doJSON(t, engine, http.MethodPost, "/api/register", "", gin.H{
		"login":    login,
		"email":    email,
		"password": "a strong enough password",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", login, rr.Code, rr.Body.String())
	}
}

func activateTestAccount(t *testing.T, engine *gin.Engine, repo *memory.AccountRepository, login string) {
	t.Helper()

	stored, err := repo.GetByLogin(context.Background(), login)
	if err != nil {
		t.Fatalf("lookup %s: %v", login, err)
	}
	rr := doJSON(t, engine, http.MethodGet, "/api/activate?key="+*stored.ActivationKey, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("activate %s: expected 200, got %d: %s", login, rr.Code, rr.Body.String())
	}
}

func TestRoutes_RegisterAndActivate(t *testing.T) {
	engine, repo := newTestEngine(t)

	rr := doJSON(t, engine, http.MethodPost, "/api/register", "", gin.H{
		"login":    "alice",
		"email":    "alice@example.com",
		"password": "a strong enough password",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var created struct {
		Login     string `json:"login"`
		Activated bool   `json:"activated"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Login != "alice" || created.Activated {
		t.Fatalf("unexpected registration response: %s", rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "password") || strings.Contains(rr.Body.String(), "activation") {
		t.Fatalf("expected response to omit credential material: %s", rr.Body.String())
	}

	activateTestAccount(t, engine, repo, "alice")

	// A replayed key reports not found.
	stored, _ := repo.GetByLogin(context.Background(), "alice")
	if stored.ActivationKey != nil {
		t.Fatalf("expected activation key to be consumed")
	}
	rr = doJSON(t, engine, http.MethodGet, "/api/activate?key=stale", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown key, got %d", rr.Code)
	}
}

func TestRoutes_RegisterConflicts(t *testing.T) {
	engine, _ := newTestEngine(t)

	registerTestAccount(t, engine, "alice", "alice@example.com")

	rr := doJSON(t, engine, http.MethodPost, "/api/register", "", gin.H{
		"login":    "ALICE",
		"email":    "other@example.com",
		"password": "a strong enough password",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate login, got %d", rr.Code)
	}

	rr = doJSON(t, engine, http.MethodPost, "/api/register", "", gin.H{
		"login":    "bob",
		"email":    "ALICE@example.com",
		"password": "a strong enough password",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", rr.Code)
	}

	rr = doJSON(t, engine, http.MethodPost, "/api/register", "", gin.H{
		"login":    "carol",
		"email":    "carol@example.com",
		"password": "abc",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short password, got %d", rr.Code)
	}
}

func TestRoutes_AuthenticatedAccountAccess(t *testing.T) {
	engine, repo := newTestEngine(t)

	registerTestAccount(t, engine, "alice", "alice@example.com")
	activateTestAccount(t, engine, repo, "alice")

	// No token.
	rr := doJSON(t, engine, http.MethodGet, "/api/account", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	// Garbage token.
	rr = doJSON(t, engine, http.MethodGet, "/api/account", "Bearer garbage", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rr.Code)
	}

	auth := bearerToken(t, "alice")

	rr = doJSON(t, engine, http.MethodGet, "/api/authenticate", auth, nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "alice" {
		t.Fatalf("expected authenticate to echo login, got %d %q", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, engine, http.MethodGet, "/api/account", auth, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for account fetch, got %d", rr.Code)
	}

	rr = doJSON(t, engine, http.MethodPost, "/api/account", auth, gin.H{
		"email":     "alice@example.com",
		"firstName": "Alice",
		"langKey":   "fr",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for profile update, got %d: %s", rr.Code, rr.Body.String())
	}

	stored, _ := repo.GetByLogin(context.Background(), "alice")
	if stored.FirstName != "Alice" || stored.LangKey != "fr" {
		t.Fatalf("expected profile fields to be written, got %+v", stored)
	}
}

func TestRoutes_AuthenticateAnonymous(t *testing.T) {
	engine, _ := newTestEngine(t)

	// Without a token the endpoint answers with an empty body.
	rr := doJSON(t, engine, http.MethodGet, "/api/authenticate", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for anonymous caller, got %d", rr.Code)
	}
	if rr.Body.String() != "" {
		t.Fatalf("expected empty body for anonymous caller, got %q", rr.Body.String())
	}

	// An unverifiable token is treated the same as no token.
	rr = doJSON(t, engine, http.MethodGet, "/api/authenticate", "Bearer garbage", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "" {
		t.Fatalf("expected anonymous response for invalid token, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestRoutes_ProfileEmailConflict(t *testing.T) {
	engine, repo := newTestEngine(t)

	registerTestAccount(t, engine, "alice", "alice@example.com")
	activateTestAccount(t, engine, repo, "alice")
	registerTestAccount(t, engine, "bob", "bob@example.com")

	rr := doJSON(t, engine, http.MethodPost, "/api/account", bearerToken(t, "alice"), gin.H{
		"email": "bob@example.com",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for email held by another account, got %d", rr.Code)
	}
}

func TestRoutes_ChangePassword(t *testing.T) {
	engine, repo := newTestEngine(t)

	registerTestAccount(t, engine, "alice", "alice@example.com")
	activateTestAccount(t, engine, repo, "alice")
	auth := bearerToken(t, "alice")

	rr := doJSON(t, engine, http.MethodPost, "/api/account/change-password", auth, gin.H{
		"currentPassword": "wrong password",
		"newPassword":     "a different password",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong current password, got %d", rr.Code)
	}

	rr = doJSON(t, engine, http.MethodPost, "/api/account/change-password", auth, gin.H{
		"currentPassword": "a strong enough password",
		"newPassword":     "a different password",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for password change, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRoutes_PasswordResetFlow(t *testing.T) {
	engine, repo := newTestEngine(t)

	registerTestAccount(t, engine, "alice", "alice@example.com")
	activateTestAccount(t, engine, repo, "alice")

	// Init accepts the raw email as the request body.
	req := httptest.NewRequest(http.MethodPost, "/api/account/reset-password/init", strings.NewReader("alice@example.com"))
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for reset init, got %d: %s", rr.Code, rr.Body.String())
	}

	// Unknown emails get the identical response.
	req = httptest.NewRequest(http.MethodPost, "/api/account/reset-password/init", strings.NewReader("nobody@example.com"))
	unknown := httptest.NewRecorder()
	engine.ServeHTTP(unknown, req)
	if unknown.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown email, got %d", unknown.Code)
	}
	if unknown.Body.String() != rr.Body.String() {
		t.Fatalf("expected indistinguishable responses, got %q vs %q", rr.Body.String(), unknown.Body.String())
	}

	stored, _ := repo.GetByLogin(context.Background(), "alice")
	if stored.ResetKey == nil {
		t.Fatalf("expected reset key to be stored")
	}

	rr = doJSON(t, engine, http.MethodPost, "/api/account/reset-password/finish", "", gin.H{
		"key":         *stored.ResetKey,
		"newPassword": "a replacement password",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for reset finish, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, engine, http.MethodPost, "/api/account/reset-password/finish", "", gin.H{
		"key":         "stale-key",
		"newPassword": "a replacement password",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown reset key, got %d", rr.Code)
	}
}

func TestRoutes_HealthAndMetrics(t *testing.T) {
	engine, _ := newTestEngine(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := doJSON(t, engine, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 from %s, got %d", path, rr.Code)
		}
	}
}

func TestRoutes_WrongSigningKeyRejected(t *testing.T) {
	engine, _ := newTestEngine(t)

	claims := jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("some other secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	rr := doJSON(t, engine, http.MethodGet, "/api/account", fmt.Sprintf("Bearer %s", token), nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for token signed with wrong key, got %d", rr.Code)
	}
}
