package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GurgoSoft/MIND-sub001/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func memoryConfig() config.Config {
	return config.Config{
		Env:   config.EnvTest,
		Ports: config.PortsConfig{Users: 0},
		Auth: config.AuthConfig{
			JWTSecret:  "server-test-secret",
			TokenTTL:   time.Hour,
			BcryptCost: 4,
			CodeTTL:    time.Minute,
			MaxFailed:  3,

			SystemUserID:      "mind-system",
			AdminUserTypeCode: "ADMIN",
		},
		Defaults:     config.DefaultsConfig{UserTypeCode: "PATIENT", UserTypeName: "Patient"},
		HTTP:         config.HTTPConfig{CORSOrigins: []string{"https://app.example.com"}},
		Mail:         config.MailConfig{Transport: "none"},
		Storage:      config.StorageConfig{Backend: "none"},
		StoreBackend: StoreBackendMemory,
	}
}

func newMemoryServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	app, err := NewApp(ctx, memoryConfig(), zap.NewNop(), []Service{ServiceUsers})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	srv, err := New(ctx, app, ServiceUsers)
	require.NoError(t, err)
	return srv
}

func TestParseService(t *testing.T) {
	s, err := ParseService(" Agenda ")
	require.NoError(t, err)
	assert.Equal(t, ServiceAgenda, s)

	_, err = ParseService("billing")
	assert.Error(t, err)
}

func TestMemoryModeOnlyServesUsers(t *testing.T) {
	_, err := NewApp(context.Background(), memoryConfig(), zap.NewNop(), []Service{ServiceUsers, ServiceDiary})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diary")
}

func TestUsersServerRoutes(t *testing.T) {
	srv := newMemoryServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	body := `{"first_name":"Ana","last_name":"Gomez","doc_type":"CC","doc_number":"1","email":"ana@example.com","password":"s3cret-pass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var env struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotEmpty(t, env.Data.Token)

	req = httptest.NewRequest(http.MethodGet, "/audit?entity=User", nil)
	req.Header.Set("Authorization", "Bearer "+env.Data.Token)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var audited struct {
		Data struct {
			Items []struct {
				ActorID string `json:"actor_id"`
			} `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audited))
	require.NotEmpty(t, audited.Data.Items)
	assert.Equal(t, "mind-system", audited.Data.Items[0].ActorID, "registration runs without a user and records the configured system actor")

	req = httptest.NewRequest(http.MethodDelete, "/audit?days=30", nil)
	req.Header.Set("Authorization", "Bearer "+env.Data.Token)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "self-registered users cannot purge audit records")

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mind_http_requests_total")
}

func TestGrantedAdminListsUsers(t *testing.T) {
	ctx := context.Background()
	app, err := NewApp(ctx, memoryConfig(), zap.NewNop(), []Service{ServiceUsers})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	srv, err := New(ctx, app, ServiceUsers)
	require.NoError(t, err)

	body := `{"first_name":"Ana","last_name":"Gomez","doc_type":"CC","doc_number":"1","email":"ana@example.com","password":"s3cret-pass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var env struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	list := func() int {
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Bearer "+env.Data.Token)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusForbidden, list())

	authSvc, err := app.Auth(ctx)
	require.NoError(t, err)
	_, err = authSvc.GrantAdmin(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, list())
}

func TestCORS(t *testing.T) {
	h := cors([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/users", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(1, 2)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	h := rl.handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	hit := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2:1000"))

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1:1003"))

	now = now.Add(10 * time.Minute)
	rl.sweep()
	assert.Empty(t, rl.visitors)
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0, 0)
	assert.Nil(t, rl)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, rl.handler(next))
	rl.sweep()
}
