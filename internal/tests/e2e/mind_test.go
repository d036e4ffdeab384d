//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GurgoSoft/MIND-sub001/config"
	"github.com/GurgoSoft/MIND-sub001/internal/db"
	"github.com/GurgoSoft/MIND-sub001/internal/server"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	usersPort  = 13001
	agendaPort = 13002
	diaryPort  = 13003
)

var (
	usersURL  = fmt.Sprintf("http://localhost:%d", usersPort)
	agendaURL = fmt.Sprintf("http://localhost:%d", agendaPort)
	diaryURL  = fmt.Sprintf("http://localhost:%d", diaryPort)
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	cfg := testConfig()
	if err := waitForPostgres(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srvCtx, stopServers := context.WithCancel(context.Background())
	done, err := startServers(srvCtx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start servers: %v\n", err)
		stopServers()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	for _, base := range []string{usersURL, agendaURL, diaryURL} {
		if err := waitForHealth(ctx, base+"/health"); err != nil {
			fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
			stopServers()
			_ = dockerCompose(context.Background(), root, "down")
			os.Exit(1)
		}
	}

	code := m.Run()

	stopServers()
	<-done
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestUserAgendaDiaryFlow(t *testing.T) {
	suffix := time.Now().UnixNano()
	email := fmt.Sprintf("patient_%d@example.com", suffix)

	var session struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	status, _ := call(t, http.MethodPost, usersURL+"/auth/register", "", map[string]any{
		"first_name": "Ana",
		"last_name":  "Gomez",
		"doc_type":   "CC",
		"doc_number": fmt.Sprint(suffix),
		"email":      email,
		"password":   "s3cret-pass",
	}, &session)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, session.Token)
	token, userID := session.Token, session.User.ID

	status, _ = call(t, http.MethodGet, usersURL+"/auth/me", token, nil, nil)
	require.Equal(t, http.StatusOK, status)

	// Agenda service accepts tokens issued by the users service.
	var agendaType struct {
		ID string `json:"id"`
	}
	status, _ = call(t, http.MethodPost, agendaURL+"/agenda-types", token, map[string]any{
		"code": fmt.Sprintf("T%d", suffix%100000), "name": "Therapy",
	}, &agendaType)
	require.Equal(t, http.StatusCreated, status)

	var agenda struct {
		ID string `json:"id"`
	}
	status, _ = call(t, http.MethodPost, agendaURL+"/agendas", token, map[string]any{
		"specialist_id":  userID,
		"agenda_type_id": agendaType.ID,
		"name":           "Mornings",
	}, &agenda)
	require.Equal(t, http.StatusCreated, status)

	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	appointment := map[string]any{
		"agenda_id":     agenda.ID,
		"specialist_id": userID,
		"patient_id":    userID,
		"start_at":      start,
		"end_at":        start.Add(time.Hour),
	}
	var appt struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	status, _ = call(t, http.MethodPost, agendaURL+"/appointments", token, appointment, &appt)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "scheduled", appt.Status)

	status, env := call(t, http.MethodPost, agendaURL+"/appointments", token, appointment, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "SCHEDULE_CONFLICT", env.Error)

	status, _ = call(t, http.MethodDelete, agendaURL+"/agenda-types/"+agendaType.ID, token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var record struct {
		ID string `json:"id"`
	}
	status, _ = call(t, http.MethodPost, agendaURL+"/appointment-records", token, map[string]any{
		"appointment_id": appt.ID,
		"summary":        "first session",
	}, &record)
	require.Equal(t, http.StatusCreated, status)
	uploadAttachment(t, token, record.ID)

	status, _ = call(t, http.MethodPost, agendaURL+"/appointments/"+appt.ID+"/cancel", token, map[string]any{"reason": "sick"}, &appt)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", appt.Status)

	var emotion struct {
		ID string `json:"id"`
	}
	status, _ = call(t, http.MethodPost, diaryURL+"/emotions", token, map[string]any{
		"code": fmt.Sprintf("E%d", suffix%100000), "name": "Joy",
	}, &emotion)
	require.Equal(t, http.StatusCreated, status)

	var entry struct {
		ID       string `json:"id"`
		Emotions []struct {
			ItemID string `json:"item_id"`
		} `json:"emotions"`
	}
	status, _ = call(t, http.MethodPost, diaryURL+"/diary-entries", token, map[string]any{
		"user_id":    userID,
		"entry_date": start,
		"content":    "good day",
		"emotions":   []map[string]any{{"item_id": emotion.ID, "intensity": 7}},
	}, &entry)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, entry.Emotions, 1)
	assert.Equal(t, emotion.ID, entry.Emotions[0].ItemID)

	var records struct {
		Items []struct {
			Entity string `json:"entity"`
		} `json:"items"`
	}
	status, _ = call(t, http.MethodGet, diaryURL+"/audit?entity_id="+entry.ID, token, nil, &records)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, records.Items)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, method, url, token string, body any, out any) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return send(t, req, out)
}

func send(t *testing.T, req *http.Request, out any) (int, envelope) {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), strings.TrimSpace(string(raw)))
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return resp.StatusCode, env
}

func uploadAttachment(t *testing.T, token, recordID string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("session notes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, agendaURL+"/appointment-records/"+recordID+"/attachments", &body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var record struct {
		Attachments []struct {
			Key string `json:"key"`
		} `json:"attachments"`
	}
	status, _ := send(t, req, &record)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, record.Attachments, 1)
}

func testConfig() config.Config {
	env := map[string]string{
		"ENV":               config.EnvTest,
		"JWT_SECRET":        "e2e-secret",
		"BCRYPT_ROUNDS":     "4",
		"USERS_PORT":        fmt.Sprint(usersPort),
		"AGENDA_PORT":       fmt.Sprint(agendaPort),
		"DIARY_PORT":        fmt.Sprint(diaryPort),
		"DB_HOST":           "localhost",
		"DB_PORT":           "5432",
		"DB_USER":           "mind",
		"DB_PASSWORD":       "password",
		"DB_NAME":           "mind_db",
		"AUDIT_BACKEND":     "mongo",
		"MONGO_URI":         "mongodb://localhost:27017",
		"MAIL_TRANSPORT":    "smtp",
		"SMTP_HOST":         "localhost",
		"SMTP_PORT":         "1025",
		"STORAGE_BACKEND":   "minio",
		"MINIO_ENDPOINT":    "localhost:9000",
		"MINIO_ACCESS_KEY":  "minioadmin",
		"MINIO_SECRET_KEY":  "minioadmin",
		"MINIO_BUCKET":      "mind-e2e",
		"RATE_LIMIT_RPS":    "0",
		"STORE_BACKEND":     "postgres",
	}
	for k, v := range env {
		_ = os.Setenv(k, v)
	}
	return config.LoadConfig()
}

func startServers(ctx context.Context, cfg config.Config) (<-chan struct{}, error) {
	app, err := server.NewApp(ctx, cfg, zap.NewNop(), server.AllServices)
	if err != nil {
		return nil, err
	}
	servers := make([]*server.Server, 0, len(server.AllServices))
	for _, s := range server.AllServices {
		srv, err := server.New(ctx, app, s)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		servers = append(servers, srv)
	}

	done := make(chan struct{})
	remaining := make(chan struct{}, len(servers))
	for _, srv := range servers {
		srv := srv
		go func() {
			if err := srv.Run(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "server %s: %v\n", srv.Addr(), err)
			}
			remaining <- struct{}{}
		}()
	}
	go func() {
		for range servers {
			<-remaining
		}
		_ = app.Close()
		close(done)
	}()
	return done, nil
}

func waitForPostgres(ctx context.Context, cfg config.Config) error {
	conn, err := sql.Open("postgres", db.DSN(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string, cfg config.Config) error {
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")
	migrator, err := migrate.New(migrationsURL, db.DSN(cfg))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
