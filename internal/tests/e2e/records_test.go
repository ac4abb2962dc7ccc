//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cidco-records/apiserver/config"
	"github.com/cidco-records/apiserver/internal/server"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

const (
	serverPort = 18080
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

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestRecordLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("admin_%d", time.Now().UnixNano())
	password := "testpass123!"
	recordID := fmt.Sprintf("e2e-%d", time.Now().UnixNano())

	if err := seedAdminUser(username, password); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if err := seedRecord(recordID, "E2E NODE", "15"); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	token, err := login(t, baseURL, username, password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	nodes, err := getStrings(t, baseURL+"/nodes")
	if err != nil {
		t.Fatalf("list nodes: %v", err)
	}
	if !contains(nodes, "E2E NODE") {
		t.Fatalf("seeded node missing from %v", nodes)
	}

	rows, err := search(t, baseURL, map[string]string{"node": "E2E NODE", "sector": "15"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !containsRecordID(rows, recordID) {
		t.Fatalf("seeded record missing from search results: %v", rows)
	}

	record, err := getRecord(t, baseURL, recordID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record["NAME_OF_NODE"] != "E2E NODE" {
		t.Fatalf("unexpected record node: %v", record["NAME_OF_NODE"])
	}
	if _, ok := record["images"].([]any); !ok {
		t.Fatalf("record missing images slot: %v", record["images"])
	}

	if err := updateRecord(t, baseURL, token, recordID, map[string]any{
		"ID":              recordID,
		"BLOCK_ROAD_NAME": "B-99",
	}); err != nil {
		t.Fatalf("update record: %v", err)
	}

	record, err = getRecord(t, baseURL, recordID)
	if err != nil {
		t.Fatalf("get record after update: %v", err)
	}
	if record["BLOCK_ROAD_NAME"] != "B-99" {
		t.Fatalf("update not persisted: %v", record["BLOCK_ROAD_NAME"])
	}

	if err := expectRecordNotFound(t, baseURL, "no-such-record"); err != nil {
		t.Fatalf("missing record lookup: %v", err)
	}
}

func TestUpdateRejectedWithoutToken(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)

	body, _ := json.Marshal(map[string]any{"ID": "1", "NAME_OF_NODE": "X"})
	resp, err := http.Post(baseURL+"/record/update", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func seedAdminUser(username, password string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = db.ExecContext(ctx,
		`INSERT INTO users_react (username, password_hash, email, name, role) VALUES ($1, $2, $3, $4, 'admin')`,
		username, string(hashed), username+"@example.com", "Test Admin")
	return err
}

func seedRecord(id, node, sector string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = db.ExecContext(ctx,
		`INSERT INTO all_data ("ID", "NAME_OF_NODE", "SECTOR_NO_", "PLOT_NO_", "PLOT_USE_FOR_INVOICE", "PLOT_AREA_FOR_INVOICE")
		 VALUES ($1, $2, $3, '101', 'Residential', '450.5')`,
		id, node, sector)
	return err
}

func login(t *testing.T, baseURL, username, password string) (string, error) {
	t.Helper()

	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(baseURL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in login response")
	}
	return parsed.Token, nil
}

func getStrings(t *testing.T, url string) ([]string, error) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var values []string
	if err := json.NewDecoder(resp.Body).Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}

func search(t *testing.T, baseURL string, filter map[string]string) ([]map[string]any, error) {
	t.Helper()

	body, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(baseURL+"/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func getRecord(t *testing.T, baseURL, id string) (map[string]any, error) {
	t.Helper()

	resp, err := http.Get(baseURL + "/record/" + id)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get record status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var record map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, err
	}
	return record, nil
}

func updateRecord(t *testing.T, baseURL, token, id string, payload map[string]any) error {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/record/update", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("update status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func expectRecordNotFound(t *testing.T, baseURL, id string) error {
	t.Helper()

	resp, err := http.Get(baseURL + "/record/" + id)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("expected 404, got %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func contains(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}

func containsRecordID(rows []map[string]any, id string) bool {
	for _, row := range rows {
		if row["ID"] == id {
			return true
		}
	}
	return false
}

func openDB() (*sql.DB, error) {
	cfg := config.LoadConfig()
	return sql.Open("postgres", buildPostgresURL(cfg))
}

func waitForPostgres(ctx context.Context) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
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

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "cidco")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "cidco_records")
	_ = os.Setenv("DB_SSL", "false")
	_ = os.Setenv("STORAGE_BACKEND", "minio")
	_ = os.Setenv("MINIO_ENDPOINT", "localhost:9000")
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "cidco-evidence")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
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
