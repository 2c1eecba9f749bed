package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"timesheets/internal/app/server"
	"timesheets/internal/domain/auth"
	"timesheets/internal/domain/directory"
	"timesheets/internal/platform/config"
)

const testSecret = "test-secret"

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error any             `json:"error"`
}

func testConfig(dbURL string) config.Config {
	return config.Config{
		Addr:                   ":0",
		Environment:            "test",
		DatabaseURL:            dbURL,
		DBMaxConns:             4,
		DBConnectTimeout:       10 * time.Second,
		JWTSecret:              testSecret,
		RunMigrations:          true,
		RunSeed:                true,
		MaxBodyBytes:           1048576,
		RateLimitPerMinute:     1000,
		BulkRateLimitPerMinute: 1000,
		BulkMaxItems:           50,
		BulkConcurrency:        4,
		StoreTimeout:           5 * time.Second,
		LogLevel:               "error",
	}
}

type fixture struct {
	employeeID   string
	employeeUser string
	managerUser  string
	projectID    string
	taskIDs      []string
}

// seedTeam creates a manager, one report and a project with two tasks.
func seedTeam(t *testing.T, app *server.App) fixture {
	t.Helper()
	ctx := context.Background()
	store := directory.NewStore(app.DB)
	suffix := time.Now().UnixNano()

	f := fixture{
		employeeUser: fmt.Sprintf("emp-%d", suffix),
		managerUser:  fmt.Sprintf("mgr-%d", suffix),
	}
	managerID, err := store.CreateEmployee(ctx, directory.Employee{UserID: f.managerUser, FirstName: "Grace", LastName: "Hopper"})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	f.employeeID, err = store.CreateEmployee(ctx, directory.Employee{UserID: f.employeeUser, FirstName: "Ada", LastName: "Lovelace", ManagerID: managerID})
	if err != nil {
		t.Fatalf("failed to create employee: %v", err)
	}
	f.projectID, err = store.CreateProject(ctx, fmt.Sprintf("Project %d", suffix))
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	for _, name := range []string{"Design", "Build"} {
		id, err := store.CreateTask(ctx, f.projectID, name)
		if err != nil {
			t.Fatalf("failed to create task: %v", err)
		}
		f.taskIDs = append(f.taskIDs, id)
	}
	return f
}

func issueToken(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, auth.Claims{UserID: userID, RoleName: role}, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode envelope %q: %v", string(raw), err)
	}
	return resp, env
}

func expectJSON(t *testing.T, client *http.Client, method, url, token string, body any, want int) envelope {
	t.Helper()
	resp, env := doJSON(t, client, method, url, token, body, nil)
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected status %d, got %d: %+v", method, url, want, resp.StatusCode, env.Error)
	}
	return env
}

func envelopeErrorCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	if m, ok := env.Error.(map[string]any); ok {
		if code, ok := m["code"].(string); ok {
			return code
		}
	}
	return ""
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("failed to decode data %s: %v", string(env.Data), err)
	}
}
