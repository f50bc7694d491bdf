package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/config"
	"github.com/studyhub/drive/internal/database"
	"github.com/studyhub/drive/internal/middleware"
	"github.com/studyhub/drive/internal/ratelimit"
	"github.com/studyhub/drive/internal/services"
	"github.com/studyhub/drive/internal/storage"
	"github.com/studyhub/drive/pkg/logger"
	"github.com/studyhub/drive/pkg/utils"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testStorageLimit = 1000

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	store *storage.MemoryStore
	svc   *services.Container
}

type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]*services.FetchResult
}

func (f *stubFetcher) Fetch(_ context.Context, u *url.URL) (*services.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.responses[u.String()]
	if !ok {
		return nil, errors.New("unexpected url " + u.String())
	}
	out := *res
	return &out, nil
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupTestEnvWithLimits(t, nil)
}

// setupTestEnvWithLimits builds the full API over an in-memory database. A
// nil limits map disables rate limiting.
func setupTestEnvWithLimits(t *testing.T, limits map[string]int) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.SetOutput(io.Discard)
		utils.ConfigureJWT("test-secret")
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	store := storage.NewMemoryStore(nil)
	svc := services.NewContainer(services.Dependencies{
		DB:    db,
		Store: store,
		Fetcher: &stubFetcher{responses: map[string]*services.FetchResult{
			"https://example.com/notes.txt": {Data: []byte("remote notes"), ContentType: "text/plain"},
		}},
		Drive: config.DriveConfig{
			DefaultStorageLimit: testStorageLimit,
			MaxFileSize:         10_000,
			MaxFolderDepth:      8,
			MaxTags:             5,
		},
	})

	var limiter ratelimit.Limiter
	if limits != nil {
		mem := ratelimit.NewMemory(limits, time.Minute, time.Minute)
		t.Cleanup(func() { _ = mem.Close() })
		limiter = mem
	}

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	RegisterRoutes(app, svc, limiter, nil)

	return &testEnv{app: app, db: db, store: store, svc: svc}
}

// newTestUser returns a fresh user id and a bearer token for it.
func newTestUser(t *testing.T) (uuid.UUID, string) {
	t.Helper()
	userID := uuid.New()
	token, err := utils.GenerateToken(userID, time.Hour)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}
	return userID, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

// uploadFile posts data as a multipart upload with optional extra form
// fields.
func uploadFile(t *testing.T, app *fiber.App, token, filename string, data []byte, fields map[string]string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed writing form field: %v", err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", "text/plain")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed creating form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed writing form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	headers := authHeaders(token)
	headers["Content-Type"] = writer.FormDataContentType()
	return performRequest(t, app, http.MethodPost, "/api/drive/files", &body, headers)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func decodeData(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body := decodeJSONMap(t, resp)
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %+v", body)
	}
	return data
}

func decodeList(t *testing.T, resp *http.Response) []any {
	t.Helper()
	body := decodeJSONMap(t, resp)
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected list data, got %+v", body)
	}
	return data
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d body=%s", expected, resp.StatusCode, string(raw))
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func createFolder(t *testing.T, env *testEnv, token, name string, parentID string) map[string]any {
	t.Helper()
	payload := map[string]any{"name": name}
	if parentID != "" {
		payload["parentId"] = parentID
	}
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/drive/folders", payload, authHeaders(token))
	assertStatus(t, resp, fiber.StatusCreated)
	return decodeData(t, resp)
}

func uploadOK(t *testing.T, env *testEnv, token, filename string, data []byte) map[string]any {
	t.Helper()
	resp := uploadFile(t, env.app, token, filename, data, nil)
	assertStatus(t, resp, fiber.StatusCreated)
	return decodeData(t, resp)
}
