package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/ratelimit"
	"github.com/studyhub/drive/pkg/logger"
	"github.com/studyhub/drive/pkg/utils"
)

var setupOnce sync.Once

func setup() {
	setupOnce.Do(func() {
		logger.SetOutput(io.Discard)
		utils.ConfigureJWT("middleware-secret")
	})
}

type fakeLimiter struct {
	decision ratelimit.Decision
	err      error
	calls    int
}

func (f *fakeLimiter) Check(_ context.Context, _ uuid.UUID, _ string) (ratelimit.Decision, error) {
	f.calls++
	return f.decision, f.err
}

func (f *fakeLimiter) Close() error { return nil }

func newApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	chain := append(handlers, func(c *fiber.Ctx) error {
		id, ok := GetUserID(c)
		if !ok {
			return c.SendString("anonymous")
		}
		return c.SendString(id.String())
	})
	app.Get("/", chain...)
	return app
}

func doRequest(t *testing.T, app *fiber.App, authorization string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading body: %v", err)
	}
	return resp, string(raw)
}

func TestRequireAuth(t *testing.T) {
	setup()
	app := newApp(RequireAuth)

	userID := uuid.New()
	token, err := utils.GenerateToken(userID, time.Hour)
	if err != nil {
		t.Fatalf("failed generating token: %v", err)
	}
	expired, err := utils.GenerateToken(userID, -time.Minute)
	if err != nil {
		t.Fatalf("failed generating token: %v", err)
	}

	tests := []struct {
		name          string
		authorization string
		status        int
		body          string
	}{
		{name: "valid token", authorization: "Bearer " + token, status: fiber.StatusOK, body: userID.String()},
		{name: "missing header", status: fiber.StatusUnauthorized},
		{name: "wrong scheme", authorization: "Basic abc", status: fiber.StatusUnauthorized},
		{name: "empty bearer", authorization: "Bearer ", status: fiber.StatusUnauthorized},
		{name: "expired token", authorization: "Bearer " + expired, status: fiber.StatusUnauthorized},
		{name: "garbage token", authorization: "Bearer abc.def.ghi", status: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, app, tt.authorization)
			if resp.StatusCode != tt.status {
				t.Fatalf("expected status %d, got %d body=%s", tt.status, resp.StatusCode, body)
			}
			if tt.body != "" && body != tt.body {
				t.Fatalf("expected body %q, got %q", tt.body, body)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	setup()
	userID := uuid.New()
	token, err := utils.GenerateToken(userID, time.Hour)
	if err != nil {
		t.Fatalf("failed generating token: %v", err)
	}

	t.Run("allowed requests pass with budget headers", func(t *testing.T) {
		limiter := &fakeLimiter{decision: ratelimit.Decision{Allowed: true, Limit: 5, Remaining: 4}}
		app := newApp(RequireAuth, RateLimit(limiter, ratelimit.ClassCopy, nil))

		resp, body := doRequest(t, app, "Bearer "+token)
		if resp.StatusCode != fiber.StatusOK || body != userID.String() {
			t.Fatalf("expected pass through, got %d %q", resp.StatusCode, body)
		}
		if resp.Header.Get("X-RateLimit-Remaining") != "4" {
			t.Fatalf("expected remaining header 4, got %q", resp.Header.Get("X-RateLimit-Remaining"))
		}
	})

	t.Run("denied requests get 429", func(t *testing.T) {
		limiter := &fakeLimiter{decision: ratelimit.Decision{
			Allowed: false,
			Limit:   5,
			ResetAt: time.Now().Add(30 * time.Second),
		}}
		app := newApp(RequireAuth, RateLimit(limiter, ratelimit.ClassCopy, nil))

		resp, body := doRequest(t, app, "Bearer "+token)
		if resp.StatusCode != fiber.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", resp.StatusCode)
		}
		if resp.Header.Get("Retry-After") == "" {
			t.Fatalf("expected Retry-After header")
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			t.Fatalf("failed decoding body: %v", err)
		}
		data, _ := payload["data"].(map[string]any)
		if data["class"] != ratelimit.ClassCopy || data["resetTime"] == nil {
			t.Fatalf("unexpected payload %+v", payload)
		}
	})

	t.Run("limiter failure lets the request through", func(t *testing.T) {
		limiter := &fakeLimiter{err: errors.New("redis down")}
		app := newApp(RequireAuth, RateLimit(limiter, ratelimit.ClassCopy, nil))

		resp, _ := doRequest(t, app, "Bearer "+token)
		if resp.StatusCode != fiber.StatusOK || limiter.calls != 1 {
			t.Fatalf("expected fail open, got %d after %d calls", resp.StatusCode, limiter.calls)
		}
	})

	t.Run("anonymous requests are not charged", func(t *testing.T) {
		limiter := &fakeLimiter{decision: ratelimit.Decision{Allowed: false}}
		app := newApp(RateLimit(limiter, ratelimit.ClassCopy, nil))

		resp, body := doRequest(t, app, "")
		if resp.StatusCode != fiber.StatusOK || body != "anonymous" || limiter.calls != 0 {
			t.Fatalf("expected anonymous pass through, got %d %q", resp.StatusCode, body)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	setup()
	app := fiber.New()
	app.Use(RequestLogger())
	app.Get("/", func(c *fiber.Ctx) error {
		id, _ := c.Locals("requestID").(string)
		return c.SendString(id)
	})

	t.Run("keeps caller request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc123")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "abc123" || resp.Header.Get("X-Request-ID") != "abc123" {
			t.Fatalf("expected request id abc123, got body=%q header=%q", body, resp.Header.Get("X-Request-ID"))
		}
	})

	t.Run("generates one when missing", func(t *testing.T) {
		resp, body := doRequest(t, app, "")
		if body == "" || resp.Header.Get("X-Request-ID") != body {
			t.Fatalf("expected generated request id echoed, got body=%q header=%q", body, resp.Header.Get("X-Request-ID"))
		}
	})
}
