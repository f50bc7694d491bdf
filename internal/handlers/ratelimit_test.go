package handlers

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/studyhub/drive/internal/ratelimit"
)

func TestRateLimitedRoutes(t *testing.T) {
	env := setupTestEnvWithLimits(t, map[string]int{ratelimit.ClassFolderCreate: 2})
	_, token := newTestUser(t)
	_, otherToken := newTestUser(t)

	createFolder(t, env, token, "One", "")
	createFolder(t, env, token, "Two", "")

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/drive/folders", map[string]any{"name": "Three"}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusTooManyRequests)
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	body := decodeJSONMap(t, resp)
	assertEnvelopeError(t, body, "rate limit exceeded")
	data, _ := body["data"].(map[string]any)
	if data["resetTime"] == nil || data["class"] != ratelimit.ClassFolderCreate {
		t.Fatalf("expected reset time and class, got %+v", body)
	}

	t.Run("other classes are unaffected", func(t *testing.T) {
		resp := uploadFile(t, env.app, token, "still.txt", []byte("still allowed"), nil)
		assertStatus(t, resp, fiber.StatusCreated)
	})

	t.Run("other users have their own budget", func(t *testing.T) {
		createFolder(t, env, otherToken, "One", "")
	})
}
