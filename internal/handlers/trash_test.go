package handlers

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestTrashHandlers(t *testing.T) {
	env := setupTestEnv(t)
	_, token := newTestUser(t)

	t.Run("soft delete and restore a file", func(t *testing.T) {
		file := uploadOK(t, env, token, "restore-me.txt", []byte("restore me"))
		id := file["id"].(string)

		resp := performRequest(t, env.app, http.MethodDelete, "/api/drive/files/"+id, nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)

		resp = performRequest(t, env.app, http.MethodGet, "/api/drive/files/"+id, nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusNotFound)

		resp = performRequest(t, env.app, http.MethodPost, "/api/drive/trash/file/"+id+"/restore", nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)

		resp = performRequest(t, env.app, http.MethodGet, "/api/drive/files/"+id, nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)
	})

	t.Run("restoring a live item is invalid", func(t *testing.T) {
		folder := createFolder(t, env, token, "Live", "")
		resp := performRequest(t, env.app, http.MethodPost, "/api/drive/trash/folder/"+folder["id"].(string)+"/restore", nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusBadRequest)
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, "/api/drive/trash/album/6f1c5d0a-8a7e-4c1b-9a57-8c1ff1b8a001", nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusBadRequest)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "kind must be file or folder")
	})

	t.Run("hard delete releases quota and content", func(t *testing.T) {
		file := uploadOK(t, env, token, "purge.txt", []byte("purge these bytes"))
		id := file["id"].(string)
		objectsBefore := env.store.Len()

		resp := performRequest(t, env.app, http.MethodDelete, "/api/drive/files/"+id, nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)
		resp = performRequest(t, env.app, http.MethodDelete, "/api/drive/trash/file/"+id, nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)

		if got := env.store.Len(); got != objectsBefore-1 {
			t.Fatalf("expected content removed, objects %d -> %d", objectsBefore, got)
		}

		resp = performRequest(t, env.app, http.MethodGet, "/api/drive", nil, authHeaders(token))
		summary := decodeData(t, resp)
		drive, _ := summary["drive"].(map[string]any)
		if drive["storageUsed"] != "10" {
			t.Fatalf("expected only the restored file billed, got %v", drive["storageUsed"])
		}
	})

	t.Run("hard delete of a live item is invalid", func(t *testing.T) {
		file := uploadOK(t, env, token, "alive.txt", []byte("alive"))
		resp := performRequest(t, env.app, http.MethodDelete, "/api/drive/trash/file/"+file["id"].(string), nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusBadRequest)
	})

	t.Run("empty purges everything in trash", func(t *testing.T) {
		folder := createFolder(t, env, token, "Old", "")
		resp := performRequest(t, env.app, http.MethodDelete, "/api/drive/folders/"+folder["id"].(string), nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)

		resp = performRequest(t, env.app, http.MethodDelete, "/api/drive/trash", nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)
		data := decodeData(t, resp)
		if purged, _ := data["purged"].(float64); purged < 1 {
			t.Fatalf("expected purged items, got %+v", data)
		}

		resp = performRequest(t, env.app, http.MethodGet, "/api/drive/trash", nil, authHeaders(token))
		listing := decodeData(t, resp)
		folders, _ := listing["folders"].([]any)
		files, _ := listing["files"].([]any)
		if len(folders) != 0 || len(files) != 0 {
			t.Fatalf("expected empty trash, got %+v", listing)
		}
	})
}
