package handlers

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestFolderHandlers(t *testing.T) {
	env := setupTestEnv(t)
	_, token := newTestUser(t)

	root := createFolder(t, env, token, "Biology", "")
	rootID := root["id"].(string)

	t.Run("nested folders carry materialized paths", func(t *testing.T) {
		child := createFolder(t, env, token, "Cells", rootID)
		if child["path"] != "/Biology/Cells" {
			t.Fatalf("expected /Biology/Cells, got %v", child["path"])
		}

		resp := performRequest(t, env.app, http.MethodGet, "/api/drive/folders/"+child["id"].(string)+"/path", nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)
		data := decodeData(t, resp)
		ancestors, _ := data["ancestors"].([]any)
		if data["path"] != "/Biology/Cells" || len(ancestors) != 2 {
			t.Fatalf("unexpected breadcrumbs %+v", data)
		}
	})

	t.Run("duplicate sibling name is a conflict", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/drive/folders", map[string]any{"name": "Biology"}, authHeaders(token))
		assertStatus(t, resp, fiber.StatusConflict)
		body := decodeJSONMap(t, resp)
		data, _ := body["data"].(map[string]any)
		if data["name"] != "Biology" {
			t.Fatalf("expected conflicting name in data, got %+v", body)
		}
	})

	t.Run("missing name fails validation", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/drive/folders", map[string]any{}, authHeaders(token))
		assertStatus(t, resp, fiber.StatusBadRequest)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "name failed on 'required'")
	})

	t.Run("list filters by parent", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/drive/folders", nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)
		if got := len(decodeList(t, resp)); got != 1 {
			t.Fatalf("expected one root folder, got %d", got)
		}

		resp = performRequest(t, env.app, http.MethodGet, "/api/drive/folders?parentId="+rootID, nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)
		if got := len(decodeList(t, resp)); got != 1 {
			t.Fatalf("expected one child folder, got %d", got)
		}

		resp = performRequest(t, env.app, http.MethodGet, "/api/drive/folders?parentId=nope", nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusBadRequest)
	})

	t.Run("rename rewrites descendant paths", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/drive/folders/"+rootID, map[string]any{"name": "Life Sciences"}, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)

		resp = performRequest(t, env.app, http.MethodGet, "/api/drive/folders?parentId="+rootID, nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)
		children := decodeList(t, resp)
		child, _ := children[0].(map[string]any)
		if child["path"] != "/Life Sciences/Cells" {
			t.Fatalf("expected rewritten child path, got %v", child["path"])
		}
	})

	t.Run("copy duplicates the subtree", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/drive/folders/"+rootID+"/copy", map[string]any{"newName": "Backup"}, authHeaders(token))
		assertStatus(t, resp, fiber.StatusCreated)
		data := decodeData(t, resp)
		if data["path"] != "/Backup" || data["id"] == rootID {
			t.Fatalf("unexpected copy %+v", data)
		}
	})

	t.Run("other users cannot see the folder", func(t *testing.T) {
		_, otherToken := newTestUser(t)
		resp := performRequest(t, env.app, http.MethodGet, "/api/drive/folders/"+rootID+"/path", nil, authHeaders(otherToken))
		assertStatus(t, resp, fiber.StatusNotFound)
	})

	t.Run("delete moves the folder to trash", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, "/api/drive/folders/"+rootID, nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)

		resp = performRequest(t, env.app, http.MethodGet, "/api/drive/trash", nil, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)
		data := decodeData(t, resp)
		folders, _ := data["folders"].([]any)
		if len(folders) != 1 {
			t.Fatalf("expected only the trashed root in trash, got %d", len(folders))
		}
	})
}
