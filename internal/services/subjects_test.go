package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/models"
)

func TestSubjectService(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	user := uuid.New()
	subjectID := uuid.New()

	folder, created, err := env.svc.Subjects.Ensure(ctx, user, subjectID, "Physics")
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if !created || folder.Name != "Subjects - Physics" || folder.SubjectID == nil || *folder.SubjectID != subjectID {
		t.Fatalf("unexpected subject folder %+v", folder)
	}

	t.Run("ensure is idempotent", func(t *testing.T) {
		again, created, err := env.svc.Subjects.Ensure(ctx, user, subjectID, "Physics")
		if err != nil {
			t.Fatalf("ensure failed: %v", err)
		}
		if created || again.ID != folder.ID {
			t.Fatal("expected the existing folder")
		}
	})

	t.Run("rename rewrites the subtree", func(t *testing.T) {
		child := env.folder(t, user, &folder.ID, "Mechanics")
		renamed, err := env.svc.Subjects.Rename(ctx, user, subjectID, "Applied Physics")
		if err != nil {
			t.Fatalf("rename failed: %v", err)
		}
		if renamed.Path != "Subjects - Applied Physics" {
			t.Fatalf("unexpected path %q", renamed.Path)
		}
		got, _ := env.svc.Folders.Get(ctx, user, child.ID)
		if got.Path != "Subjects - Applied Physics/Mechanics" {
			t.Fatalf("unexpected child path %q", got.Path)
		}
	})

	t.Run("delete trashes the folder and ensure starts over", func(t *testing.T) {
		if err := env.svc.Subjects.Delete(ctx, user, subjectID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := env.svc.Folders.Get(ctx, user, folder.ID); !IsKind(err, KindNotFound) {
			t.Fatalf("expected folder in trash, got %v", err)
		}
		if n := countRows(t, env.db, &models.ActivityLogEntry{}, "action = ? AND target_id = ?", ActionSubjectDelete, folder.ID); n != 1 {
			t.Fatalf("expected one subject delete entry, got %d", n)
		}
		expectKind(t, env.svc.Subjects.Delete(ctx, user, subjectID), KindNotFound)

		fresh, created, err := env.svc.Subjects.Ensure(ctx, user, subjectID, "Applied Physics")
		if err != nil || !created || fresh.ID == folder.ID {
			t.Fatalf("expected a fresh subject folder, got %v %v", fresh, err)
		}
	})

	t.Run("unknown subjects are not found", func(t *testing.T) {
		_, err := env.svc.Subjects.Rename(ctx, user, uuid.New(), "X")
		expectKind(t, err, KindNotFound)
		_, _, err = env.svc.Subjects.Ensure(ctx, user, uuid.New(), "  ")
		expectKind(t, err, KindInvalidInput)
	})
}
