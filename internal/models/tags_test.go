package models

import (
	"testing"
)

func TestParseTagList(t *testing.T) {
	t.Run("accepts JSON array and drops duplicates", func(t *testing.T) {
		tags, err := ParseTagList(`["exam", "math", "exam", " "]`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tags) != 2 || tags[0] != "exam" || tags[1] != "math" {
			t.Fatalf("unexpected tags %v", tags)
		}
	})

	t.Run("accepts comma separated list", func(t *testing.T) {
		tags, err := ParseTagList("b, a ,b,,c")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tags.String() != `["b","a","c"]` {
			t.Fatalf("unexpected tags %s", tags.String())
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		if _, err := ParseTagList(`["a",`); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("round trips through String", func(t *testing.T) {
		original := NewTagList([]string{"z", "y", "z", "x"})
		parsed, err := ParseTagList(original.String())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if parsed.String() != original.String() {
			t.Fatalf("expected %s, got %s", original.String(), parsed.String())
		}
	})
}

func TestTagListScan(t *testing.T) {
	var tags TagList
	if err := tags.Scan([]byte(`["a","b"]`)); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %v", tags)
	}

	if err := tags.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if len(tags) != 0 {
		t.Fatalf("expected empty tags after nil scan, got %v", tags)
	}

	if err := tags.Scan(42); err == nil {
		t.Fatal("expected error for unsupported type")
	}

	var empty TagList
	if empty.String() != "[]" {
		t.Fatalf("expected [] for nil list, got %s", empty.String())
	}
}

func TestDriveAvailable(t *testing.T) {
	d := Drive{StorageUsed: 900, StorageLimit: 1000}
	if d.Available() != 100 {
		t.Fatalf("expected 100 available, got %d", d.Available())
	}
	d.StorageUsed = 1200
	if d.Available() != 0 {
		t.Fatalf("expected 0 available when over limit, got %d", d.Available())
	}
}

func TestCopyPolicyValid(t *testing.T) {
	for _, p := range []CopyPolicy{CopyPolicyAllow, CopyPolicyRequest, CopyPolicyDeny} {
		if !p.Valid() {
			t.Errorf("expected %s to be valid", p)
		}
	}
	if CopyPolicy("MAYBE").Valid() {
		t.Error("expected unknown policy to be invalid")
	}
}
