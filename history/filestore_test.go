package history_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parleyhq/parley/core/protocol"
	"github.com/parleyhq/parley/history"
)

func testArchive(id string) history.Archive {
	return history.Archive{
		SessionID: id,
		ThreadRef: "thread_" + id,
		ClosedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Turns: []protocol.Turn{
			protocol.NewTurn(protocol.RoleUser, "Hello"),
			protocol.NewTurn(protocol.RoleAssistant, "Hi there"),
		},
	}
}

func TestFileStore_List_EmptyDir(t *testing.T) {
	store := history.NewFileStore(t.TempDir())

	ids, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("List() returned %d ids, want 0", len(ids))
	}
}

func TestFileStore_List_MissingRoot(t *testing.T) {
	store := history.NewFileStore(filepath.Join(t.TempDir(), "nonexistent"))

	ids, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("List() returned %d ids, want 0", len(ids))
	}
}

func TestFileStore_List_SkipsForeignFiles(t *testing.T) {
	root := t.TempDir()
	store := history.NewFileStore(root)

	if err := store.Save(context.Background(), testArchive("sess_a")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".tmp-leftover"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	ids, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "sess_a" {
		t.Errorf("List() = %v, want [sess_a]", ids)
	}
}

func TestFileStore_List_Sorted(t *testing.T) {
	store := history.NewFileStore(t.TempDir())

	for _, id := range []string{"sess_c", "sess_a", "sess_b"} {
		if err := store.Save(context.Background(), testArchive(id)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	ids, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"sess_a", "sess_b", "sess_c"}
	if len(ids) != len(want) {
		t.Fatalf("List() returned %d ids, want %d", len(ids), len(want))
	}
	for i, id := range ids {
		if id != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, id, want[i])
		}
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	store := history.NewFileStore(t.TempDir())
	original := testArchive("sess_1")

	if err := store.Save(context.Background(), original); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load(context.Background(), "sess_1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.SessionID != original.SessionID {
		t.Errorf("SessionID = %q, want %q", loaded.SessionID, original.SessionID)
	}
	if loaded.ThreadRef != original.ThreadRef {
		t.Errorf("ThreadRef = %q, want %q", loaded.ThreadRef, original.ThreadRef)
	}
	if !loaded.ClosedAt.Equal(original.ClosedAt) {
		t.Errorf("ClosedAt = %v, want %v", loaded.ClosedAt, original.ClosedAt)
	}
	if len(loaded.Turns) != 2 {
		t.Fatalf("Turns length = %d, want 2", len(loaded.Turns))
	}
	if loaded.Turns[1].Content != "Hi there" {
		t.Errorf("Turns[1].Content = %q, want %q", loaded.Turns[1].Content, "Hi there")
	}
}

func TestFileStore_Load_NotFound(t *testing.T) {
	store := history.NewFileStore(t.TempDir())

	_, err := store.Load(context.Background(), "nonexistent")
	if !errors.Is(err, history.ErrNotFound) {
		t.Errorf("Load() error = %v, want %v", err, history.ErrNotFound)
	}
}

func TestFileStore_Save_Overwrite(t *testing.T) {
	store := history.NewFileStore(t.TempDir())

	first := testArchive("sess_1")
	if err := store.Save(context.Background(), first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	second := first
	second.Turns = append(second.Turns, protocol.NewTurn(protocol.RoleUser, "One more thing"))
	if err := store.Save(context.Background(), second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load(context.Background(), "sess_1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.Turns) != 3 {
		t.Errorf("Turns length = %d, want 3 after overwrite", len(loaded.Turns))
	}
}

func TestFileStore_Save_EmptyID(t *testing.T) {
	store := history.NewFileStore(t.TempDir())

	err := store.Save(context.Background(), history.Archive{})
	if !errors.Is(err, history.ErrSaveFailed) {
		t.Errorf("Save() error = %v, want %v", err, history.ErrSaveFailed)
	}
}

func TestFileStore_Delete(t *testing.T) {
	store := history.NewFileStore(t.TempDir())

	if err := store.Save(context.Background(), testArchive("sess_1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(context.Background(), "sess_1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(context.Background(), "sess_1"); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("Load() after Delete error = %v, want %v", err, history.ErrNotFound)
	}
}

func TestFileStore_Delete_NonExistent(t *testing.T) {
	store := history.NewFileStore(t.TempDir())

	if err := store.Delete(context.Background(), "nonexistent"); err != nil {
		t.Errorf("Delete() error = %v, want nil for missing archive", err)
	}
}

func TestNewStore_Disabled(t *testing.T) {
	cfg := history.DefaultConfig()

	store, err := history.NewStore(&cfg)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if store != nil {
		t.Error("NewStore() with empty path should return nil store")
	}
}
