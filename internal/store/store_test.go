package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yangwenmai/aiworkspace/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func makeArtifact(id string, expiresAt time.Time) model.Artifact {
	return model.Artifact{
		ID:        id,
		Name:      "qans_" + id + ".mp3",
		Kind:      model.ArtifactSpeech,
		Path:      "/tmp/qans_" + id + ".mp3",
		CreatedAt: expiresAt.Add(-time.Hour).UTC().Format(time.RFC3339),
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}
}

func TestRecordAndGetArtifact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := makeArtifact("a1", time.Now().Add(time.Hour))

	if err := s.RecordArtifact(ctx, a); err != nil {
		t.Fatalf("RecordArtifact: %v", err)
	}

	got, err := s.GetArtifactByName(ctx, a.Name)
	if err != nil {
		t.Fatalf("GetArtifactByName: %v", err)
	}
	if got.ID != "a1" {
		t.Errorf("ID = %q, want %q", got.ID, "a1")
	}
	if got.Kind != model.ArtifactSpeech {
		t.Errorf("Kind = %q, want %q", got.Kind, model.ArtifactSpeech)
	}
}

func TestGetArtifactByName_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetArtifactByName(context.Background(), "missing.mp3")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestRecordArtifact_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := makeArtifact("a1", time.Now())
	if err := s.RecordArtifact(ctx, a); err != nil {
		t.Fatalf("RecordArtifact: %v", err)
	}
	a.ID = "a2"
	if err := s.RecordArtifact(ctx, a); err == nil {
		t.Fatal("expected unique constraint error for duplicate name")
	}
}

func TestListExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, a := range []model.Artifact{
		makeArtifact("old", now.Add(-2*time.Hour)),
		makeArtifact("older", now.Add(-3*time.Hour)),
		makeArtifact("fresh", now.Add(time.Hour)),
	} {
		if err := s.RecordArtifact(ctx, a); err != nil {
			t.Fatalf("RecordArtifact: %v", err)
		}
	}

	expired, err := s.ListExpired(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListExpired: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("expired = %d, want 2", len(expired))
	}
	if expired[0].ID != "older" {
		t.Errorf("first expired = %q, want oldest first", expired[0].ID)
	}

	limited, err := s.ListExpired(ctx, now, 1)
	if err != nil {
		t.Fatalf("ListExpired: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}
}

func TestDeleteArtifact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.RecordArtifact(ctx, makeArtifact("a1", time.Now())); err != nil {
		t.Fatalf("RecordArtifact: %v", err)
	}

	if err := s.DeleteArtifact(ctx, "a1"); err != nil {
		t.Fatalf("DeleteArtifact: %v", err)
	}
	if _, err := s.GetArtifactByName(ctx, "qans_a1.mp3"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetArtifactByName after delete: err = %v, want sql.ErrNoRows", err)
	}
	if err := s.DeleteArtifact(ctx, "a1"); err != nil {
		t.Errorf("deleting missing id should not fail: %v", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if _, err := New(db); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, err := New(db); err != nil {
		t.Fatalf("second New: %v", err)
	}
}
