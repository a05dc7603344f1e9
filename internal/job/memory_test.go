package job

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := New()
	if err := repo.Save(ctx, j); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	found, err := repo.FindByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found.ID != j.ID {
		t.Errorf("ID = %s, want %s", found.ID, j.ID)
	}

	// The repository hands out clones; mutating one must not affect the
	// stored job.
	found.Progress = 77
	again, _ := repo.FindByID(ctx, j.ID)
	if again.Progress == 77 {
		t.Error("repository returned a shared instance")
	}
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.FindByID(context.Background(), "missing")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryRepository_SaveOverwrites(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := New()
	_ = repo.Save(ctx, j)

	j.UpdateProgress(60, "encoding frames")
	_ = repo.Save(ctx, j)

	found, _ := repo.FindByID(ctx, j.ID)
	if found.Progress != 60 {
		t.Errorf("progress = %d, want 60", found.Progress)
	}
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = repo.Save(ctx, New())
	}

	jobs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 3 {
		t.Errorf("len = %d, want 3", len(jobs))
	}
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := New()
	_ = repo.Save(ctx, j)

	if err := repo.Delete(ctx, j.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.FindByID(ctx, j.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound after delete, got %v", err)
	}

	if err := repo.Delete(ctx, j.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound for double delete, got %v", err)
	}
}
