package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

func TestAnchorStore(t *testing.T) {
	t.Run("LoadMissingFile", func(t *testing.T) {
		store := NewAnchorStore(filepath.Join(t.TempDir(), "anchors.json"))

		anchors, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(anchors) != 0 {
			t.Errorf("len(anchors) = %d, want 0", len(anchors))
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		store := NewAnchorStore(filepath.Join(t.TempDir(), "anchors.json"))

		anchor := PersistedAnchor{
			Name:    "kitchen-table",
			Pose:    xr.Pose{Position: xr.Vector3{X: 1, Y: 0, Z: -2}},
			SavedAt: time.Now(),
		}
		if err := store.Save(anchor); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		anchors, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(anchors) != 1 {
			t.Fatalf("len(anchors) = %d, want 1", len(anchors))
		}
		if anchors[0].Name != "kitchen-table" {
			t.Errorf("Name = %q, want kitchen-table", anchors[0].Name)
		}
		if anchors[0].Pose.Position.X != 1 {
			t.Errorf("Pose.Position.X = %v, want 1", anchors[0].Pose.Position.X)
		}
	})

	t.Run("SaveReplacesByName", func(t *testing.T) {
		store := NewAnchorStore(filepath.Join(t.TempDir(), "anchors.json"))

		store.Save(PersistedAnchor{Name: "a", Pose: xr.Pose{Position: xr.Vector3{X: 1}}})
		store.Save(PersistedAnchor{Name: "a", Pose: xr.Pose{Position: xr.Vector3{X: 2}}})

		anchors, _ := store.Load()
		if len(anchors) != 1 {
			t.Fatalf("len(anchors) = %d, want 1", len(anchors))
		}
		if anchors[0].Pose.Position.X != 2 {
			t.Errorf("Pose.Position.X = %v, want 2", anchors[0].Pose.Position.X)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		store := NewAnchorStore(filepath.Join(t.TempDir(), "anchors.json"))

		store.Save(PersistedAnchor{Name: "a"})
		store.Save(PersistedAnchor{Name: "b"})

		if err := store.Remove("a"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}

		anchors, _ := store.Load()
		if len(anchors) != 1 || anchors[0].Name != "b" {
			t.Errorf("anchors = %v, want only b", anchors)
		}
	})

	t.Run("RemoveMissing", func(t *testing.T) {
		store := NewAnchorStore(filepath.Join(t.TempDir(), "anchors.json"))

		if err := store.Remove("ghost"); err != ErrAnchorNotFound {
			t.Errorf("Remove() error = %v, want ErrAnchorNotFound", err)
		}
	})
}
