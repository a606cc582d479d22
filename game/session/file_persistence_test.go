package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/gridtactics/game/dispatch"
	"github.com/wricardo/gridtactics/game/engine"
	"github.com/wricardo/gridtactics/game/grid"
	"github.com/wricardo/gridtactics/game/service"
)

func TestFilePersistence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "sessions")
	fp, err := NewFilePersistence(dir)
	if err != nil {
		t.Fatalf("NewFilePersistence failed: %v", err)
	}

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data := &PersistedSessionData{
		ID:             "AB12",
		ScenarioID:     "line",
		CreatedAt:      created,
		LastAccessedAt: created,
		Loadout:        []service.Loadout{{At: grid.Pt(0, 1), Card: "scout"}},
		Events: []dispatch.Event{
			{Seq: 1, Team: engine.TeamPlayer, Change: engine.MoveActiveCurio{Direction: grid.South}, At: created},
			{Seq: 2, Team: engine.TeamPlayer, Change: engine.FinishTurn{}, At: created},
		},
	}

	t.Run("save and load", func(t *testing.T) {
		if err := fp.Save(data); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if !fp.Exists("ab12") || !fp.Exists("AB12") {
			t.Error("Expected case-insensitive file lookup")
		}
		loaded, err := fp.Load("ab12")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.ID != "AB12" || loaded.ScenarioID != "line" || !loaded.CreatedAt.Equal(created) {
			t.Errorf("Unexpected loaded data: %+v", loaded)
		}
		if len(loaded.Events) != 2 {
			t.Fatalf("Expected 2 events, got %d", len(loaded.Events))
		}
		move, ok := loaded.Events[0].Change.(engine.MoveActiveCurio)
		if !ok || move.Direction != grid.South {
			t.Errorf("Expected move south, got %#v", loaded.Events[0].Change)
		}
		if _, ok := loaded.Events[1].Change.(engine.FinishTurn); !ok {
			t.Errorf("Expected finish turn, got %#v", loaded.Events[1].Change)
		}
		if len(loaded.Loadout) != 1 || loaded.Loadout[0].Card != "scout" {
			t.Errorf("Unexpected loadout: %+v", loaded.Loadout)
		}
	})

	t.Run("list ignores other files", func(t *testing.T) {
		os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)
		os.Mkdir(filepath.Join(dir, "sub.json"), 0755)
		ids, err := fp.ListAll()
		if err != nil {
			t.Fatalf("ListAll failed: %v", err)
		}
		if len(ids) != 1 || ids[0] != "ab12" {
			t.Errorf("Expected [ab12], got %v", ids)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := fp.Delete("AB12"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := fp.Delete("AB12"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
		if _, err := fp.Load("AB12"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("nil session", func(t *testing.T) {
		if err := fp.Save(nil); err == nil {
			t.Error("Expected error for nil session")
		}
	})
}
