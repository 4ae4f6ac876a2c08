package server

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/petal-labs/petalplan/eval"
	"github.com/petal-labs/petalplan/state"
)

func TestWatchStoreLifecycle(t *testing.T) {
	s := NewWatchStore()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	w, err := s.Create("(at box1 depot)", "*/5 * * * *", now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if w.ID == "" {
		t.Fatalf("watch has no ID")
	}
	if w.NextRun != now.Add(5*time.Minute) {
		t.Fatalf("NextRun = %v, want %v", w.NextRun, now.Add(5*time.Minute))
	}

	got, err := s.Get(w.ID)
	if err != nil || got.Expression != "(at box1 depot)" {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	if list := s.List(); len(list) != 1 {
		t.Fatalf("List = %v", list)
	}

	if err := s.Delete(w.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(w.ID); err != ErrWatchNotFound {
		t.Fatalf("expected ErrWatchNotFound, got %v", err)
	}
	if err := s.Delete(w.ID); err != ErrWatchNotFound {
		t.Fatalf("double delete should report not found, got %v", err)
	}
}

func TestWatchStoreRejectsInvalidInput(t *testing.T) {
	s := NewWatchStore()
	now := time.Now().UTC()

	if _, err := s.Create("(and (at box1)", "* * * * *", now); err == nil {
		t.Fatalf("expected error for malformed expression")
	}
	if _, err := s.Create("(at box1 depot)", "not-a-cron", now); err == nil {
		t.Fatalf("expected error for malformed schedule")
	}
	if _, err := s.Create("(at box1 depot)", "CRON_TZ=UTC * * * * *", now); err == nil {
		t.Fatalf("expected error for timezone prefix")
	}
}

func TestGoalWatcherRunOnce(t *testing.T) {
	store := NewWatchStore()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	snapshot := state.Snapshot([]state.Predicate{
		{Name: "at", Args: []string{"box1", "depot"}},
	}, nil)
	evaluator := eval.NewEvaluator(eval.Config{
		Store:  snapshot,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	held, err := store.Create("(at box1 depot)", "* * * * *", now.Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	missing, err := store.Create("(at box1 garage)", "* * * * *", now.Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	future, err := store.Create("(at box1 depot)", "0 0 1 1 *", now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	watcher, err := NewGoalWatcher(GoalWatcherConfig{
		Store:     store,
		Evaluator: evaluator,
		Now:       func() time.Time { return now },
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewGoalWatcher: %v", err)
	}

	watcher.RunOnce(context.Background())

	got, _ := store.Get(held.ID)
	if got.LastResult == nil || !got.LastResult.Truth {
		t.Fatalf("held goal result = %+v", got.LastResult)
	}
	if got.LastChecked == nil || !got.NextRun.After(now) {
		t.Fatalf("watch not advanced: %+v", got)
	}

	got, _ = store.Get(missing.ID)
	if got.LastResult == nil || got.LastResult.Truth {
		t.Fatalf("missing goal result = %+v", got.LastResult)
	}

	got, _ = store.Get(future.ID)
	if got.LastChecked != nil {
		t.Fatalf("future watch should not have run: %+v", got)
	}
}

func TestGoalWatcherStartStop(t *testing.T) {
	store := NewWatchStore()
	evaluator := eval.NewEvaluator(eval.Config{
		Store:  state.NewMemState(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	watcher, err := NewGoalWatcher(GoalWatcherConfig{
		Store:        store,
		Evaluator:    evaluator,
		PollInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewGoalWatcher: %v", err)
	}

	watcher.Start()
	watcher.Start() // second start is a no-op

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := watcher.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := watcher.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestNextWatchRun(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)
	next, err := nextWatchRun("0 * * * *", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}

	for _, schedule := range []string{"", "not-a-cron", "CRON_TZ=UTC * * * * *", "TZ=UTC * * * * *"} {
		if _, err := nextWatchRun(schedule, now); err == nil {
			t.Fatalf("schedule %q should be rejected", schedule)
		}
	}
}
