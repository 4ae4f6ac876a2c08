package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/petal-labs/petalplan/cond"
	"github.com/petal-labs/petalplan/eval"
)

// GoalWatch is a condition checked on a cron schedule against the live
// state. Watches never apply effects; they only observe.
type GoalWatch struct {
	ID          string       `json:"id"`
	Expression  string       `json:"expression"`
	Schedule    string       `json:"schedule"`
	CreatedAt   time.Time    `json:"created_at"`
	NextRun     time.Time    `json:"next_run"`
	LastChecked *time.Time   `json:"last_checked,omitempty"`
	LastResult  *eval.Result `json:"last_result,omitempty"`
}

// ErrWatchNotFound is returned when a watch ID is unknown.
var ErrWatchNotFound = errors.New("watch not found")

// Watch schedules are five-field cron expressions interpreted in UTC.
// Timezone prefixes are rejected so a watch never drifts with the host zone.
var watchScheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// nextWatchRun returns the first run of the schedule strictly after now.
func nextWatchRun(schedule string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(schedule)
	if s == "" {
		return time.Time{}, errors.New("watch schedule is required")
	}
	if strings.Contains(strings.ToUpper(s), "TZ=") {
		return time.Time{}, errors.New("watch schedules are UTC only")
	}
	parsed, err := watchScheduleParser.Parse(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid watch schedule: %w", err)
	}
	return parsed.Next(now.UTC()), nil
}

// WatchStore is a thread-safe in-memory registry of goal watches.
type WatchStore struct {
	mu      sync.RWMutex
	watches map[string]GoalWatch
}

// NewWatchStore creates an empty watch store.
func NewWatchStore() *WatchStore {
	return &WatchStore{watches: make(map[string]GoalWatch)}
}

// Create validates the expression and schedule and registers a new watch.
func (s *WatchStore) Create(expression, schedule string, now time.Time) (GoalWatch, error) {
	if _, err := cond.Parse(expression, nil); err != nil {
		return GoalWatch{}, fmt.Errorf("invalid expression: %w", err)
	}
	next, err := nextWatchRun(schedule, now)
	if err != nil {
		return GoalWatch{}, err
	}

	w := GoalWatch{
		ID:         uuid.New().String(),
		Expression: expression,
		Schedule:   schedule,
		CreatedAt:  now.UTC(),
		NextRun:    next,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.watches[w.ID] = w
	return w, nil
}

// Get returns the watch with the given ID.
func (s *WatchStore) Get(id string) (GoalWatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.watches[id]
	if !ok {
		return GoalWatch{}, ErrWatchNotFound
	}
	return w, nil
}

// List returns all watches ordered by creation time.
func (s *WatchStore) List() []GoalWatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GoalWatch, 0, len(s.watches))
	for _, w := range s.watches {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes the watch with the given ID.
func (s *WatchStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watches[id]; !ok {
		return ErrWatchNotFound
	}
	delete(s.watches, id)
	return nil
}

// due returns the watches whose next run is at or before now.
func (s *WatchStore) due(now time.Time) []GoalWatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []GoalWatch
	for _, w := range s.watches {
		if !w.NextRun.After(now) {
			out = append(out, w)
		}
	}
	return out
}

// markChecked records a check result and advances the watch's next run. A
// watch deleted while its check was in flight stays deleted.
func (s *WatchStore) markChecked(id string, res eval.Result, checked, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watches[id]
	if !ok {
		return
	}
	at := checked.UTC()
	w.LastChecked = &at
	w.LastResult = &res
	w.NextRun = next
	s.watches[id] = w
}

const defaultWatchPollInterval = 5 * time.Second

// GoalWatcherConfig configures the background goal watcher.
type GoalWatcherConfig struct {
	Store        *WatchStore
	Evaluator    *eval.Evaluator
	PollInterval time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

// GoalWatcher periodically evaluates due goal watches.
type GoalWatcher struct {
	store        *WatchStore
	evaluator    *eval.Evaluator
	pollInterval time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGoalWatcher creates a goal watcher instance.
func NewGoalWatcher(cfg GoalWatcherConfig) (*GoalWatcher, error) {
	if cfg.Store == nil {
		return nil, errors.New("goal watcher store is nil")
	}
	if cfg.Evaluator == nil {
		return nil, errors.New("goal watcher evaluator is nil")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultWatchPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GoalWatcher{
		store:        cfg.Store,
		evaluator:    cfg.Evaluator,
		pollInterval: cfg.PollInterval,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}, nil
}

// Start starts background polling. Starting a running watcher is a no-op.
func (g *GoalWatcher) Start() {
	g.mu.Lock()
	if g.cancel != nil {
		g.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	g.cancel = cancel
	g.done = done
	g.mu.Unlock()

	go func() {
		defer close(done)
		g.RunOnce(loopCtx)
		ticker := time.NewTicker(g.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				g.RunOnce(loopCtx)
			}
		}
	}()
}

// Stop stops background polling and waits for the loop to exit.
func (g *GoalWatcher) Stop(ctx context.Context) error {
	g.mu.Lock()
	cancel := g.cancel
	done := g.done
	g.cancel = nil
	g.done = nil
	g.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce evaluates every due watch a single time.
func (g *GoalWatcher) RunOnce(ctx context.Context) {
	now := g.now()
	for _, w := range g.store.due(now) {
		res := g.checkWatch(ctx, w)

		next, err := nextWatchRun(w.Schedule, now)
		if err != nil {
			// The schedule was validated at creation, so this only happens
			// if validation and parsing drift apart.
			g.logger.Error("watch schedule unparseable", "watch_id", w.ID, "schedule", w.Schedule, "error", err)
			continue
		}
		g.store.markChecked(w.ID, res, now, next)

		g.logger.Info("goal watch checked",
			"watch_id", w.ID,
			"expression", w.Expression,
			"success", res.Success,
			"truth", res.Truth,
		)
	}
}

func (g *GoalWatcher) checkWatch(ctx context.Context, w GoalWatch) eval.Result {
	c, err := cond.Parse(w.Expression, nil)
	if err != nil {
		g.logger.Error("watch expression unparseable", "watch_id", w.ID, "error", err)
		return eval.Result{}
	}
	t, root := cond.Lower(c, nil)
	return g.evaluator.Evaluate(ctx, &t, root, false)
}
