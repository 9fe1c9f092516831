package streak

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/daybook/internal/calendar"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/models"
)

// HabitStore is the persistence the engine needs.
type HabitStore interface {
	List(ctx context.Context, ownerID string) ([]models.Habit, error)
	Save(ctx context.Context, h models.Habit) error
	Delete(ctx context.Context, ownerID, id string) error
}

// Engine owns the optimistic habit cache of one owner. Toggles update the
// cache immediately and persist in the background; a failed write restores
// the pre-toggle snapshot.
type Engine struct {
	store   HabitStore
	ownerID string
	now     func() time.Time

	mu       sync.Mutex
	policy   *calendar.Policy
	habits   map[string]models.Habit
	versions map[string]uint64
	order    []string
	// persisted is the last state of each habit the store accepted.
	persisted map[string]models.Habit
	// writes serializes store writes per habit.
	writes map[string]*sync.Mutex

	pending sync.WaitGroup
}

type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store HabitStore, ownerID string, policy *calendar.Policy, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		ownerID:   ownerID,
		now:       time.Now,
		policy:    policy,
		habits:    make(map[string]models.Habit),
		versions:  make(map[string]uint64),
		persisted: make(map[string]models.Habit),
		writes:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetPolicy swaps the calendar policy after a settings change.
func (e *Engine) SetPolicy(p *calendar.Policy) {
	e.mu.Lock()
	e.policy = p
	e.mu.Unlock()
}

// Load replaces the cache with the owner's stored habits.
func (e *Engine) Load(ctx context.Context) error {
	habits, err := e.store.List(ctx, e.ownerID)
	if err != nil {
		return apperrors.EnsurePersistence("load habits", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.habits = make(map[string]models.Habit, len(habits))
	e.persisted = make(map[string]models.Habit, len(habits))
	e.order = e.order[:0]
	for _, h := range habits {
		e.habits[h.ID] = h.Clone()
		e.persisted[h.ID] = h.Clone()
		e.order = append(e.order, h.ID)
		e.versions[h.ID]++
	}
	e.sortLocked()
	return nil
}

// Habits returns a snapshot of the cache ordered by start date, newest first.
func (e *Engine) Habits() []models.Habit {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Habit, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.habits[id].Clone())
	}
	return out
}

// Habit returns a snapshot of one cached habit.
func (e *Engine) Habit(id string) (models.Habit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.habits[id]
	return h.Clone(), ok
}

// Add persists a new habit and caches it. Missing id, owner, category and
// start date are filled in.
func (e *Engine) Add(ctx context.Context, h models.Habit) (models.Habit, error) {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	h.OwnerID = e.ownerID
	if h.MetricCategory == "" {
		h.MetricCategory = models.MetricCompletion
	}
	if h.StartDate.IsZero() {
		e.mu.Lock()
		h.StartDate = e.policy.StartOfDay(e.now())
		e.mu.Unlock()
	}
	if err := h.Validate(); err != nil {
		return models.Habit{}, apperrors.InvalidTransition("add habit", err.Error())
	}
	if err := e.store.Save(ctx, h); err != nil {
		return models.Habit{}, apperrors.EnsurePersistence("add habit", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.habits[h.ID]; !exists {
		e.order = append(e.order, h.ID)
	}
	e.habits[h.ID] = h.Clone()
	e.persisted[h.ID] = h.Clone()
	e.versions[h.ID]++
	e.sortLocked()
	return h, nil
}

// Delete removes a habit from the store and the cache.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidTransition("delete habit", "habit has no id")
	}
	wl := e.writeLock(id)
	wl.Lock()
	defer wl.Unlock()
	if err := e.store.Delete(ctx, e.ownerID, id); err != nil {
		return apperrors.EnsurePersistence("delete habit", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.habits, id)
	delete(e.persisted, id)
	e.versions[id]++
	for i, hid := range e.order {
		if hid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// Toggle flips today's completion of a cached habit. The returned habit is
// the optimistic state; the channel yields the outcome of the background
// write (nil on success) and is then closed.
func (e *Engine) Toggle(ctx context.Context, id string) (models.Habit, Outcome, <-chan error, error) {
	if id == "" {
		return models.Habit{}, Outcome{}, nil, apperrors.InvalidTransition("toggle habit", "habit has no id")
	}

	e.mu.Lock()
	before, ok := e.habits[id]
	if !ok {
		e.mu.Unlock()
		return models.Habit{}, Outcome{}, nil, apperrors.NotFound(fmt.Sprintf("habit %s", id))
	}
	next, out := Apply(before, e.now(), e.policy)
	e.habits[id] = next
	e.versions[id]++
	version := e.versions[id]
	e.mu.Unlock()

	done := make(chan error, 1)
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		defer close(done)
		if err := e.persist(ctx, id, version, next); err != nil {
			logger.Warn("Habit toggle rolled back", "habit", id, "error", err)
			done <- apperrors.EnsurePersistence("toggle habit", err)
			return
		}
		done <- nil
	}()

	return next.Clone(), out, done, nil
}

func (e *Engine) writeLock(id string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	wl, ok := e.writes[id]
	if !ok {
		wl = &sync.Mutex{}
		e.writes[id] = wl
	}
	return wl
}

// persist writes state h of habit id, taken at version. Writes of one habit
// reach the store one at a time and in version order: a write whose version
// was superseded before it got its turn is dropped, since the newer write
// follows it. A failed write restores the last persisted state unless the
// habit changed again meanwhile.
func (e *Engine) persist(ctx context.Context, id string, version uint64, h models.Habit) error {
	wl := e.writeLock(id)
	wl.Lock()
	defer wl.Unlock()

	e.mu.Lock()
	superseded := e.versions[id] != version
	e.mu.Unlock()
	if superseded {
		return nil
	}

	if err := e.store.Save(ctx, h.Clone()); err != nil {
		e.mu.Lock()
		if e.versions[id] == version {
			if prev, ok := e.persisted[id]; ok {
				e.habits[id] = prev.Clone()
			}
			e.versions[id]++
		}
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	e.persisted[id] = h.Clone()
	e.mu.Unlock()
	return nil
}

// DailyResetIfNeeded clears the completion flag of every habit not marked
// today and persists the changed habits. Calling it again the same day is a
// no-op. It returns the number of habits reset.
func (e *Engine) DailyResetIfNeeded(ctx context.Context) (int, error) {
	type change struct {
		after   models.Habit
		version uint64
	}

	e.mu.Lock()
	now := e.now()
	var changes []change
	for _, id := range e.order {
		h := e.habits[id]
		if !NeedsReset(h, now, e.policy) {
			continue
		}
		after := ResetCompletion(h)
		e.habits[id] = after
		e.versions[id]++
		changes = append(changes, change{after: after, version: e.versions[id]})
	}
	e.mu.Unlock()

	var errs []error
	reset := 0
	for _, c := range changes {
		if err := e.persist(ctx, c.after.ID, c.version, c.after); err != nil {
			errs = append(errs, apperrors.EnsurePersistence("reset habit "+c.after.ID, err))
			continue
		}
		reset++
	}
	if reset > 0 {
		logger.Info("Daily habit reset", "owner", e.ownerID, "reset", reset)
	}
	return reset, errors.Join(errs...)
}

// Wait blocks until every background toggle write has finished.
func (e *Engine) Wait() {
	e.pending.Wait()
}

func (e *Engine) sortLocked() {
	sort.SliceStable(e.order, func(i, j int) bool {
		return e.habits[e.order[i]].StartDate.After(e.habits[e.order[j]].StartDate)
	})
}
