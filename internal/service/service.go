// Package service is the owner-facing interface of the engine used by the
// CLI and the HTTP API.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/julianstephens/daybook/internal/calendar"
	"github.com/julianstephens/daybook/internal/constants"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/repository"
	"github.com/julianstephens/daybook/internal/schedule"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/streak"
	"github.com/julianstephens/daybook/internal/timeblock"
)

type Service struct {
	habits    *repository.Habits
	schedules *repository.Schedules
	settings  *repository.Settings
	now       func() time.Time
	blocks    *timeblock.Generator

	mu       sync.Mutex
	sessions map[string]*session
}

// session is the loaded state of one owner.
type session struct {
	mu       sync.Mutex
	settings models.Settings
	policy   *calendar.Policy
	engine   *streak.Engine
	agg      *schedule.Aggregator
}

type Option func(*Service)

// WithClock overrides time.Now for every owner.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBlockMinutes sets the length of generated time blocks.
func WithBlockMinutes(n int) Option {
	return func(s *Service) { s.blocks = timeblock.New(n) }
}

func New(store storage.Store, opts ...Option) *Service {
	s := &Service{
		habits:    repository.NewHabits(store),
		schedules: repository.NewSchedules(store),
		settings:  repository.NewSettings(store),
		now:       time.Now,
		blocks:    timeblock.New(constants.DefaultBlockMin),
		sessions:  make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close cancels every period watch and waits for pending habit writes.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.agg.Unwatch()
		sess.engine.Wait()
	}
	s.sessions = make(map[string]*session)
}

// session returns the loaded state of ownerID, creating the owner's settings
// on first use.
func (s *Service) session(ctx context.Context, ownerID string) (*session, error) {
	if err := storage.ValidateSegment(ownerID); err != nil {
		return nil, apperrors.InvalidTransition("owner", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[ownerID]; ok {
		return sess, nil
	}

	settings, err := s.loadSettings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	policy, err := calendar.FromSettings(settings)
	if err != nil {
		return nil, apperrors.InvalidTransition("load settings", err.Error())
	}

	engine := streak.NewEngine(s.habits, ownerID, policy, streak.WithClock(s.now))
	if err := engine.Load(ctx); err != nil {
		return nil, err
	}
	agg := schedule.New(s.schedules, ownerID, policy,
		schedule.WithClock(s.now),
		schedule.WithDayDefaults(settings.WakeTime, settings.SleepTime),
	)

	sess := &session{settings: settings, policy: policy, engine: engine, agg: agg}
	s.sessions[ownerID] = sess
	logger.Debug("Loaded owner session", "owner", ownerID, "habits", len(engine.Habits()))
	return sess, nil
}

func (s *Service) loadSettings(ctx context.Context, ownerID string) (models.Settings, error) {
	settings, err := s.settings.Get(ctx, ownerID)
	if err == nil {
		return settings, nil
	}
	if !apperrors.IsNotFound(err) {
		return models.Settings{}, apperrors.EnsurePersistence("load settings", err)
	}

	settings = models.Settings{
		OwnerID:          ownerID,
		AccountCreatedAt: s.now().UTC(),
		Timezone:         constants.DefaultTimezone,
		WeekRules:        []models.WeekRule{},
		WakeTime:         constants.DefaultWakeTime,
		SleepTime:        constants.DefaultSleepTime,
	}
	if err := s.settings.Save(ctx, settings); err != nil {
		return models.Settings{}, apperrors.EnsurePersistence("create settings", err)
	}
	logger.Debug("Created default settings", "owner", ownerID)
	return settings, nil
}

func (sess *session) snapshot() (models.Settings, *calendar.Policy) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.settings, sess.policy
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}
