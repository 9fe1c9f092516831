package service

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/streak"
)

// HabitSpec describes a habit to create.
type HabitSpec struct {
	Title          string                `json:"title"`
	Description    string                `json:"description,omitempty"`
	Goal           string                `json:"goal,omitempty"`
	MetricCategory models.MetricCategory `json:"metric_category,omitempty"`
	MetricType     models.MetricType     `json:"metric_type"`
	StartDate      time.Time             `json:"start_date"`
}

// ToggleResult is a committed habit toggle.
type ToggleResult struct {
	Habit   models.Habit   `json:"habit"`
	Outcome streak.Outcome `json:"outcome"`
}

// ListHabits runs the daily reset sweep and returns the owner's habits,
// newest start date first.
func (s *Service) ListHabits(ctx context.Context, ownerID string) ([]models.Habit, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if _, err := sess.engine.DailyResetIfNeeded(ctx); err != nil {
		logger.Warn("Daily reset incomplete", "owner", ownerID, "error", err)
	}
	return sess.engine.Habits(), nil
}

// ResetHabits runs the daily reset sweep and reports how many habits it
// cleared.
func (s *Service) ResetHabits(ctx context.Context, ownerID string) (int, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return sess.engine.DailyResetIfNeeded(ctx)
}

func (s *Service) AddHabit(ctx context.Context, ownerID string, spec HabitSpec) (models.Habit, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return models.Habit{}, err
	}
	category, err := models.ParseMetricCategory(string(spec.MetricCategory))
	if err != nil {
		return models.Habit{}, apperrors.InvalidTransition("add habit", err.Error())
	}
	return sess.engine.Add(ctx, models.Habit{
		Title:          strings.TrimSpace(spec.Title),
		Description:    spec.Description,
		Goal:           spec.Goal,
		MetricCategory: category,
		MetricType:     spec.MetricType,
		StartDate:      spec.StartDate,
		DailyRecords:   []models.DailyRecord{},
	})
}

func (s *Service) DeleteHabit(ctx context.Context, ownerID, habitID string) error {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return err
	}
	if _, ok := sess.engine.Habit(habitID); !ok {
		return apperrors.NotFound("habit " + habitID)
	}
	return sess.engine.Delete(ctx, habitID)
}

// ToggleHabit flips today's completion of a habit and waits for the write.
// On failure the habit is back in its pre-toggle state and the returned
// error is retryable.
func (s *Service) ToggleHabit(ctx context.Context, ownerID, habitID string) (ToggleResult, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return ToggleResult{}, err
	}
	h, out, done, err := sess.engine.Toggle(ctx, habitID)
	if err != nil {
		return ToggleResult{}, err
	}
	select {
	case err := <-done:
		if err != nil {
			return ToggleResult{}, err
		}
	case <-ctx.Done():
		return ToggleResult{}, apperrors.Persistence("toggle habit", ctx.Err())
	}
	return ToggleResult{Habit: h, Outcome: out}, nil
}

// FindHabit resolves a habit by id or, failing that, by exact title.
func (s *Service) FindHabit(ctx context.Context, ownerID, ref string) (models.Habit, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return models.Habit{}, err
	}
	if h, ok := sess.engine.Habit(ref); ok {
		return h, nil
	}
	for _, h := range sess.engine.Habits() {
		if h.Title == ref {
			return h, nil
		}
	}
	return models.Habit{}, apperrors.NotFound("habit " + ref)
}
