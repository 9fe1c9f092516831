package service

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/daybook/internal/calendar"
	"github.com/julianstephens/daybook/internal/constants"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/models"
)

func (s *Service) Settings(ctx context.Context, ownerID string) (models.Settings, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return models.Settings{}, err
	}
	settings, _ := sess.snapshot()
	return settings, nil
}

// SetWeekStart appends a first-weekday rule effective from effectiveFrom
// (YYYY-MM-DD, today when empty). Weeks that began earlier keep their keys.
func (s *Service) SetWeekStart(ctx context.Context, ownerID string, weekday time.Weekday, effectiveFrom string) (models.Settings, error) {
	return s.updateSettings(ctx, ownerID, func(st *models.Settings, p *calendar.Policy) error {
		if effectiveFrom == "" {
			effectiveFrom = p.Key(models.PeriodDay, s.now())
		}
		rules, err := calendar.AddWeekRule(st.WeekRules, models.WeekRule{EffectiveFrom: effectiveFrom, Weekday: weekday})
		if err != nil {
			return err
		}
		st.WeekRules = rules
		return nil
	})
}

// SetTimezone changes the owner's IANA timezone ("Local" for the system zone).
func (s *Service) SetTimezone(ctx context.Context, ownerID, tz string) (models.Settings, error) {
	return s.updateSettings(ctx, ownerID, func(st *models.Settings, _ *calendar.Policy) error {
		if !calendar.ValidateTimezone(tz) {
			return apperrors.InvalidTransition("set timezone", fmt.Sprintf("unknown timezone %q", tz))
		}
		st.Timezone = tz
		return nil
	})
}

// SetDayTimes changes the wake and sleep times given to newly created days.
func (s *Service) SetDayTimes(ctx context.Context, ownerID, wake, sleep string) (models.Settings, error) {
	return s.updateSettings(ctx, ownerID, func(st *models.Settings, _ *calendar.Policy) error {
		for _, t := range []string{wake, sleep} {
			if !calendar.ValidateTimeFormat(t) {
				return apperrors.InvalidTransition("set day times", fmt.Sprintf("invalid time %q (expected %s)", t, constants.TimeFormat))
			}
		}
		st.WakeTime, st.SleepTime = wake, sleep
		return nil
	})
}

// updateSettings persists a modified copy of the settings and swaps the
// owner's calendar policy. Nothing changes in memory if the write fails.
func (s *Service) updateSettings(ctx context.Context, ownerID string, fn func(*models.Settings, *calendar.Policy) error) (models.Settings, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return models.Settings{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	next := sess.settings
	next.WeekRules = append([]models.WeekRule(nil), sess.settings.WeekRules...)
	if err := fn(&next, sess.policy); err != nil {
		return models.Settings{}, err
	}
	policy, err := calendar.FromSettings(next)
	if err != nil {
		return models.Settings{}, apperrors.InvalidTransition("update settings", err.Error())
	}
	if err := s.settings.Save(ctx, next); err != nil {
		return models.Settings{}, apperrors.EnsurePersistence("save settings", err)
	}

	sess.settings = next
	sess.policy = policy
	sess.engine.SetPolicy(policy)
	sess.agg.SetPolicy(policy)
	sess.agg.SetDayDefaults(next.WakeTime, next.SleepTime)
	return next, nil
}
