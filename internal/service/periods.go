package service

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/daybook/internal/calendar"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/priority"
	"github.com/julianstephens/daybook/internal/timeblock"
)

// PeriodView is a loaded period with its navigation state.
type PeriodView struct {
	models.Period
	IsCurrent bool `json:"is_current"`
	IsPast    bool `json:"is_past"`
	// CanImport is set for the current period; the import source is Previous.
	CanImport bool                        `json:"can_import"`
	Previous  string                      `json:"previous,omitempty"`
	Offset    int                         `json:"offset"`
	MinOffset int                         `json:"min_offset"`
	Status    map[string]models.DayStatus `json:"status,omitempty"`
}

// Mutation is one edit of a priority list.
type Mutation struct {
	Action priority.Action `json:"action"`
	ID     string          `json:"id,omitempty"`
	Title  string          `json:"title,omitempty"`
	From   []int           `json:"from,omitempty"`
	To     int             `json:"to,omitempty"`
}

// LoadPeriod loads the period of kind containing anchor.
func (s *Service) LoadPeriod(ctx context.Context, ownerID string, kind models.PeriodKind, anchor time.Time) (PeriodView, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return PeriodView{}, err
	}
	_, policy := sess.snapshot()
	return s.loadPeriod(ctx, sess, kind, policy.Key(kind, anchor))
}

// LoadPeriodKey loads the period of kind identified by key.
func (s *Service) LoadPeriodKey(ctx context.Context, ownerID string, kind models.PeriodKind, key string) (PeriodView, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return PeriodView{}, err
	}
	return s.loadPeriod(ctx, sess, kind, key)
}

func (s *Service) loadPeriod(ctx context.Context, sess *session, kind models.PeriodKind, key string) (PeriodView, error) {
	settings, policy := sess.snapshot()
	now := s.now()
	if err := checkBrowsable(policy, kind, key, settings.AccountCreatedAt, now); err != nil {
		return PeriodView{}, err
	}

	var (
		p      models.Period
		status map[string]models.DayStatus
		err    error
	)
	if kind == models.PeriodMonth {
		var m models.MonthSchedule
		m, status, err = sess.agg.RefreshMonth(ctx, key)
		p = models.Period{Kind: kind, Key: key, Month: &m}
	} else {
		p, err = sess.agg.LoadOrCreate(ctx, kind, key)
	}
	if err != nil {
		return PeriodView{}, err
	}

	offset, err := policy.Offset(kind, key, now)
	if err != nil {
		return PeriodView{}, err
	}
	view := PeriodView{
		Period:    p,
		IsCurrent: policy.IsCurrentKey(kind, key, now),
		IsPast:    policy.IsPastKey(kind, key, now),
		Offset:    offset,
		MinOffset: policy.MinNavigableOffset(settings.AccountCreatedAt, now, kind),
		Status:    status,
	}
	if view.IsCurrent {
		view.CanImport = true
		view.Previous, _ = policy.PreviousKey(kind, key)
	}
	return view, nil
}

// checkBrowsable rejects periods before the account's first period or after
// the current one.
func checkBrowsable(p *calendar.Policy, kind models.PeriodKind, key string, created, now time.Time) error {
	if _, err := p.ParseKey(kind, key); err != nil {
		return err
	}
	if key > p.Key(kind, now) {
		return apperrors.NavigationRejected(fmt.Sprintf("%s %s is in the future", kind, key))
	}
	if key < p.Key(kind, created) {
		return apperrors.NavigationRejected(fmt.Sprintf("%s %s is before the account was created", kind, key))
	}
	return nil
}

// MutatePriorities applies m to the priority list of a period. Edits of a
// past period fail with ErrConfirmationRequired unless confirmed is set.
func (s *Service) MutatePriorities(ctx context.Context, ownerID string, kind models.PeriodKind, key string, m Mutation, confirmed bool) ([]models.Priority, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	settings, policy := sess.snapshot()
	now := s.now()
	if err := checkBrowsable(policy, kind, key, settings.AccountCreatedAt, now); err != nil {
		return nil, apperrors.InvalidTransition("edit priorities", err.Error())
	}
	action, err := priority.ParseAction(string(m.Action))
	if err != nil {
		return nil, apperrors.InvalidTransition("edit priorities", err.Error())
	}
	if priority.RequiresConfirmation(policy.IsPastKey(kind, key, now), action) && !confirmed {
		return nil, apperrors.ConfirmationRequired("edit priorities", fmt.Sprintf("%s %s is in the past", kind, key))
	}

	p, err := sess.agg.LoadOrCreate(ctx, kind, key)
	if err != nil {
		return nil, err
	}
	list := priority.NewList(kind, p.Priorities())
	if err := apply(list, action, m); err != nil {
		return nil, err
	}
	if err := sess.agg.SavePriorities(ctx, kind, key, list.Items); err != nil {
		return nil, err
	}
	return list.Items, nil
}

func apply(list *priority.List, action priority.Action, m Mutation) error {
	switch action {
	case priority.ActionAdd:
		list.Add(m.Title)
		return nil
	case priority.ActionRemove:
		return list.Remove(m.ID)
	case priority.ActionToggle:
		_, err := list.Toggle(m.ID)
		return err
	case priority.ActionRename:
		return list.Rename(m.ID, m.Title)
	default:
		return list.Reorder(m.From, m.To)
	}
}

// NavigatePeriod returns the key of the period one step from currentKey.
func (s *Service) NavigatePeriod(ctx context.Context, ownerID string, kind models.PeriodKind, currentKey string, dir calendar.Direction) (string, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return "", err
	}
	settings, policy := sess.snapshot()
	return policy.Navigate(kind, currentKey, dir, settings.AccountCreatedAt, s.now())
}

// ImportUnfinished copies the unfinished priorities of the period before
// targetKey into targetKey, which must be the current period.
func (s *Service) ImportUnfinished(ctx context.Context, ownerID string, kind models.PeriodKind, targetKey string) (int, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	_, policy := sess.snapshot()
	source, err := policy.PreviousKey(kind, targetKey)
	if err != nil {
		return 0, err
	}
	return sess.agg.CarryOverUnfinished(ctx, kind, source, targetKey)
}

// MonthStatus refreshes the month's day cache and returns done/total per day.
func (s *Service) MonthStatus(ctx context.Context, ownerID, monthKey string) (map[string]models.DayStatus, error) {
	view, err := s.LoadPeriodKey(ctx, ownerID, models.PeriodMonth, monthKey)
	if err != nil {
		return nil, err
	}
	return view.Status, nil
}

// DayBlocks splits a day between its wake and sleep times and assigns its
// unfinished priorities to the blocks in order.
func (s *Service) DayBlocks(ctx context.Context, ownerID, dayKey string) ([]timeblock.Block, error) {
	view, err := s.LoadPeriodKey(ctx, ownerID, models.PeriodDay, dayKey)
	if err != nil {
		return nil, err
	}
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	_, policy := sess.snapshot()
	day, err := policy.ParseKey(models.PeriodDay, dayKey)
	if err != nil {
		return nil, err
	}
	blocks, err := s.blocks.Generate(day, view.Day.WakeTime, view.Day.SleepTime, view.Day.Priorities)
	if err != nil {
		return nil, apperrors.InvalidTransition("day blocks", err.Error())
	}
	return blocks, nil
}

// Watch follows a period until the next Watch or Unwatch for the owner.
func (s *Service) Watch(ctx context.Context, ownerID string, kind models.PeriodKind, key string, fn func(models.Period)) error {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return err
	}
	return sess.agg.Watch(ctx, kind, key, fn)
}

// Unwatch cancels the owner's period watch.
func (s *Service) Unwatch(ctx context.Context, ownerID string) error {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return err
	}
	sess.agg.Unwatch()
	return nil
}

// Today returns the current key of kind for the owner.
func (s *Service) Today(ctx context.Context, ownerID string, kind models.PeriodKind) (string, error) {
	return s.KeyAt(ctx, ownerID, kind, s.now())
}

// KeyAt returns the key of the owner's period of kind containing t.
func (s *Service) KeyAt(ctx context.Context, ownerID string, kind models.PeriodKind, t time.Time) (string, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return "", err
	}
	_, policy := sess.snapshot()
	return policy.Key(kind, t), nil
}

// FirstWeekday returns the owner's first day of the week in force at t.
func (s *Service) FirstWeekday(ctx context.Context, ownerID string, t time.Time) (time.Weekday, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return time.Sunday, err
	}
	_, policy := sess.snapshot()
	return policy.FirstWeekday(t), nil
}

// ParseDate resolves a YYYY-MM-DD date to the owner's local midnight.
func (s *Service) ParseDate(ctx context.Context, ownerID, date string) (time.Time, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return time.Time{}, err
	}
	_, policy := sess.snapshot()
	return policy.ParseKey(models.PeriodDay, date)
}

// MonthStatusCached returns the owner's cached month status without reading
// the store.
func (s *Service) MonthStatusCached(ctx context.Context, ownerID string) (string, map[string]models.DayStatus, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return "", nil, err
	}
	key, status := sess.agg.MonthStatus()
	return key, status, nil
}
