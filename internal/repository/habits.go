package repository

import (
	"context"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage"
)

type Habits struct {
	store storage.Store
}

func NewHabits(s storage.Store) *Habits {
	return &Habits{store: s}
}

// List returns the owner's habits, newest start date first. Habits that do
// not decode are skipped.
func (r *Habits) List(ctx context.Context, ownerID string) ([]models.Habit, error) {
	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	entries, err := r.store.Query(ctx, storage.HabitsPath(ownerID), storage.Query{
		Filters:    []storage.Filter{{Field: "owner_id", Value: ownerID}},
		OrderBy:    constants.HabitQueryOrderBy,
		Descending: true,
	})
	if err != nil {
		return nil, err
	}

	habits := make([]models.Habit, 0, len(entries))
	for _, e := range entries {
		var h models.Habit
		if err := storage.Decode(e.Doc, &h); err != nil {
			logger.Warn("Skipping undecodable habit", "owner", ownerID, "key", e.Key, "error", err)
			continue
		}
		if h.ID == "" {
			h.ID = e.Key
		}
		habits = append(habits, h)
	}
	return habits, nil
}

func (r *Habits) Get(ctx context.Context, ownerID, id string) (models.Habit, error) {
	if err := checkOwner(ownerID); err != nil {
		return models.Habit{}, err
	}
	var h models.Habit
	if err := load(ctx, r.store, storage.HabitsPath(ownerID), id, &h); err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

func (r *Habits) Save(ctx context.Context, h models.Habit) error {
	if err := checkOwner(h.OwnerID); err != nil {
		return err
	}
	return save(ctx, r.store, storage.HabitsPath(h.OwnerID), h.ID, h, false)
}

func (r *Habits) Delete(ctx context.Context, ownerID, id string) error {
	if err := checkOwner(ownerID); err != nil {
		return err
	}
	return r.store.Delete(ctx, storage.HabitsPath(ownerID), id)
}

// Subscribe calls fn with the habit, or ok=false once it is gone.
func (r *Habits) Subscribe(ctx context.Context, ownerID, id string, fn func(h models.Habit, ok bool)) (*storage.Subscription, error) {
	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	return r.store.Subscribe(ctx, storage.HabitsPath(ownerID), id, func(c storage.Change) {
		var h models.Habit
		ok := decodeChange(c, &h)
		fn(h, ok)
	})
}
