package repository

import (
	"context"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage"
)

type Settings struct {
	store storage.Store
}

func NewSettings(s storage.Store) *Settings {
	return &Settings{store: s}
}

func (r *Settings) Get(ctx context.Context, ownerID string) (models.Settings, error) {
	if err := checkOwner(ownerID); err != nil {
		return models.Settings{}, err
	}
	var s models.Settings
	if err := load(ctx, r.store, storage.SettingsPath(ownerID), constants.SettingsProfileKey, &s); err != nil {
		return models.Settings{}, err
	}
	return s, nil
}

func (r *Settings) Save(ctx context.Context, s models.Settings) error {
	if err := checkOwner(s.OwnerID); err != nil {
		return err
	}
	return save(ctx, r.store, storage.SettingsPath(s.OwnerID), constants.SettingsProfileKey, s, false)
}
