// Package db persists the auth session and the latest device snapshots in
// a local SQLite file.
package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/andreas-glaser/ha-dessmonitor/internal/api"
	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
)

// tokenRowID pins the session triple to a single row.
const tokenRowID = 1

// Store wraps the SQLite connection.
type Store struct {
	orm *gorm.DB
}

// Open opens the database at path and runs migrations.
func Open(path string) (*Store, error) {
	g, err := openORM(path)
	if err != nil {
		return nil, err
	}
	if err := migrateORM(g); err != nil {
		_ = closeORM(g)
		return nil, err
	}
	return &Store{orm: g}, nil
}

func (s *Store) Close() error { return closeORM(s.orm) }

// LoadToken returns the persisted session triple, or (nil, nil) when no
// record exists.
func (s *Store) LoadToken(ctx context.Context) (*api.StoredToken, error) {
	var row model.AuthToken
	err := s.orm.WithContext(ctx).First(&row, tokenRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &api.StoredToken{Token: row.Token, Secret: row.Secret, Expiry: row.Expiry}, nil
}

// SaveToken upserts the session triple.
func (s *Store) SaveToken(ctx context.Context, t *api.StoredToken) error {
	row := model.AuthToken{
		ID:        tokenRowID,
		Token:     t.Token,
		Secret:    t.Secret,
		Expiry:    t.Expiry,
		UpdatedAt: time.Now(),
	}
	return s.orm.WithContext(ctx).Save(&row).Error
}

// ClearToken removes the persisted session, if any.
func (s *Store) ClearToken(ctx context.Context) error {
	return s.orm.WithContext(ctx).Delete(&model.AuthToken{}, tokenRowID).Error
}

// ReplaceDeviceStates swaps the stored snapshot rows for the given set.
func (s *Store) ReplaceDeviceStates(ctx context.Context, states []model.DeviceState) error {
	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.DeviceState{}).Error; err != nil {
			return err
		}
		if len(states) == 0 {
			return nil
		}
		return tx.Create(&states).Error
	})
}

// ListDeviceStates returns the stored snapshot rows ordered by SN.
func (s *Store) ListDeviceStates(ctx context.Context) ([]model.DeviceState, error) {
	var rows []model.DeviceState
	if err := s.orm.WithContext(ctx).Order("sn").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
