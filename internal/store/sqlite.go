// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type storedItem struct {
	ID        uint   `gorm:"primaryKey"`
	Backend   string `gorm:"uniqueIndex:idx_backend_key;size:128"`
	Key       string `gorm:"uniqueIndex:idx_backend_key;size:256"`
	Value     string
	UpdatedAt time.Time
}

// SQLite is a Store backed by an embedded sqlite database. Values are
// serialized as JSON.
type SQLite struct {
	db *gorm.DB
}

// NewSQLite opens (and migrates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening store database: %w", err)
	}
	if err := db.AutoMigrate(&storedItem{}); err != nil {
		return nil, fmt.Errorf("migrating store schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Put(ctx context.Context, backend, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding stored value: %w", err)
	}
	item := storedItem{Backend: backend, Key: key, Value: string(raw)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "backend"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&item).Error
	if err != nil {
		return fmt.Errorf("storing %s/%s: %w", backend, key, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, backend, key string) (any, bool, error) {
	var item storedItem
	err := s.db.WithContext(ctx).
		Where("backend = ? AND key = ?", backend, key).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s/%s: %w", backend, key, err)
	}
	var value any
	if err := json.Unmarshal([]byte(item.Value), &value); err != nil {
		return nil, false, fmt.Errorf("decoding stored value %s/%s: %w", backend, key, err)
	}
	return value, true, nil
}

func (s *SQLite) Delete(ctx context.Context, backend, key string) error {
	err := s.db.WithContext(ctx).
		Where("backend = ? AND key = ?", backend, key).
		Delete(&storedItem{}).Error
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", backend, key, err)
	}
	return nil
}

func (s *SQLite) Keys(ctx context.Context, backend string) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&storedItem{}).
		Where("backend = ?", backend).
		Order("key").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("listing keys for %s: %w", backend, err)
	}
	return keys, nil
}
