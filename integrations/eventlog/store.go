package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"farmchain/core/events"
	"farmchain/core/types"
)

// ErrPathRequired is returned when the index path is missing.
var ErrPathRequired = errors.New("eventlog: database path must be configured")

// Record is one committed ledger event.
type Record struct {
	ID         uint64            `gorm:"primaryKey;autoIncrement"`
	Height     uint64            `gorm:"index"`
	Type       string            `gorm:"index;not null"`
	PoolID     string            `gorm:"index"`
	Account    string            `gorm:"index"`
	Attributes map[string]string `gorm:"serializer:json"`
	CreatedAt  time.Time
}

// Filter narrows a query. Zero fields match everything.
type Filter struct {
	Type       string
	PoolID     string
	Account    string
	FromHeight uint64
	Limit      int
}

const defaultLimit = 100

// Store indexes committed events in SQLite so they can be queried after the
// host has moved on.
type Store struct {
	db *gorm.DB
}

// Open initialises the index at dsn. Use "file::memory:?cache=shared" for an
// in-memory index.
func Open(dsn string) (*Store, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := gorm.Open(sqlite.Open(trimmed), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append stores the events committed at height in one transaction.
func (s *Store) Append(ctx context.Context, height uint64, evts []events.Event) error {
	if s == nil {
		return fmt.Errorf("eventlog: store not configured")
	}
	if len(evts) == 0 {
		return nil
	}
	records := make([]Record, 0, len(evts))
	for _, evt := range evts {
		rendered := events.Render(evt)
		if rendered == nil {
			continue
		}
		attrs := make(map[string]string, len(rendered.Attributes))
		for k, v := range rendered.Attributes {
			attrs[k] = v
		}
		records = append(records, Record{
			Height:     height,
			Type:       rendered.Type,
			PoolID:     attrs["poolId"],
			Account:    attrs["addr"],
			Attributes: attrs,
		})
	}
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
}

// Query returns matching events in commit order.
func (s *Store) Query(ctx context.Context, filter Filter) ([]types.Event, error) {
	if s == nil {
		return nil, fmt.Errorf("eventlog: store not configured")
	}
	q := s.db.WithContext(ctx).Model(&Record{}).Where("height >= ?", filter.FromHeight)
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.PoolID != "" {
		q = q.Where("pool_id = ?", filter.PoolID)
	}
	if filter.Account != "" {
		q = q.Where("account = ?", filter.Account)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultLimit
	}
	var records []Record
	if err := q.Order("id ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	out := make([]types.Event, 0, len(records))
	for _, rec := range records {
		attrs := rec.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		out = append(out, types.Event{Type: rec.Type, Height: rec.Height, Attributes: attrs})
	}
	return out, nil
}
