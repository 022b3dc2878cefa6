// Package gormstore implements eventsource.RecordManager on top of GORM,
// giving the event store a real SQL-backed persistence option alongside the
// core's in-memory default.
package gormstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/foldstate/eventsource"
)

// eventRecord is the database schema for a single stored event. The unique
// index on (sequence_id, position) is what turns a duplicate insert into
// the constraint violation Append translates into a
// *eventsource.ConcurrencyError; gaps are caught by Append's own count check.
type eventRecord struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	SequenceID string `gorm:"size:64;uniqueIndex:idx_sequence_position;not null"`
	Position   int    `gorm:"uniqueIndex:idx_sequence_position;not null"`
	Topic      string `gorm:"size:255;index;not null"`
	State      []byte `gorm:"type:blob"`
}

// TableName implements gorm's Tabler interface.
func (eventRecord) TableName() string {
	return "eventsource_records"
}

// RecordManager is a GORM-backed eventsource.RecordManager. Any dialect
// GORM supports works; the exported constructors cover the two used
// elsewhere in this module.
type RecordManager struct {
	db *gorm.DB
}

// New wraps an already-opened *gorm.DB, running the auto-migration for the
// event table.
func New(db *gorm.DB) (*RecordManager, error) {
	if err := db.AutoMigrate(&eventRecord{}); err != nil {
		return nil, fmt.Errorf("gormstore: migrating event table: %w", err)
	}
	return &RecordManager{db: db}, nil
}

var _ eventsource.RecordManager = (*RecordManager)(nil)

// Append implements eventsource.RecordManager. Optimistic concurrency is
// enforced by the database: a conflicting (sequence_id, position) insert
// fails the unique index, which we report as a *eventsource.ConcurrencyError.
// The expected-position gap check additionally requires a row count lookup,
// since GORM's unique-constraint error alone cannot distinguish "already
// exists" from "predecessor missing".
func (m *RecordManager) Append(ctx context.Context, record eventsource.Record, expectedPosition, newPosition int) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if expectedPosition >= 0 {
			var count int64
			if err := tx.Model(&eventRecord{}).
				Where("sequence_id = ? AND position = ?", record.SequenceID, expectedPosition).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return &eventsource.ConcurrencyError{SequenceID: record.SequenceID, Expected: expectedPosition, New: newPosition}
			}
		} else {
			var count int64
			if err := tx.Model(&eventRecord{}).
				Where("sequence_id = ?", record.SequenceID).
				Count(&count).Error; err != nil {
				return err
			}
			if count != 0 {
				return &eventsource.ConcurrencyError{SequenceID: record.SequenceID, Expected: expectedPosition, New: newPosition}
			}
		}

		row := eventRecord{
			SequenceID: record.SequenceID,
			Position:   newPosition,
			Topic:      record.Topic,
			State:      record.State,
		}
		if err := tx.Create(&row).Error; err != nil {
			return &eventsource.ConcurrencyError{SequenceID: record.SequenceID, Expected: expectedPosition, New: newPosition}
		}
		return nil
	})
}

// Read implements eventsource.RecordManager.
func (m *RecordManager) Read(ctx context.Context, sequenceID string, opts eventsource.ReadOptions) (eventsource.History, error) {
	query := m.db.WithContext(ctx).Model(&eventRecord{}).Where("sequence_id = ?", sequenceID)
	if opts.After != nil {
		query = query.Where("position > ?", *opts.After)
	}
	if opts.Until != nil {
		query = query.Where("position <= ?", *opts.Until)
	}
	if opts.Ascending {
		query = query.Order("position ASC")
	} else {
		query = query.Order("position DESC")
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var rows []eventRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gormstore: reading %s: %w", sequenceID, err)
	}

	history := make(eventsource.History, 0, len(rows))
	for _, row := range rows {
		history = append(history, eventsource.Record{
			SequenceID: row.SequenceID,
			Position:   row.Position,
			Topic:      row.Topic,
			State:      row.State,
		})
	}
	return history, nil
}

// MostRecent implements eventsource.RecordManager.
func (m *RecordManager) MostRecent(ctx context.Context, sequenceID string, until *int) (*eventsource.Record, bool, error) {
	query := m.db.WithContext(ctx).Model(&eventRecord{}).Where("sequence_id = ?", sequenceID)
	if until != nil {
		query = query.Where("position <= ?", *until)
	}

	var row eventRecord
	err := query.Order("position DESC").Limit(1).Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("gormstore: most recent for %s: %w", sequenceID, err)
	}

	return &eventsource.Record{
		SequenceID: row.SequenceID,
		Position:   row.Position,
		Topic:      row.Topic,
		State:      row.State,
	}, true, nil
}

// Remove implements eventsource.RecordManager.
func (m *RecordManager) Remove(ctx context.Context, sequenceID string) error {
	return m.db.WithContext(ctx).Where("sequence_id = ?", sequenceID).Delete(&eventRecord{}).Error
}
