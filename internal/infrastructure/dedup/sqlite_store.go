package dedup

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"minerva/internal/errs"
	"minerva/internal/infrastructure/persistence/sqlite/model"
	"minerva/internal/ports"
)

// SQLiteStore is the durable dedup ledger and delivery audit log.
type SQLiteStore struct {
	db *gorm.DB
}

var (
	_ ports.DedupStore  = (*SQLiteStore)(nil)
	_ ports.DeliveryLog = (*SQLiteStore)(nil)
)

func NewSQLiteStore(db *gorm.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Seen(ctx context.Context, key string) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return false, errs.Wrap(err, "check context")
	}

	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return false, errors.New("key is required")
	}

	var row model.HandledItem
	if err := s.db.WithContext(ctx).Where("key = ?", trimmed).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, errs.Wrap(err, "query handled item")
	}
	return true, nil
}

func (s *SQLiteStore) Mark(ctx context.Context, key string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return errors.New("key is required")
	}

	row := model.HandledItem{
		Key:      trimmed,
		MarkedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "mark handled item")
	}
	return nil
}

func (s *SQLiteStore) Record(ctx context.Context, rec ports.DeliveryRecord) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	row := model.Delivery{
		DeliveryID: rec.DeliveryID,
		Event:      rec.Event,
		Action:     rec.Action,
		PRNumber:   rec.PRNumber,
		ReceivedAt: rec.ReceivedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errs.Wrap(err, "record delivery")
	}
	return nil
}
