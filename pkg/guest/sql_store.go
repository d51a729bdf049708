package guest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRow maps the guest_carts table.
type CartRow struct {
	ProfileID string     `gorm:"column:profile_id;primaryKey"`
	Payload   string     `gorm:"column:payload;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null"`
}

func (CartRow) TableName() string { return "guest_carts" }

// SQLStore keeps guest carts in a relational table.
type SQLStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLStore binds the store to the provided GORM handle.
func NewSQLStore(db *gorm.DB, ttl time.Duration) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("gorm db is required")
	}
	return &SQLStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *SQLStore) Load(ctx context.Context, profileID string) ([]byte, error) {
	if err := ValidateProfileID(profileID); err != nil {
		return nil, err
	}
	var row CartRow
	err := s.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select guest cart: %w", err)
	}
	if row.ExpiresAt != nil && !s.now().Before(*row.ExpiresAt) {
		_ = s.Delete(ctx, profileID)
		return nil, ErrNotFound
	}
	return []byte(row.Payload), nil
}

func (s *SQLStore) Save(ctx context.Context, profileID string, payload []byte) error {
	if err := ValidateProfileID(profileID); err != nil {
		return err
	}
	now := s.now().UTC()
	row := CartRow{ProfileID: profileID, Payload: string(payload), UpdatedAt: now}
	if s.ttl > 0 {
		expires := now.Add(s.ttl)
		row.ExpiresAt = &expires
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert guest cart: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, profileID string) error {
	if err := ValidateProfileID(profileID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("profile_id = ?", profileID).Delete(&CartRow{}).Error; err != nil {
		return fmt.Errorf("delete guest cart: %w", err)
	}
	return nil
}

// PurgeExpired removes rows whose TTL has elapsed.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now().UTC()).
		Delete(&CartRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge guest carts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
