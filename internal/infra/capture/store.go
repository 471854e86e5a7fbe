package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"order_watch/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CapturedUpdate is one raw feed event persisted for later replay.
// Rows are append-only; the primary key preserves recording order.
type CapturedUpdate struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	OrderID      string `gorm:"index"`
	Customer     string
	Destination  string
	Item         string
	EventName    string
	PriceMinor   int64
	SentAtSecond int64
	RecordedAt   time.Time
}

func (CapturedUpdate) TableName() string {
	return "captured_updates"
}

func toRow(u domain.OrderUpdate) *CapturedUpdate {
	return &CapturedUpdate{
		OrderID:      u.ID,
		Customer:     u.Customer,
		Destination:  u.Destination,
		Item:         u.Item,
		EventName:    u.EventName,
		PriceMinor:   u.PriceMinor,
		SentAtSecond: u.SentAtSecond,
		RecordedAt:   time.Now(),
	}
}

func (r *CapturedUpdate) toDomain() domain.OrderUpdate {
	return domain.OrderUpdate{
		ID:           r.OrderID,
		Customer:     r.Customer,
		Destination:  r.Destination,
		Item:         r.Item,
		EventName:    r.EventName,
		PriceMinor:   r.PriceMinor,
		SentAtSecond: r.SentAtSecond,
	}
}

// Store persists captured feed traffic in SQLite.
type Store struct {
	db *gorm.DB
}

// OpenStore opens (or creates) the capture database at path.
func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open capture database: %w", err)
	}

	if err := db.AutoMigrate(&CapturedUpdate{}); err != nil {
		return nil, fmt.Errorf("failed to migrate capture database: %w", err)
	}

	return &Store{db: db}, nil
}

// Append records one raw update.
func (s *Store) Append(u domain.OrderUpdate) error {
	return s.db.Create(toRow(u)).Error
}

// All returns every captured update in recorded order.
func (s *Store) All() ([]domain.OrderUpdate, error) {
	var rows []CapturedUpdate
	if err := s.db.Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	updates := make([]domain.OrderUpdate, 0, len(rows))
	for i := range rows {
		updates = append(updates, rows[i].toDomain())
	}
	return updates, nil
}

// Count returns the number of captured updates.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.Model(&CapturedUpdate{}).Count(&n).Error
	return n, err
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
