package visitlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// visitRow is the visits table.
type visitRow struct {
	ID              uint      `gorm:"primaryKey"`
	PersonID        string    `gorm:"size:64;index"`
	ArrivedAt       time.Time `gorm:"not null;index"`
	DepartedAt      time.Time
	Open            bool `gorm:"index"`
	Sightings       int
	DominantEmotion string `gorm:"size:32"`
}

func (visitRow) TableName() string { return "visits" }

func (r visitRow) toVisit() Visit {
	return Visit{
		PersonID:        r.PersonID,
		ArrivedAt:       r.ArrivedAt,
		DepartedAt:      r.DepartedAt,
		Sightings:       r.Sightings,
		DominantEmotion: r.DominantEmotion,
	}
}

// interactionRow is the interactions table.
type interactionRow struct {
	InteractionID string    `gorm:"primaryKey;size:64"`
	PersonID      string    `gorm:"size:64;index"`
	StartedAt     time.Time `gorm:"not null;index"`
	EndedAt       time.Time `gorm:"not null"`
	Turns         int
	Outcome       string `gorm:"size:32"`
}

func (interactionRow) TableName() string { return "interactions" }

// OpenGorm opens the journal database. Supported drivers are "sqlite"
// (the default, pure Go) and "postgres".
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = "sqlite"
	}
	dsn = strings.TrimSpace(dsn)

	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = "visits.db"
		}
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("dsn is required for driver %q", driver)
		}
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// ensureSQLiteDir creates the parent directory for plain file DSNs.
// In-memory and URI-style DSNs are left alone.
func ensureSQLiteDir(dsn string) error {
	if strings.Contains(strings.ToLower(dsn), ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	return nil
}

// GormStore persists the journal through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens and migrates the journal database.
func NewGormStore(driver, dsn string) (*GormStore, error) {
	db, err := OpenGorm(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open visit journal: %w", err)
	}

	s := &GormStore{db: db}
	if err := s.db.AutoMigrate(&visitRow{}, &interactionRow{}); err != nil {
		return nil, fmt.Errorf("migrate visit journal: %w", err)
	}
	return s, nil
}

// RecordArrival implements Store.
func (s *GormStore) RecordArrival(ctx context.Context, personID string, at time.Time) error {
	row := visitRow{PersonID: personID, ArrivedAt: at.UTC(), Open: true}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record arrival: %w", err)
	}
	return nil
}

// RecordDeparture implements Store.
func (s *GormStore) RecordDeparture(ctx context.Context, personID string, at time.Time, sightings int, dominantEmotion string) error {
	var row visitRow
	err := s.db.WithContext(ctx).
		Where("person_id = ? AND open = ?", personID, true).
		Order("arrived_at DESC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoOpenVisit
		}
		return fmt.Errorf("find open visit: %w", err)
	}

	updates := map[string]interface{}{
		"departed_at":      at.UTC(),
		"open":             false,
		"sightings":        sightings,
		"dominant_emotion": dominantEmotion,
	}
	if err := s.db.WithContext(ctx).Model(&visitRow{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("record departure: %w", err)
	}
	return nil
}

// RecordInteraction implements Store.
func (s *GormStore) RecordInteraction(ctx context.Context, rec InteractionRecord) error {
	row := interactionRow{
		InteractionID: rec.InteractionID,
		PersonID:      rec.PersonID,
		StartedAt:     rec.StartedAt.UTC(),
		EndedAt:       rec.EndedAt.UTC(),
		Turns:         rec.Turns,
		Outcome:       rec.Outcome,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// RecentVisits implements Store.
func (s *GormStore) RecentVisits(ctx context.Context, limit int) ([]Visit, error) {
	q := s.db.WithContext(ctx).Order("arrived_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []visitRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("recent visits: %w", err)
	}

	out := make([]Visit, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toVisit())
	}
	return out, nil
}

// Stats implements Store.
func (s *GormStore) Stats(ctx context.Context, since time.Time) (Summary, error) {
	var sum Summary
	db := s.db.WithContext(ctx)

	if err := db.Model(&visitRow{}).
		Where("arrived_at >= ?", since.UTC()).
		Count(&sum.Visits).Error; err != nil {
		return Summary{}, fmt.Errorf("count visits: %w", err)
	}
	if err := db.Model(&interactionRow{}).
		Where("started_at >= ?", since.UTC()).
		Count(&sum.Interactions).Error; err != nil {
		return Summary{}, fmt.Errorf("count interactions: %w", err)
	}
	if err := db.Model(&interactionRow{}).
		Where("started_at >= ? AND turns > 0", since.UTC()).
		Count(&sum.Conversed).Error; err != nil {
		return Summary{}, fmt.Errorf("count conversed: %w", err)
	}
	return sum, nil
}

// Close implements Store.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
