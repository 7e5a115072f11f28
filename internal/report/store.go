package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type reportModel struct {
	ID          uint           `gorm:"primaryKey;autoIncrement"`
	Date        string         `gorm:"size:10;uniqueIndex;not null"`
	GeneratedAt int64          `gorm:"not null"`
	Payload     datatypes.JSON `gorm:"not null"`
}

func (reportModel) TableName() string { return "daily_reports" }

// Store persists one report per calendar date.
type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("report: database path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("report: open database: %w", err)
	}
	if err := db.AutoMigrate(&reportModel{}); err != nil {
		return nil, fmt.Errorf("report: migrate: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Save upserts the report for its date: a same-day re-run replaces the
// previous object.
func (s *Store) Save(ctx context.Context, rep DailyReport) error {
	if strings.TrimSpace(rep.Date) == "" {
		return fmt.Errorf("report: date required")
	}
	if rep.GeneratedAt.IsZero() {
		rep.GeneratedAt = time.Now()
	}
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	model := reportModel{
		Date:        rep.Date,
		GeneratedAt: rep.GeneratedAt.UnixMilli(),
		Payload:     datatypes.JSON(payload),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"generated_at", "payload"}),
		}).
		Create(&model).Error
}

// Get returns the report for one date; found=false when none exists.
func (s *Store) Get(ctx context.Context, date string) (DailyReport, bool, error) {
	var model reportModel
	err := s.db.WithContext(ctx).Where("date = ?", date).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DailyReport{}, false, nil
	}
	if err != nil {
		return DailyReport{}, false, err
	}
	rep, err := decodeReport(model)
	if err != nil {
		return DailyReport{}, false, err
	}
	return rep, true, nil
}

// Latest returns the most recent report.
func (s *Store) Latest(ctx context.Context) (DailyReport, bool, error) {
	var model reportModel
	err := s.db.WithContext(ctx).Order("date DESC").First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DailyReport{}, false, nil
	}
	if err != nil {
		return DailyReport{}, false, err
	}
	rep, err := decodeReport(model)
	if err != nil {
		return DailyReport{}, false, err
	}
	return rep, true, nil
}

// List returns up to limit reports, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]DailyReport, error) {
	if limit <= 0 || limit > 200 {
		limit = 30
	}
	var models []reportModel
	if err := s.db.WithContext(ctx).Order("date DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]DailyReport, 0, len(models))
	for _, m := range models {
		rep, err := decodeReport(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decodeReport(m reportModel) (DailyReport, error) {
	var rep DailyReport
	if err := json.Unmarshal(m.Payload, &rep); err != nil {
		return DailyReport{}, fmt.Errorf("report: decode %s: %w", m.Date, err)
	}
	return rep, nil
}
