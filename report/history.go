package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Run is one recorded invocation.
type Run struct {
	ID               string `gorm:"primaryKey"`
	Input            string
	Output           string
	TargetResolution float64
	Threshold        float64
	Quality          float64
	BytesBefore      int64
	BytesAfter       int64
	Images           []ImageRow `gorm:"foreignKey:RunID"`
	CreatedAt        time.Time
}

// ImageRow is one image of a recorded run.
type ImageRow struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"index"`
	Page      int
	Name      string
	Width     int
	Height    int
	DPI       float64
	Format    string
	Filters   string
	Length    int64
	Outcome   string
	NewWidth  int
	NewHeight int
	NewLength int64
}

// Row converts an ImageStat for storage.
func Row(s ImageStat) ImageRow {
	return ImageRow{
		Page:      s.Page,
		Name:      s.Name,
		Width:     s.Width,
		Height:    s.Height,
		DPI:       s.DPI,
		Format:    s.Format,
		Filters:   strings.Join(s.Filters, " "),
		Length:    s.Length,
		Outcome:   s.Outcome,
		NewWidth:  s.NewWidth,
		NewHeight: s.NewHeight,
		NewLength: s.NewLength,
	}
}

// History stores runs in SQLite.
type History struct {
	db *gorm.DB
}

// OpenHistory opens or creates the database at path. ":memory:" gives a
// private in-memory database.
func OpenHistory(path string) (*History, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Run{}, &ImageRow{}); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &History{db: db}, nil
}

// Record stores run with its images. An empty ID is filled with a new
// UUID, which is returned.
func (h *History) Record(run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if err := h.db.Create(run).Error; err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return run.ID, nil
}

// Runs returns every run, newest first, with its images.
func (h *History) Runs() ([]Run, error) {
	var runs []Run
	err := h.db.Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Order("created_at desc").Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// Get returns the run with the given ID.
func (h *History) Get(id string) (*Run, error) {
	var run Run
	err := h.db.Preload("Images").First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("run %s: not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Close closes the database.
func (h *History) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
