package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Entry is one persisted conversation value.
type Entry struct {
	ChatID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "conversation_entries"
}

// Gorm is a Store backed by a SQL database.
type Gorm struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the entry table.
func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return NewGorm(db)
}

// NewGorm wraps an open database and migrates the entry table.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate conversation entries: %w", err)
	}

	return &Gorm{db: db}, nil
}

func (g *Gorm) Get(ctx context.Context, chatID int64, key string) (string, bool, error) {
	var entry Entry
	err := g.db.WithContext(ctx).
		Where("chat_id = ? AND key = ?", chatID, key).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load entry %d/%s: %w", chatID, key, err)
	}

	return entry.Value, true, nil
}

func (g *Gorm) Set(ctx context.Context, chatID int64, key string, value string) error {
	entry := Entry{ChatID: chatID, Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("store entry %d/%s: %w", chatID, key, err)
	}

	return nil
}

func (g *Gorm) Delete(ctx context.Context, chatID int64, key string) error {
	err := g.db.WithContext(ctx).
		Where("chat_id = ? AND key = ?", chatID, key).
		Delete(&Entry{}).Error
	if err != nil {
		return fmt.Errorf("delete entry %d/%s: %w", chatID, key, err)
	}

	return nil
}

func (g *Gorm) Clear(ctx context.Context, chatID int64) error {
	if err := g.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("clear entries for %d: %w", chatID, err)
	}

	return nil
}
