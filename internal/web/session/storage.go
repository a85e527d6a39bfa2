package session

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// row uses the layout of the gofiber mysql and postgres storages, k/v/e in table sessions.
type row struct {
	K string `gorm:"column:k;primaryKey;size:64"`
	V []byte `gorm:"column:v"`
	E int64  `gorm:"column:e;index;not null;default:0"`
}

func (row) TableName() string { return "sessions" }

// GormStorage is a fiber.Storage on a gorm connection, used for engines without a gofiber storage.
type GormStorage struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStorage migrates the sessions table and returns the storage.
func NewGormStorage(db *gorm.DB) (*GormStorage, error) {
	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, err
	}

	return &GormStorage{db: db, now: time.Now}, nil
}

// Get returns the value of key, nil if missing or expired.
func (s *GormStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}

	var r row

	err := s.db.Where("k = ? AND (e = 0 OR e > ?)", key, s.now().Unix()).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return r.V, nil
}

// Set stores val under key. A zero exp never expires.
func (s *GormStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}

	var expires int64
	if exp > 0 {
		expires = s.now().Add(exp).Unix()
	}

	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v", "e"}),
	}).Create(&row{K: key, V: val, E: expires}).Error
}

// Delete removes key.
func (s *GormStorage) Delete(key string) error {
	if key == "" {
		return nil
	}

	return s.db.Where("k = ?", key).Delete(&row{}).Error
}

// Reset removes every session.
func (s *GormStorage) Reset() error {
	return s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&row{}).Error
}

// Close is a no-op, the connection belongs to the caller.
func (s *GormStorage) Close() error {
	return nil
}

// GC drops expired sessions.
func (s *GormStorage) GC() error {
	return s.db.Where("e <> 0 AND e <= ?", s.now().Unix()).Delete(&row{}).Error
}
