// Package setting provides CRUD operations on the settings table.
// Rows are named "<group>.<field>"; the group column is derived from the name.
package setting

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cardforge/cardforge/internal/db/models"
)

const (
	nameQueryPattern = "name = ?"
)

var (
	// ErrSettingNotFound is returned when a setting is not found.
	ErrSettingNotFound = errors.New("setting not found")
	// ErrSettingNameEmpty is returned when attempting to create/update a setting with an empty name.
	ErrSettingNameEmpty = errors.New("setting name cannot be empty")
	// ErrSettingAlreadyExists is returned when attempting to create a setting that already exists.
	ErrSettingAlreadyExists = errors.New("setting already exists")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Name joins group and field into a setting name.
func Name(group, field string) string {
	return group + "." + field
}

// GroupOf returns the group part of a setting name, empty for names without a dot.
func GroupOf(name string) string {
	group, _, found := strings.Cut(name, ".")
	if !found {
		return ""
	}

	return group
}

func first(query *gorm.DB) (*models.Setting, error) {
	var s models.Setting

	if err := query.First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}

		return nil, err
	}

	return &s, nil
}

// Get retrieves a setting by its name.
func Get(db *gorm.DB, name string) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if name == "" {
		return nil, ErrSettingNameEmpty
	}

	return first(db.Where(nameQueryPattern, name))
}

// GetByID retrieves a setting by its ID.
func GetByID(db *gorm.DB, id uint64) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	return first(db.Where("id = ?", id))
}

// GetAll retrieves all settings from the database.
func GetAll(db *gorm.DB) ([]models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	settings := []models.Setting{}
	if err := db.Order("name").Find(&settings).Error; err != nil {
		return nil, err
	}

	return settings, nil
}

// ListByGroup returns all rows of one group.
func ListByGroup(db *gorm.DB, group string) ([]models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	settings := []models.Setting{}
	if err := db.Where("group_name = ?", group).Order("name").Find(&settings).Error; err != nil {
		return nil, err
	}

	return settings, nil
}

// Create creates a new setting in the database.
func Create(db *gorm.DB, name string, value []byte) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if name == "" {
		return nil, ErrSettingNameEmpty
	}

	_, err := first(db.Where(nameQueryPattern, name))
	if err == nil {
		return nil, ErrSettingAlreadyExists
	}

	if !errors.Is(err, ErrSettingNotFound) {
		return nil, err
	}

	setting := &models.Setting{
		Group: GroupOf(name),
		Name:  name,
		Value: value,
	}

	if err = db.Create(setting).Error; err != nil {
		return nil, err
	}

	return setting, nil
}

// Set creates or updates a setting by name (upsert operation).
func Set(db *gorm.DB, name string, value []byte) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if name == "" {
		return nil, ErrSettingNameEmpty
	}

	setting, err := first(db.Where(nameQueryPattern, name))
	if errors.Is(err, ErrSettingNotFound) {
		return Create(db, name, value)
	}

	if err != nil {
		return nil, err
	}

	setting.Value = value
	if err = db.Save(setting).Error; err != nil {
		return nil, err
	}

	return setting, nil
}

// SetMany upserts several settings in one transaction. Either all values are written or none.
func SetMany(db *gorm.DB, values map[string][]byte) error {
	if db == nil {
		return ErrDBNil
	}

	rows := make([]models.Setting, 0, len(values))

	for name, value := range values {
		if name == "" {
			return ErrSettingNameEmpty
		}

		rows = append(rows, models.Setting{Group: GroupOf(name), Name: name, Value: value})
	}

	if len(rows) == 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "group_name"}),
		}).Create(&rows).Error
	})
}

// Update updates an existing setting by ID.
func Update(db *gorm.DB, id uint64, value []byte) (*models.Setting, error) {
	setting, err := GetByID(db, id)
	if err != nil {
		return nil, err
	}

	setting.Value = value
	if err = db.Save(setting).Error; err != nil {
		return nil, err
	}

	return setting, nil
}

// UpdateByName updates an existing setting by name.
func UpdateByName(db *gorm.DB, name string, value []byte) (*models.Setting, error) {
	setting, err := Get(db, name)
	if err != nil {
		return nil, err
	}

	setting.Value = value
	if err = db.Save(setting).Error; err != nil {
		return nil, err
	}

	return setting, nil
}

// Delete deletes a setting by ID.
func Delete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Delete(&models.Setting{}, id)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}

	return nil
}

// DeleteByName deletes a setting by name.
func DeleteByName(db *gorm.DB, name string) error {
	if db == nil {
		return ErrDBNil
	}

	if name == "" {
		return ErrSettingNameEmpty
	}

	result := db.Where(nameQueryPattern, name).Delete(&models.Setting{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}

	return nil
}
