// Package models contains database model definitions.
package models

// Setting is one field of a settings group, stored as a JSON encoded value.
// Name is "<group>.<field>".
type Setting struct {
	ID    uint64 `gorm:"primaryKey"`
	Group string `gorm:"column:group_name;size:50;index"`
	Name  string `gorm:"unique;size:150"`
	Value []byte
}
