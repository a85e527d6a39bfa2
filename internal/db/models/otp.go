package models

import "time"

// OTP holds the one active code per phone and purpose. A new send overwrites the row.
// The code itself is not stored, it is derived from Secret and IssuedAt.
type OTP struct {
	ID            uint64    `gorm:"primaryKey"`
	Phone         string    `gorm:"size:32;not null;uniqueIndex:idx_otp_phone_purpose"`
	Purpose       string    `gorm:"size:50;not null;uniqueIndex:idx_otp_phone_purpose"`
	Secret        string    `gorm:"size:64;not null"`
	IssuedAt      time.Time `gorm:"not null"`
	ExpiresAt     time.Time `gorm:"not null"`
	CooldownUntil time.Time `gorm:"not null"`
	Attempts      int       `gorm:"not null;default:0"`
	Consumed      bool      `gorm:"not null;default:false"`
	Provider      string    `gorm:"size:50"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName keeps the table name readable.
func (OTP) TableName() string {
	return "otps"
}
