package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/db/models"
)

const (
	whereIDAndAuthSource = "id = ? AND auth_source = ?"

	whereID = "id = ?"
)

// LocalProvider handles local database authentication and account management.
type LocalProvider struct {
	db *gorm.DB
}

// Registration is the data a visitor signs up with.
type Registration struct {
	Username  string `json:"username"  form:"username"  validate:"required,min=3,max=100,alphanum"`
	Email     string `json:"email"     form:"email"     validate:"required,email,max=255"`
	Password  string `json:"password"  form:"password"  validate:"required,min=8,max=128"`
	FirstName string `json:"firstName" form:"firstName" validate:"max=100"`
	LastName  string `json:"lastName"  form:"lastName"  validate:"max=100"`
	Phone     string `json:"phone"     form:"phone"     validate:"omitempty,e164"`
	Locale    string `json:"locale"    form:"locale"    validate:"omitempty,bcp47_language_tag"`
}

// NewLocalProvider creates a new local authentication provider.
func NewLocalProvider(db *gorm.DB) *LocalProvider {
	return &LocalProvider{
		db: db,
	}
}

// Authenticate authenticates a user by username or email against the local database.
func (p *LocalProvider) Authenticate(username, password string) (*models.User, error) {
	var user models.User

	login := strings.TrimSpace(username)

	err := p.db.Preload("Role").
		Where("(username = ? OR email = ?) AND auth_source = ?", login, strings.ToLower(login), models.AuthSourceLocal).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if !user.Active {
		return nil, ErrUserAccountDisabled
	}

	if !user.VerifyPassword(password) {
		return nil, ErrInvalidPassword
	}

	return &user, nil
}

// Register creates an active local account with the user role.
func (p *LocalProvider) Register(r Registration) (*models.User, error) {
	roleID, err := NewService(p.db).RoleID(models.RoleUser)
	if err != nil {
		return nil, err
	}

	user, err := p.CreateUser(r.Username, r.Email, r.Password, r.FirstName, r.LastName, roleID)
	if err != nil {
		return nil, err
	}

	if r.Phone != "" || r.Locale != "" {
		user.Phone = r.Phone
		user.Locale = r.Locale

		if err := p.db.Model(user).Updates(map[string]any{"phone": r.Phone, "locale": r.Locale}).Error; err != nil {
			return nil, fmt.Errorf("failed to store profile: %w", err)
		}
	}

	return user, nil
}

// CreateUser creates a new active local user.
func (p *LocalProvider) CreateUser(
	username, email, password, firstName, lastName string,
	roleID uint,
) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var existingUser models.User

	err := p.db.Unscoped().Where("username = ? OR email = ?", username, email).First(&existingUser).Error
	if err == nil {
		return nil, ErrUserNameOrEmailExists
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	user := models.User{
		Active:     true,
		Username:   username,
		Email:      email,
		Password:   models.HashPassword(password),
		FirstName:  firstName,
		LastName:   lastName,
		RoleID:     roleID,
		AuthSource: models.AuthSourceLocal,
	}

	if err := p.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := p.db.Preload("Role").First(&user, user.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	return &user, nil
}

// UpdateProfile updates the self-service fields of a user. A changed phone number loses its verification.
func (p *LocalProvider) UpdateProfile(userID uint64, firstName, lastName, phone, locale string) error {
	var user models.User
	if err := p.db.Where(whereID, userID).First(&user).Error; err != nil {
		return ErrUserNotFound
	}

	updates := map[string]any{
		"first_name": firstName,
		"last_name":  lastName,
		"phone":      phone,
		"locale":     locale,
	}

	if phone != user.Phone {
		updates["phone_verified_at"] = nil
	}

	return p.db.Model(&user).Updates(updates).Error
}

// MarkPhoneVerified stores phone as verified number of the user.
func (p *LocalProvider) MarkPhoneVerified(userID uint64, phone string, at time.Time) error {
	res := p.db.Model(&models.User{}).
		Where(whereID, userID).
		Updates(map[string]any{"phone": phone, "phone_verified_at": at.UTC()})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ChangePassword changes a user's password.
func (p *LocalProvider) ChangePassword(userID uint64, oldPassword, newPassword string) error {
	var user models.User
	if err := p.db.Where(whereIDAndAuthSource, userID, models.AuthSourceLocal).
		First(&user).Error; err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	if !user.VerifyPassword(oldPassword) {
		return ErrInvalidOldPassword
	}

	return p.db.Model(&models.User{}).
		Where(whereID, userID).
		Update("password", models.HashPassword(newPassword)).Error
}

// ResetPassword resets a user's password (admin function).
func (p *LocalProvider) ResetPassword(userID uint64, newPassword string) error {
	return p.db.Model(&models.User{}).
		Where(whereIDAndAuthSource, userID, models.AuthSourceLocal).
		Update("password", models.HashPassword(newPassword)).Error
}

// SetActive enables or disables a user account.
func (p *LocalProvider) SetActive(userID uint64, active bool) error {
	return p.db.Model(&models.User{}).
		Where(whereID, userID).
		Update("active", active).Error
}

// GetUserByID retrieves a user by ID.
func (p *LocalProvider) GetUserByID(userID uint64) (*models.User, error) {
	var user models.User
	if err := p.db.Preload("Role").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, err
	}

	return &user, nil
}
