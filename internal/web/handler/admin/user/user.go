// Package user provides handlers for managing users (CRUD) in admin area.
package user

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/web/handler"
)

// Path is the base path for user management.
const Path = handler.AdminPath + "/users"

var (
	// ErrCannotDeleteAdmin is returned when deleting a user holding the admin role.
	ErrCannotDeleteAdmin = errors.New("cannot delete admin users")
	// ErrCannotDeleteSelf is returned when an admin tries to delete the own account.
	ErrCannotDeleteSelf = errors.New("you cannot delete your own account")
)

// CreateInput is the form for new local users.
type CreateInput struct {
	Username  string `json:"username"  validate:"required,min=3,max=100,alphanum"`
	Email     string `json:"email"     validate:"required,email,max=255"`
	Password  string `json:"password"  validate:"required,min=8,max=128"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName"  validate:"max=100"`
	RoleID    uint   `json:"roleId"`
	Active    *bool  `json:"active"`
}

// UpdateInput is the edit form. An empty password keeps the current one.
type UpdateInput struct {
	Email     string `json:"email"     validate:"required,email,max=255"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName"  validate:"max=100"`
	Phone     string `json:"phone"     validate:"omitempty,e164"`
	Locale    string `json:"locale"    validate:"omitempty,bcp47_language_tag"`
	Password  string `json:"password"  validate:"omitempty,min=8,max=128"`
	RoleID    uint   `json:"roleId"    validate:"required"`
	Active    bool   `json:"active"`
}

// Service provides CRUD operations for users.
type Service struct {
	deps *handler.Deps
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() || deps.Local == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.RequirePermission(deps.Auth, auth.PermAdminUsers))
		router.Get(handler.RouterRootPath, s.List)
		router.Get("/roles", s.Roles)
		router.Post(handler.RouterRootPath, s.Create)
		router.Get("/:id", s.Show)
		router.Put("/:id", s.Update)
		router.Delete("/:id", s.Delete)
	})

	return nil
}

// List shows users with pagination and search.
func (s *Service) List(c *fiber.Ctx) error {
	page, pageSize := handler.Pagination(c)
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))

	var (
		users      []models.User
		totalCount int64
		tx         = s.deps.DB.WithContext(c.UserContext()).Model(&models.User{})
	)

	if search != "" {
		like := "%" + search + "%"
		tx = tx.Where(
			"LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR phone LIKE ?",
			like, like, like, like, like,
		)
	}

	if err := tx.Count(&totalCount).Error; err != nil {
		log.Error().Err(err).Msg("count users failed")

		return err
	}

	offset := (page - 1) * pageSize
	if err := tx.Preload("Role").Order("id DESC").Limit(pageSize).Offset(offset).Find(&users).Error; err != nil {
		log.Error().Err(err).Msg("query users failed")

		return err
	}

	return c.JSON(handler.NewPage(users, totalCount, page, pageSize))
}

// Roles lists the roles a user can be given.
func (s *Service) Roles(c *fiber.Ctx) error {
	var roles []models.Role
	if err := s.deps.DB.WithContext(c.UserContext()).Order("name ASC").Find(&roles).Error; err != nil {
		log.Error().Err(err).Msg("failed to load roles")

		return err
	}

	return c.JSON(fiber.Map{"items": roles})
}

// Create creates a new local user.
func (s *Service) Create(c *fiber.Ctx) error {
	in := new(CreateInput)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	roleID := in.RoleID
	if roleID == 0 {
		id, err := s.deps.Auth.RoleID(models.RoleUser)
		if err != nil {
			return err
		}

		roleID = id
	} else if err := s.roleExists(c, roleID); err != nil {
		return err
	}

	created, err := s.deps.Local.CreateUser(in.Username, in.Email, in.Password, in.FirstName, in.LastName, roleID)
	if err != nil {
		return err
	}

	if in.Active != nil && !*in.Active {
		if err := s.deps.Local.SetActive(created.ID, false); err != nil {
			return err
		}

		created.Active = false
	}

	log.Info().Str("username", created.Username).Uint64("by", handler.User(c).ID).Msg("user created")

	return c.Status(fiber.StatusCreated).JSON(created)
}

// Show returns one user.
func (s *Service) Show(c *fiber.Ctx) error {
	found, err := s.find(c)
	if err != nil {
		return err
	}

	return c.JSON(found)
}

// Update updates a user. Admins cannot take away their own admin role or disable themselves.
func (s *Service) Update(c *fiber.Ctx) error {
	found, err := s.find(c)
	if err != nil {
		return err
	}

	in := new(UpdateInput)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	if err := s.roleExists(c, in.RoleID); err != nil {
		return err
	}

	if found.ID == handler.User(c).ID && (!in.Active || in.RoleID != found.RoleID) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "you cannot disable or demote your own account")
	}

	updates := map[string]any{
		"email":      strings.ToLower(in.Email),
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"phone":      in.Phone,
		"locale":     in.Locale,
		"role_id":    in.RoleID,
		"active":     in.Active,
	}

	if in.Phone != found.Phone {
		updates["phone_verified_at"] = nil
	}

	if in.Password != "" && found.AuthSource == models.AuthSourceLocal {
		updates["password"] = models.HashPassword(in.Password)
	}

	db := s.deps.DB.WithContext(c.UserContext())
	if err := db.Model(found).Updates(updates).Error; err != nil {
		return err
	}

	updated, err := s.deps.Local.GetUserByID(found.ID)
	if err != nil {
		return err
	}

	return c.JSON(updated)
}

// Delete removes a user.
func (s *Service) Delete(c *fiber.Ctx) error {
	found, err := s.find(c)
	if err != nil {
		return err
	}

	if found.Role.Name == models.RoleAdmin {
		return fiber.NewError(fiber.StatusForbidden, ErrCannotDeleteAdmin.Error())
	}

	if found.ID == handler.User(c).ID {
		return fiber.NewError(fiber.StatusBadRequest, ErrCannotDeleteSelf.Error())
	}

	if err := s.deps.DB.WithContext(c.UserContext()).Delete(&models.User{}, found.ID).Error; err != nil {
		return err
	}

	log.Info().Str("username", found.Username).Uint64("by", handler.User(c).ID).Msg("user deleted")

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Service) find(c *fiber.Ctx) (*models.User, error) {
	id, err := handler.UintParam(c, "id")
	if err != nil {
		return nil, err
	}

	return s.deps.Local.GetUserByID(id)
}

func (s *Service) roleExists(c *fiber.Ctx, id uint) error {
	err := s.deps.DB.WithContext(c.UserContext()).First(&models.Role{}, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, auth.ErrRoleNotFound.Error())
	}

	return err
}
