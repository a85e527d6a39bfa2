// Package card provides the card endpoints of the API and the public card page.
package card

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"

	"github.com/cardforge/cardforge/internal/auth"
	cardctl "github.com/cardforge/cardforge/internal/db/controller/card"
	themectl "github.com/cardforge/cardforge/internal/db/controller/theme"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/policy"
	"github.com/cardforge/cardforge/internal/subscription"
	"github.com/cardforge/cardforge/internal/web/handler"
)

const (
	// Path is the card collection of the API.
	Path = handler.APIPath + "/cards"
	// PublicPath serves published cards by slug.
	PublicPath = "/c/:slug"

	idParam = "uuid"
)

// Input is the card form.
type Input struct {
	ThemeID   *uint             `json:"themeId"`
	Slug      string            `json:"slug"      validate:"max=100"`
	FullName  string            `json:"fullName"  validate:"required,max=150"`
	JobTitle  string            `json:"jobTitle"  validate:"max=150"`
	Company   string            `json:"company"   validate:"max=150"`
	Bio       string            `json:"bio"       validate:"max=2000"`
	Email     string            `json:"email"     validate:"omitempty,email,max=255"`
	Phone     string            `json:"phone"     validate:"omitempty,e164"`
	Website   string            `json:"website"   validate:"omitempty,url,max=255"`
	Locale    string            `json:"locale"    validate:"omitempty,bcp47_language_tag"`
	Links     []models.CardLink `json:"links"     validate:"max=20,dive"`
	Published bool              `json:"published"`
}

func (in *Input) apply(c *models.Card) {
	c.ThemeID = in.ThemeID
	c.Slug = in.Slug
	c.FullName = in.FullName
	c.JobTitle = in.JobTitle
	c.Company = in.Company
	c.Bio = in.Bio
	c.Email = in.Email
	c.Phone = in.Phone
	c.Website = in.Website
	c.Locale = in.Locale
	c.Links = datatypes.NewJSONSlice(in.Links)
	c.Published = in.Published
}

// Service is the card handler service.
type Service struct {
	deps   *handler.Deps
	policy policy.CardPolicy
}

// Handler is the card handler.
var Handler = Service{}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() || deps.Subscriptions == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Get(PublicPath, s.Public)

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.RequireUser())
		router.Get(handler.RouterRootPath, s.List)
		router.Post(handler.RouterRootPath, auth.RequirePermission(deps.Auth, auth.PermCardsManage), s.Create)
		router.Get("/:"+idParam, s.Show)
		router.Put("/:"+idParam, auth.RequirePermission(deps.Auth, auth.PermCardsManage), s.Update)
		router.Delete("/:"+idParam, s.Delete)
		router.Post("/:"+idParam+"/restore", s.Restore)
		router.Delete("/:"+idParam+"/force", s.ForceDelete)
	})

	return nil
}

// Public renders a published card and counts the view.
func (s *Service) Public(c *fiber.Ctx) error {
	found, err := cardctl.GetPublishedBySlug(s.deps.DB.WithContext(c.UserContext()), c.Params("slug"))
	if err != nil {
		return err
	}

	return c.JSON(found)
}

// List returns the cards of the signed in user.
func (s *Service) List(c *fiber.Ctx) error {
	user := handler.User(c)
	if err := policy.Authorize[models.Card](s.policy, user, policy.ViewAny, nil); err != nil {
		return err
	}

	cards, err := cardctl.ListByUser(s.deps.DB.WithContext(c.UserContext()), user.ID, c.QueryBool("trashed"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"items": cards})
}

// Create adds a card within the plan limit.
func (s *Service) Create(c *fiber.Ctx) error {
	user := handler.User(c)
	if err := policy.Authorize[models.Card](s.policy, user, policy.Create, nil); err != nil {
		return err
	}

	in := new(Input)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	ctx := c.UserContext()
	if err := s.deps.Subscriptions.Ensure(ctx, user, subscription.FeatureCards); err != nil {
		return err
	}

	db := s.deps.DB.WithContext(ctx)

	created := &models.Card{UserID: user.ID}
	in.apply(created)

	if err := s.checkTheme(c, created); err != nil {
		return err
	}

	if err := cardctl.Create(db, created); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// Show returns one card.
func (s *Service) Show(c *fiber.Ctx) error {
	found, err := cardctl.Get(s.deps.DB.WithContext(c.UserContext()), c.Params(idParam))
	if err != nil {
		return err
	}

	if err := policy.Authorize[models.Card](s.policy, handler.User(c), policy.View, found); err != nil {
		return err
	}

	return c.JSON(found)
}

// Update changes a card.
func (s *Service) Update(c *fiber.Ctx) error {
	db := s.deps.DB.WithContext(c.UserContext())

	found, err := cardctl.Get(db, c.Params(idParam))
	if err != nil {
		return err
	}

	if err := policy.Authorize[models.Card](s.policy, handler.User(c), policy.Update, found); err != nil {
		return err
	}

	in := new(Input)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	if in.Slug == "" {
		in.Slug = found.Slug
	}

	edit := *found
	in.apply(&edit)

	if err := s.checkTheme(c, &edit); err != nil {
		return err
	}

	if err := cardctl.Update(db, &edit); err != nil {
		return err
	}

	updated, err := cardctl.Get(db, found.UUID)
	if err != nil {
		return err
	}

	return c.JSON(updated)
}

// Delete moves a card to the trash.
func (s *Service) Delete(c *fiber.Ctx) error {
	db := s.deps.DB.WithContext(c.UserContext())

	found, err := cardctl.Get(db, c.Params(idParam))
	if err != nil {
		return err
	}

	if err := policy.Authorize[models.Card](s.policy, handler.User(c), policy.Delete, found); err != nil {
		return err
	}

	if err := cardctl.Delete(db, found.UUID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Restore takes a card out of the trash, the plan limit applies again.
func (s *Service) Restore(c *fiber.Ctx) error {
	ctx := c.UserContext()
	db := s.deps.DB.WithContext(ctx)

	found, err := cardctl.GetWithTrashed(db, c.Params(idParam))
	if err != nil {
		return err
	}

	user := handler.User(c)
	if err := policy.Authorize[models.Card](s.policy, user, policy.Restore, found); err != nil {
		return err
	}

	if !found.DeletedAt.Valid {
		return c.JSON(found)
	}

	owner := &models.User{ID: found.UserID}
	if err := s.deps.Subscriptions.Ensure(ctx, owner, subscription.FeatureCards); err != nil {
		return err
	}

	if err := cardctl.Restore(db, found.UUID); err != nil {
		return err
	}

	restored, err := cardctl.Get(db, found.UUID)
	if err != nil {
		return err
	}

	return c.JSON(restored)
}

// ForceDelete removes a card for good.
func (s *Service) ForceDelete(c *fiber.Ctx) error {
	db := s.deps.DB.WithContext(c.UserContext())

	found, err := cardctl.GetWithTrashed(db, c.Params(idParam))
	if err != nil {
		return err
	}

	if err := policy.Authorize[models.Card](s.policy, handler.User(c), policy.ForceDelete, found); err != nil {
		return err
	}

	if err := cardctl.ForceDelete(db, found.UUID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// checkTheme makes sure the chosen theme is visible to the owner, cards without theme get the default one.
func (s *Service) checkTheme(c *fiber.Ctx, target *models.Card) error {
	db := s.deps.DB.WithContext(c.UserContext())

	if target.ThemeID == nil {
		def, err := themectl.Default(db)
		if err != nil {
			return err
		}

		if def != nil {
			target.ThemeID = &def.ID
		}

		return nil
	}

	th, err := themectl.Get(db, *target.ThemeID)
	if errors.Is(err, themectl.ErrThemeNotFound) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "the selected theme does not exist")
	}

	if err != nil {
		return err
	}

	if !(policy.ThemePolicy{}).Allows(&models.User{ID: target.UserID}, policy.View, th) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "the selected theme is not available")
	}

	return nil
}
