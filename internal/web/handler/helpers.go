package handler

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/db/models"
)

// Page is the envelope of paginated listings.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

// NewPage wraps a listing.
func NewPage[T any](items []T, total int64, page, pageSize int) Page[T] {
	return Page[T]{Items: items, Total: total, Page: page, PageSize: pageSize}
}

// Bind parses the request body into v and validates it.
func Bind(c *fiber.Ctx, v *validator.Validate, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	return v.StructCtx(c.UserContext(), out)
}

// Pagination reads page and pageSize from the query string.
func Pagination(c *fiber.Ctx) (page, pageSize int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	pageSize = c.QueryInt("pageSize", DefaultPageSize)
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	return page, pageSize
}

// UintParam parses a numeric route parameter.
func UintParam(c *fiber.Ctx, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}

	return id, nil
}

// User returns the signed in user, nil for anonymous requests.
func User(c *fiber.Ctx) *models.User {
	return auth.CurrentUser(c)
}

// WantsJSON reports whether the client prefers a JSON answer over an HTML redirect.
func WantsJSON(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Path(), APIPath) || c.Get(fiber.HeaderAuthorization) != "" {
		return true
	}

	if c.Get(fiber.HeaderXRequestedWith) == "XMLHttpRequest" {
		return true
	}

	accept := c.Get(fiber.HeaderAccept)

	return accept == "" || c.Accepts(fiber.MIMEApplicationJSON, fiber.MIMETextHTML) == fiber.MIMEApplicationJSON
}

// NewValidator returns a validator reporting fields by their json name.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}

		return name
	})

	return v
}
