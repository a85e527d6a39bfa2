package card

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/web/handler/handlertest"
)

func createCard(t *testing.T, env *handlertest.Env, user *models.User, in Input) models.Card {
	t.Helper()

	resp := env.Do(user, http.MethodPost, Path, in)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	return handlertest.Decode[models.Card](t, resp)
}

func TestCreateAppliesDefaultsAndPlanLimit(t *testing.T) {
	env := handlertest.New(t, &Service{})
	user := env.User("alice", models.RoleUser)

	created := createCard(t, env, user, Input{FullName: "Alice Example", JobTitle: "Engineer"})
	assert.Equal(t, "alice-example", created.Slug)
	assert.Equal(t, user.ID, created.UserID)
	require.NotNil(t, created.ThemeID, "default theme expected")

	resp := env.Do(user, http.MethodPost, Path, Input{FullName: "Second Card"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	body := handlertest.Decode[map[string]any](t, resp)
	assert.Equal(t, "cards", body["feature"])
}

func TestCreateValidation(t *testing.T) {
	env := handlertest.New(t, &Service{})
	user := env.User("alice", models.RoleUser)

	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"missing name", Input{}, "fullName"},
		{"bad email", Input{FullName: "A", Email: "not-an-email"}, "email"},
		{"bad phone", Input{FullName: "A", Phone: "0500000000"}, "phone"},
		{"bad link", Input{FullName: "A", Links: []models.CardLink{{Label: "x", URL: "nope"}}}, "url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.Do(user, http.MethodPost, Path, tt.in)
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

			body := handlertest.Decode[struct {
				Errors map[string][]string `json:"errors"`
			}](t, resp)
			assert.Contains(t, body.Errors, tt.field)
		})
	}
}

func TestCreateRejectsForeignPrivateTheme(t *testing.T) {
	env := handlertest.New(t, &Service{})
	owner := env.User("owner", models.RoleUser)
	other := env.User("other", models.RoleUser)

	private := models.Theme{Name: "Mine", UserID: &owner.ID}
	require.NoError(t, env.DB.Create(&private).Error)

	resp := env.Do(other, http.MethodPost, Path, Input{FullName: "Other", ThemeID: &private.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	missing := uint(999)
	resp = env.Do(other, http.MethodPost, Path, Input{FullName: "Other", ThemeID: &missing})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	created := createCard(t, env, owner, Input{FullName: "Owner", ThemeID: &private.ID})
	assert.Equal(t, private.ID, *created.ThemeID)
}

func TestAccessIsGuardedByPolicy(t *testing.T) {
	env := handlertest.New(t, &Service{})
	owner := env.User("owner", models.RoleUser)
	other := env.User("other", models.RoleUser)
	admin := env.User("root", models.RoleAdmin)

	draft := createCard(t, env, owner, Input{FullName: "Draft Card"})

	tests := []struct {
		name       string
		user       *models.User
		method     string
		wantStatus int
	}{
		{"anonymous", nil, http.MethodGet, http.StatusUnauthorized},
		{"stranger cannot view draft", other, http.MethodGet, http.StatusForbidden},
		{"stranger cannot update", other, http.MethodPut, http.StatusForbidden},
		{"stranger cannot delete", other, http.MethodDelete, http.StatusForbidden},
		{"owner views", owner, http.MethodGet, http.StatusOK},
		{"admin views", admin, http.MethodGet, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body any
			if tt.method == http.MethodPut {
				body = Input{FullName: "Hijacked"}
			}

			resp := env.Do(tt.user, tt.method, Path+"/"+draft.UUID, body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestPublicPageServesPublishedCardsOnly(t *testing.T) {
	env := handlertest.New(t, &Service{})
	owner := env.User("owner", models.RoleUser)

	card := createCard(t, env, owner, Input{FullName: "Jane Doe", Slug: "jane"})

	resp := env.Do(nil, http.MethodGet, "/c/jane", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.Do(owner, http.MethodPut, Path+"/"+card.UUID, Input{FullName: "Jane Doe", Published: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := handlertest.Decode[models.Card](t, resp)
	assert.Equal(t, "jane", updated.Slug, "an empty slug keeps the current one")

	resp = env.Do(nil, http.MethodGet, "/c/jane", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Jane Doe", handlertest.Decode[models.Card](t, resp).FullName)
}

func TestTrashLifecycle(t *testing.T) {
	env := handlertest.New(t, &Service{})
	owner := env.User("owner", models.RoleUser)
	admin := env.User("root", models.RoleAdmin)

	first := createCard(t, env, owner, Input{FullName: "First"})

	resp := env.Do(owner, http.MethodDelete, Path+"/"+first.UUID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.Do(owner, http.MethodGet, Path+"?trashed=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, handlertest.Decode[map[string][]models.Card](t, resp)["items"], 1)

	// the trashed card no longer counts, its replacement fills the plan again
	createCard(t, env, owner, Input{FullName: "Second"})

	resp = env.Do(owner, http.MethodPost, Path+"/"+first.UUID+"/restore", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.Do(owner, http.MethodDelete, Path+"/"+first.UUID+"/force", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "only admins delete for good")

	resp = env.Do(admin, http.MethodDelete, Path+"/"+first.UUID+"/force", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	var count int64
	require.NoError(t, env.DB.Unscoped().Model(&models.Card{}).Where("uuid = ?", first.UUID).Count(&count).Error)
	assert.Zero(t, count)
}
