package user

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/web/handler"
	"github.com/cardforge/cardforge/internal/web/handler/handlertest"
)

func userPath(id uint64) string {
	return fmt.Sprintf("%s/%d", Path, id)
}

func TestCreateAndList(t *testing.T) {
	env := handlertest.New(t, &Service{})
	admin := env.User("root", models.RoleAdmin)

	inactive := false
	resp := env.Do(admin, http.MethodPost, Path, CreateInput{
		Username: "bob",
		Email:    "Bob@Example.com",
		Password: "longenough",
		Active:   &inactive,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := handlertest.Decode[models.User](t, resp)
	assert.Equal(t, "bob@example.com", created.Email)
	assert.False(t, created.Active)
	assert.Equal(t, models.RoleUser, created.Role.Name)

	resp = env.Do(admin, http.MethodPost, Path, CreateInput{Username: "bob", Email: "other@example.com", Password: "longenough"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.Do(admin, http.MethodGet, Path+"?search=BO", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	page := handlertest.Decode[handler.Page[models.User]](t, resp)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "bob", page.Items[0].Username)
}

func TestUpdateGuardsOwnAccount(t *testing.T) {
	env := handlertest.New(t, &Service{})
	admin := env.User("root", models.RoleAdmin)
	userRole := env.User("alice", models.RoleUser).RoleID

	tests := []struct {
		name string
		in   UpdateInput
	}{
		{"demote", UpdateInput{Email: admin.Email, RoleID: userRole, Active: true}},
		{"disable", UpdateInput{Email: admin.Email, RoleID: admin.RoleID, Active: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.Do(admin, http.MethodPut, userPath(admin.ID), tt.in)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		})
	}
}

func TestUpdateResetsPhoneVerification(t *testing.T) {
	env := handlertest.New(t, &Service{})
	admin := env.User("root", models.RoleAdmin)
	alice := env.User("alice", models.RoleUser)

	require.NoError(t, env.Deps.Local.UpdateProfile(alice.ID, "", "", "+966500000001", ""))
	require.NoError(t, env.Deps.Local.MarkPhoneVerified(alice.ID, "+966500000001", time.Now()))

	resp := env.Do(admin, http.MethodPut, userPath(alice.ID), UpdateInput{
		Email:    alice.Email,
		Phone:    "+966500000002",
		Password: "brand-new-password",
		RoleID:   alice.RoleID,
		Active:   true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := handlertest.Decode[models.User](t, resp)
	assert.Equal(t, "+966500000002", updated.Phone)
	assert.Nil(t, updated.PhoneVerifiedAt)

	_, err := env.Deps.Local.Authenticate("alice", "brand-new-password")
	require.NoError(t, err)

	resp = env.Do(admin, http.MethodPut, userPath(alice.ID), UpdateInput{Email: alice.Email, RoleID: 999, Active: true})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestDelete(t *testing.T) {
	env := handlertest.New(t, &Service{})
	admin := env.User("root", models.RoleAdmin)
	other := env.User("second", models.RoleAdmin)
	alice := env.User("alice", models.RoleUser)

	resp := env.Do(admin, http.MethodDelete, userPath(other.ID), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.Do(alice, http.MethodDelete, userPath(admin.ID), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.Do(admin, http.MethodDelete, userPath(alice.ID), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.Do(admin, http.MethodGet, userPath(alice.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
