package settings

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/settings"
	"github.com/cardforge/cardforge/internal/web/handler/handlertest"
)

func TestSecretsAreRedactedAndKept(t *testing.T) {
	env := handlertest.New(t, &Service{})
	admin := env.User("root", models.RoleAdmin)

	resp := env.Do(admin, http.MethodPut, Path+"/"+settings.GroupPayment, map[string]any{
		"gateway":    "stripe",
		"secret_key": "sk_live_moyasar",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	shown := handlertest.Decode[settings.Payment](t, resp)
	assert.Equal(t, settings.Redacted, shown.SecretKey)
	assert.Equal(t, "stripe", shown.Gateway)

	// the form posts the placeholder back unchanged
	resp = env.Do(admin, http.MethodPost, Path+"/"+settings.GroupPayment, map[string]any{
		"secret_key": settings.Redacted,
		"currency":   "USD",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env.Deps.Settings.Refresh()

	stored, err := env.Deps.Settings.Payment(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "sk_live_moyasar", stored.SecretKey)
	assert.Equal(t, "USD", stored.Currency)
	assert.Equal(t, "stripe", stored.Gateway)

	resp = env.Do(admin, http.MethodGet, Path+"/"+settings.GroupPayment, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, settings.Redacted, handlertest.Decode[settings.Payment](t, resp).SecretKey)
}

func TestUpdateRejections(t *testing.T) {
	env := handlertest.New(t, &Service{})
	admin := env.User("root", models.RoleAdmin)
	user := env.User("alice", models.RoleUser)

	tests := []struct {
		name       string
		user       *models.User
		group      string
		body       map[string]any
		wantStatus int
	}{
		{"not an admin", user, settings.GroupGeneral, map[string]any{}, http.StatusForbidden},
		{"unknown group", admin, "mail", map[string]any{}, http.StatusNotFound},
		{"invalid value", admin, settings.GroupPayment, map[string]any{"gateway": "paypal"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.Do(tt.user, http.MethodPut, Path+"/"+tt.group, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}

	stored, err := env.Deps.Settings.Payment(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "moyasar", stored.Gateway, "a rejected save leaves the stored value")
}

func TestGroupsLists(t *testing.T) {
	env := handlertest.New(t, &Service{})
	admin := env.User("root", models.RoleAdmin)

	resp := env.Do(admin, http.MethodGet, Path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.ElementsMatch(t, settings.Names(), handlertest.Decode[map[string][]string](t, resp)["items"])
}
