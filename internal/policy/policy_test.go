package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge/internal/db/models"
)

var (
	owner    = &models.User{ID: 1, Role: models.Role{Name: models.RoleUser}}
	stranger = &models.User{ID: 2, Role: models.Role{Name: models.RoleUser}}
	admin    = &models.User{ID: 3, Role: models.Role{Name: models.RoleAdmin}}
)

func uid(id uint64) *uint64 { return &id }

func TestCardPolicy(t *testing.T) {
	draft := &models.Card{UserID: 1}
	published := &models.Card{UserID: 1, Published: true}

	tests := []struct {
		name   string
		actor  *models.User
		action Action
		card   *models.Card
		want   bool
	}{
		{name: "owner views draft", actor: owner, action: View, card: draft, want: true},
		{name: "stranger cannot view draft", actor: stranger, action: View, card: draft},
		{name: "anonymous views published", actor: nil, action: View, card: published, want: true},
		{name: "anonymous cannot view draft", actor: nil, action: View, card: draft},
		{name: "admin views draft", actor: admin, action: View, card: draft, want: true},
		{name: "owner updates", actor: owner, action: Update, card: draft, want: true},
		{name: "stranger cannot update published", actor: stranger, action: Update, card: published},
		{name: "admin deletes", actor: admin, action: Delete, card: draft, want: true},
		{name: "owner restores", actor: owner, action: Restore, card: draft, want: true},
		{name: "owner cannot force delete", actor: owner, action: ForceDelete, card: draft},
		{name: "admin force deletes", actor: admin, action: ForceDelete, card: draft, want: true},
		{name: "user creates", actor: stranger, action: Create, want: true},
		{name: "anonymous cannot create", actor: nil, action: Create},
		{name: "unknown action", actor: admin, action: Action("publish"), card: draft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CardPolicy{}.Allows(tt.actor, tt.action, tt.card))
		})
	}
}

func TestThemePolicy(t *testing.T) {
	system := &models.Theme{IsSystemDefault: true, IsPublic: true}
	private := &models.Theme{UserID: uid(1)}
	public := &models.Theme{UserID: uid(1), IsPublic: true}

	tests := []struct {
		name   string
		actor  *models.User
		action Action
		theme  *models.Theme
		want   bool
	}{
		{name: "anyone views system theme", actor: nil, action: View, theme: system, want: true},
		{name: "stranger views public theme", actor: stranger, action: View, theme: public, want: true},
		{name: "stranger cannot view private theme", actor: stranger, action: View, theme: private},
		{name: "owner views private theme", actor: owner, action: View, theme: private, want: true},
		{name: "owner updates own theme", actor: owner, action: Update, theme: private, want: true},
		{name: "owner force deletes own theme", actor: owner, action: ForceDelete, theme: public, want: true},
		{name: "admin cannot update other users theme", actor: admin, action: Update, theme: private},
		{name: "anonymous cannot create", actor: nil, action: Create},
		{name: "user creates", actor: owner, action: Create, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ThemePolicy{}.Allows(tt.actor, tt.action, tt.theme))
		})
	}
}

func TestSystemDefaultThemeIsImmutableForEveryone(t *testing.T) {
	system := &models.Theme{IsSystemDefault: true, UserID: nil}
	ownedSystem := &models.Theme{IsSystemDefault: true, UserID: uid(1)}

	for _, actor := range []*models.User{nil, owner, stranger, admin} {
		for _, action := range []Action{Update, Delete, Restore, ForceDelete} {
			assert.False(t, ThemePolicy{}.Allows(actor, action, system))
			assert.False(t, ThemePolicy{}.Allows(actor, action, ownedSystem))
		}
	}
}

func TestPaymentPolicy(t *testing.T) {
	p := &models.Payment{UserID: 1}

	tests := []struct {
		name   string
		actor  *models.User
		action Action
		want   bool
	}{
		{name: "owner views", actor: owner, action: View, want: true},
		{name: "admin views", actor: admin, action: View, want: true},
		{name: "stranger cannot view", actor: stranger, action: View},
		{name: "anonymous cannot view", actor: nil, action: View},
		{name: "user creates", actor: stranger, action: Create, want: true},
		{name: "anonymous cannot create", actor: nil, action: Create},
		{name: "owner lists", actor: owner, action: ViewAny, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PaymentPolicy{}.Allows(tt.actor, tt.action, p))
		})
	}

	for _, actor := range []*models.User{owner, admin} {
		for _, action := range []Action{Update, Delete, Restore, ForceDelete} {
			assert.False(t, PaymentPolicy{}.Allows(actor, action, p), "%s %s", actor.Role.Name, action)
		}
	}
}

func TestAuthorize(t *testing.T) {
	card := &models.Card{UserID: 1}

	require.NoError(t, Authorize[models.Card](CardPolicy{}, owner, Update, card))
	require.ErrorIs(t, Authorize[models.Card](CardPolicy{}, stranger, Update, card), ErrForbidden)
	require.ErrorIs(t, Authorize[models.Theme](ThemePolicy{}, admin, Delete, &models.Theme{IsSystemDefault: true}), ErrForbidden)
}
