package card

import (
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cardforge/cardforge/internal/db/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Theme{}, &models.Card{}))

	return db
}

func TestCreateSlug(t *testing.T) {
	db := setupTestDB(t)

	testCases := []struct {
		name     string
		card     models.Card
		wantSlug string
		prefix   string
	}{
		{name: "derived from full name", card: models.Card{UserID: 1, FullName: "Jane Doe"}, wantSlug: "jane-doe"},
		{name: "requested slug", card: models.Card{UserID: 1, FullName: "Jane Doe", Slug: "Jane Work"}, wantSlug: "jane-work"},
		{name: "collision gets suffix", card: models.Card{UserID: 2, FullName: "Jane Doe"}, prefix: "jane-doe-"},
		{name: "arabic name falls back", card: models.Card{UserID: 3, FullName: "محمد"}, wantSlug: "card"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.card
			require.NoError(t, Create(db, &c))

			assert.Len(t, c.UUID, 36)

			if tc.wantSlug != "" {
				assert.Equal(t, tc.wantSlug, c.Slug)
				return
			}

			assert.True(t, strings.HasPrefix(c.Slug, tc.prefix), c.Slug)
			assert.Len(t, c.Slug, len(tc.prefix)+6)
		})
	}
}

func TestSoftDeletedSlugStaysReserved(t *testing.T) {
	db := setupTestDB(t)

	first := models.Card{UserID: 1, FullName: "Ali"}
	require.NoError(t, Create(db, &first))
	require.NoError(t, Delete(db, first.UUID))

	second := models.Card{UserID: 1, FullName: "Ali"}
	require.NoError(t, Create(db, &second))
	assert.NotEqual(t, "ali", second.Slug)
}

func TestGetPublishedBySlug(t *testing.T) {
	db := setupTestDB(t)

	published := models.Card{UserID: 1, FullName: "Public Person", Published: true}
	draft := models.Card{UserID: 1, FullName: "Draft Person"}
	require.NoError(t, Create(db, &published))
	require.NoError(t, Create(db, &draft))

	for range 3 {
		_, err := GetPublishedBySlug(db, published.Slug)
		require.NoError(t, err)
	}

	c, err := GetPublishedBySlug(db, published.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(4), c.Views)

	_, err = GetPublishedBySlug(db, draft.Slug)
	require.ErrorIs(t, err, ErrCardNotFound)

	stored, err := Get(db, draft.UUID)
	require.NoError(t, err)
	assert.Zero(t, stored.Views)

	require.NoError(t, Delete(db, published.UUID))
	_, err = GetPublishedBySlug(db, published.Slug)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestUpdate(t *testing.T) {
	db := setupTestDB(t)

	theme := models.Theme{Name: "Dark"}
	require.NoError(t, db.Create(&theme).Error)

	other := models.Card{UserID: 2, FullName: "Taken"}
	c := models.Card{UserID: 1, FullName: "Sara Ahmed"}
	require.NoError(t, Create(db, &other))
	require.NoError(t, Create(db, &c))

	edit := c
	edit.JobTitle = "Engineer"
	edit.Published = true
	edit.ThemeID = &theme.ID
	edit.Links = datatypes.NewJSONSlice([]models.CardLink{{Label: "Site", URL: "https://example.com"}})
	edit.Slug = "taken"
	edit.UserID = 99

	require.NoError(t, Update(db, &edit))

	stored, err := Get(db, c.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Engineer", stored.JobTitle)
	assert.True(t, stored.Published)
	assert.Equal(t, uint64(1), stored.UserID)
	require.NotNil(t, stored.Theme)
	assert.Equal(t, "Dark", stored.Theme.Name)
	require.Len(t, stored.Links, 1)
	assert.True(t, strings.HasPrefix(stored.Slug, "taken-"), stored.Slug)

	missing := models.Card{UUID: "nope"}
	assert.ErrorIs(t, Update(db, &missing), ErrCardNotFound)
}

func TestDeleteRestoreForceDelete(t *testing.T) {
	db := setupTestDB(t)

	c := models.Card{UserID: 1, FullName: "Omar"}
	require.NoError(t, Create(db, &c))

	require.NoError(t, Delete(db, c.UUID))

	n, err := Count(db, 1)
	require.NoError(t, err)
	assert.Zero(t, n)

	cards, err := ListByUser(db, 1, true)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.True(t, cards[0].DeletedAt.Valid)

	require.NoError(t, Restore(db, c.UUID))

	n, err = Count(db, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, ForceDelete(db, c.UUID))

	_, err = GetWithTrashed(db, c.UUID)
	assert.ErrorIs(t, err, ErrCardNotFound)

	assert.ErrorIs(t, Delete(nil, c.UUID), ErrDBNil)
}
