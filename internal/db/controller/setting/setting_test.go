package setting

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

	require.NoError(t, db.AutoMigrate(&models.Setting{}))

	return db
}

func TestLookups(t *testing.T) {
	db := setupTestDB(t)

	siteName, err := Create(db, "general.site_name", []byte(`"CardForge"`))
	require.NoError(t, err)

	tests := []struct {
		name    string
		lookup  func() (*models.Setting, error)
		wantErr error
	}{
		{"get without db", func() (*models.Setting, error) { return Get(nil, "general.site_name") }, ErrDBNil},
		{"get empty name", func() (*models.Setting, error) { return Get(db, "") }, ErrSettingNameEmpty},
		{"get unknown", func() (*models.Setting, error) { return Get(db, "general.tagline") }, ErrSettingNotFound},
		{"get", func() (*models.Setting, error) { return Get(db, "general.site_name") }, nil},
		{"by id without db", func() (*models.Setting, error) { return GetByID(nil, siteName.ID) }, ErrDBNil},
		{"by unknown id", func() (*models.Setting, error) { return GetByID(db, siteName.ID+100) }, ErrSettingNotFound},
		{"by id", func() (*models.Setting, error) { return GetByID(db, siteName.ID) }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.lookup()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, siteName.ID, got.ID)
			assert.Equal(t, "general", got.Group)
			assert.Equal(t, []byte(`"CardForge"`), got.Value)
		})
	}
}

func TestCreateRejections(t *testing.T) {
	db := setupTestDB(t)

	_, err := Create(db, "payment.currency", []byte(`"SAR"`))
	require.NoError(t, err)

	tests := []struct {
		name    string
		db      *gorm.DB
		setting string
		wantErr error
	}{
		{"no db", nil, "payment.gateway", ErrDBNil},
		{"empty name", db, "", ErrSettingNameEmpty},
		{"duplicate", db, "payment.currency", ErrSettingAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(tt.db, tt.setting, []byte(`"USD"`))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	current, err := Get(db, "payment.currency")
	require.NoError(t, err)
	assert.Equal(t, []byte(`"SAR"`), current.Value)
}

func TestUpdatesAndUpsert(t *testing.T) {
	db := setupTestDB(t)

	_, err := Set(db, "", nil)
	require.ErrorIs(t, err, ErrSettingNameEmpty)

	_, err = Update(db, 42, []byte("1"))
	require.ErrorIs(t, err, ErrSettingNotFound)

	_, err = UpdateByName(db, "auth.registration_enabled", []byte("false"))
	require.ErrorIs(t, err, ErrSettingNotFound)

	created, err := Set(db, "auth.registration_enabled", []byte("true"))
	require.NoError(t, err)

	upserted, err := Set(db, "auth.registration_enabled", []byte("false"))
	require.NoError(t, err)
	assert.Equal(t, created.ID, upserted.ID)

	byID, err := Update(db, created.ID, []byte("true"))
	require.NoError(t, err)
	assert.Equal(t, []byte("true"), byID.Value)

	byName, err := UpdateByName(db, "auth.registration_enabled", []byte("false"))
	require.NoError(t, err)
	assert.Equal(t, []byte("false"), byName.Value)

	all, err := GetAll(db)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDeletes(t *testing.T) {
	db := setupTestDB(t)

	require.ErrorIs(t, Delete(nil, 1), ErrDBNil)
	require.ErrorIs(t, DeleteByName(db, ""), ErrSettingNameEmpty)
	require.ErrorIs(t, Delete(db, 7), ErrSettingNotFound)
	require.ErrorIs(t, DeleteByName(db, "ai.api_key"), ErrSettingNotFound)

	key, err := Create(db, "ai.api_key", []byte(`"sk"`))
	require.NoError(t, err)

	model, err := Create(db, "ai.model", []byte(`"small"`))
	require.NoError(t, err)

	require.NoError(t, DeleteByName(db, key.Name))
	require.NoError(t, Delete(db, model.ID))

	all, err := GetAll(db)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGroupOf(t *testing.T) {
	assert.Equal(t, "payment", GroupOf(Name("payment", "secret_key")))
	assert.Equal(t, "general", GroupOf("general.site.name"))
	assert.Empty(t, GroupOf("legacy"))
}

func TestCreateDerivesGroup(t *testing.T) {
	db := setupTestDB(t)

	s, err := Create(db, "auth.registration_enabled", []byte("true"))
	require.NoError(t, err)
	assert.Equal(t, "auth", s.Group)
}

func TestListByGroup(t *testing.T) {
	db := setupTestDB(t)

	_, err := ListByGroup(nil, "general")
	require.ErrorIs(t, err, ErrDBNil)

	for _, name := range []string{"general.site_name", "general.support_email", "payment.currency"} {
		_, err = Create(db, name, []byte(`"x"`))
		require.NoError(t, err)
	}

	rows, err := ListByGroup(db, "general")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "general.site_name", rows[0].Name)
	assert.Equal(t, "general.support_email", rows[1].Name)

	rows, err = ListByGroup(db, "ai")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSetMany(t *testing.T) {
	db := setupTestDB(t)

	require.ErrorIs(t, SetMany(nil, map[string][]byte{"a.b": nil}), ErrDBNil)
	require.ErrorIs(t, SetMany(db, map[string][]byte{"": []byte("1")}), ErrSettingNameEmpty)
	require.NoError(t, SetMany(db, nil))

	_, err := Create(db, "payment.currency", []byte(`"USD"`))
	require.NoError(t, err)

	err = SetMany(db, map[string][]byte{
		"payment.currency": []byte(`"SAR"`),
		"payment.gateway":  []byte(`"moyasar"`),
	})
	require.NoError(t, err)

	currency, err := Get(db, "payment.currency")
	require.NoError(t, err)
	assert.Equal(t, []byte(`"SAR"`), currency.Value)

	gateway, err := Get(db, "payment.gateway")
	require.NoError(t, err)
	assert.Equal(t, "payment", gateway.Group)

	all, err := GetAll(db)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
