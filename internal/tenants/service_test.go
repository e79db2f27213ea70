package tenants

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
)

func setupTenantsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	tenants := `
CREATE TABLE IF NOT EXISTS tenants (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  timezone TEXT NOT NULL DEFAULT 'America/Sao_Paulo',
  closed_message TEXT,
  sound_notification_enabled INTEGER,
  auto_print_enabled INTEGER,
  payment_methods_enabled TEXT NOT NULL DEFAULT '[]',
  business_hours TEXT NOT NULL DEFAULT '{}',
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(tenants).Error)
	return db
}

func TestServiceSettingsLoadsTenant(t *testing.T) {
	db := setupTenantsTestDB(t)
	tenant := models.Tenant{
		ID:                    uuid.New(),
		Name:                  "Açaí da Praia",
		Phone:                 "5571988887777",
		Timezone:              "America/Bahia",
		AutoPrintEnabled:      boolPtr(true),
		PaymentMethodsEnabled: []string{"Pix"},
		BusinessHours: models.BusinessHours{
			"monday": {{Open: "10:00", Close: "22:00"}},
		},
	}
	require.NoError(t, db.Create(&tenant).Error)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	settings, err := svc.Settings(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "Açaí da Praia", settings.Display.Name)
	assert.True(t, settings.Notifications.AutoPrintEnabled)
	assert.True(t, settings.Notifications.SoundEnabled)
	assert.Equal(t, []string{"Pix"}, settings.PaymentMethods)
	require.Len(t, settings.Hours["monday"], 1)
	assert.Equal(t, "America/Bahia", settings.Location.String())
}

func TestServiceSettingsErrors(t *testing.T) {
	db := setupTenantsTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	_, err = svc.Settings(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Settings(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = NewService(nil)
	assert.Error(t, err)
}
