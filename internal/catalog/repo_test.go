package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price NUMERIC NOT NULL,
  category TEXT NOT NULL DEFAULT '',
  image_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  variant_groups TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	zones := `
CREATE TABLE IF NOT EXISTS delivery_zones (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  neighborhood TEXT NOT NULL,
  delivery_fee NUMERIC NOT NULL,
  delivery_time TEXT NOT NULL DEFAULT '',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(products).Error)
	require.NoError(t, db.Exec(zones).Error)
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, tenantID uuid.UUID, name, category string, active bool) models.Product {
	t.Helper()
	p := models.Product{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     name,
		Price:    decimal.RequireFromString("19.90"),
		Category: category,
		IsActive: active,
		VariantGroups: []models.VariantGroup{
			{Name: "Tamanho", Min: 1, Max: 1, Items: []models.VariantItem{{Name: "P", Price: decimal.Zero}}},
		},
	}
	require.NoError(t, db.Create(&p).Error)
	if !active {
		// gorm skips zero-value bools that have a column default
		require.NoError(t, db.Model(&models.Product{}).Where("id = ?", p.ID).Update("is_active", false).Error)
	}
	return p
}

func TestRepositoryReadsTenantCatalog(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	burger := seedProduct(t, db, tenantID, "X-Salada", "Lanches", true)
	seedProduct(t, db, tenantID, "Antigo", "Lanches", false)
	seedProduct(t, db, uuid.New(), "Outro tenant", "Lanches", true)

	got, err := repo.FindProduct(ctx, tenantID, burger.ID)
	require.NoError(t, err)
	assert.Equal(t, "X-Salada", got.Name)
	require.Len(t, got.VariantGroups, 1)
	assert.True(t, got.VariantGroups[0].SingleChoice())
	assert.True(t, got.Price.Equal(decimal.RequireFromString("19.90")))

	_, err = repo.FindProduct(ctx, uuid.New(), burger.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	active, err := repo.ListActiveProducts(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, burger.ID, active[0].ID)
}

func TestServiceMenuGroupsByCategory(t *testing.T) {
	db := setupCatalogTestDB(t)
	tenantID := uuid.New()
	seedProduct(t, db, tenantID, "Coca", "Bebidas", true)
	seedProduct(t, db, tenantID, "X-Tudo", "Lanches", true)
	seedProduct(t, db, tenantID, "Suco", "Bebidas", true)
	seedProduct(t, db, tenantID, "Brinde", "", true)

	require.NoError(t, db.Create(&models.DeliveryZone{
		ID: uuid.New(), TenantID: tenantID, Neighborhood: "Centro", DeliveryFee: decimal.NewFromInt(5), IsActive: true,
	}).Error)
	closed := models.DeliveryZone{ID: uuid.New(), TenantID: tenantID, Neighborhood: "Zona Rural", DeliveryFee: decimal.NewFromInt(15), IsActive: true}
	require.NoError(t, db.Create(&closed).Error)
	require.NoError(t, db.Model(&models.DeliveryZone{}).Where("id = ?", closed.ID).Update("is_active", false).Error)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	menu, err := svc.Menu(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, menu.Categories, 3)
	assert.Equal(t, "Outros", menu.Categories[0].Name)
	assert.Equal(t, "Bebidas", menu.Categories[1].Name)
	assert.Len(t, menu.Categories[1].Products, 2)
	require.Len(t, menu.Zones, 1)
	assert.Equal(t, "Centro", menu.Zones[0].Neighborhood)

	zones, err := svc.ListDeliveryZones(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Len(t, zones, 2)
}

func TestServiceGetProductMapsErrors(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	_, err = svc.GetProduct(context.Background(), uuid.New(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = NewService(nil)
	assert.Error(t, err)
}
