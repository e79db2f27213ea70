package orders

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/db"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:orders_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  customer_id TEXT,
  customer_name TEXT NOT NULL,
  customer_phone TEXT NOT NULL,
  delivery_type TEXT NOT NULL,
  address TEXT,
  delivery_fee NUMERIC NOT NULL DEFAULT 0,
  payment_method TEXT NOT NULL,
  change_for NUMERIC,
  lines TEXT NOT NULL,
  total_amount NUMERIC NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, conn.Exec(orders).Error)
	require.NoError(t, conn.Exec(outboxEvents).Error)
	return conn
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
}

type storeFixture struct {
	db          *gorm.DB
	repo        *Repository
	feed        *MemoryFeed
	permissions *pkgerrors.Emitter
	store       *store
}

func newStoreFixture(t *testing.T, emitter outboxEmitter) *storeFixture {
	t.Helper()
	conn := setupOrdersTestDB(t)
	if emitter == nil {
		emitter = outbox.NewEmitter(outbox.NewRepository(conn), nil)
	}
	f := &storeFixture{
		db:          conn,
		repo:        NewRepository(conn),
		feed:        NewMemoryFeed(),
		permissions: pkgerrors.NewEmitter(),
	}
	s, err := NewStore(StoreDeps{
		DB:          db.NewFromGorm(conn),
		Repo:        f.repo,
		Outbox:      emitter,
		Feed:        f.feed,
		Permissions: f.permissions,
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	f.store = s.(*store)
	return f
}

func newOrder(tenantID uuid.UUID, deliveryType enums.DeliveryType) *models.Order {
	final := decimal.RequireFromString("25.00")
	return &models.Order{
		TenantID:      tenantID,
		CustomerName:  "João",
		CustomerPhone: "11999990000",
		DeliveryType:  deliveryType,
		DeliveryFee:   decimal.RequireFromString("5.00"),
		PaymentMethod: "Pix",
		Lines: []models.OrderLine{
			{ProductID: uuid.New(), Name: "Pizza", Quantity: 1, UnitPrice: decimal.NewFromInt(20), FinalPrice: &final},
		},
		TotalAmount: decimal.RequireFromString("30.00"),
	}
}

// seedOrder inserts directly, bypassing the store, with a fixed creation time.
func seedOrder(t *testing.T, conn *gorm.DB, tenantID uuid.UUID, status enums.OrderStatus, createdAt time.Time) models.Order {
	t.Helper()
	order := newOrder(tenantID, enums.DeliveryTypeDelivery)
	order.ID = uuid.New()
	order.Status = status
	order.CreatedAt = createdAt.UTC()
	order.UpdatedAt = createdAt.UTC()
	require.NoError(t, conn.Create(order).Error)
	return *order
}
