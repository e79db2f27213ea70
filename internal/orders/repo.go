package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/pagination"
)

// Repository persists orders.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID looks the order up across tenants.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForTenant scopes the lookup to one tenant.
func (r *Repository) FindForTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&order).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus writes the status field only and reports whether a row matched.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status enums.OrderStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListByStatus returns the tenant's orders holding any of statuses, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, tenantID uuid.UUID, statuses []enums.OrderStatus) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ?", tenantID, statuses).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).
		Error
	return rows, err
}

type listQuery struct {
	tenantID uuid.UUID
	statuses []enums.OrderStatus
	cursor   *pagination.Cursor
	limit    int
}

// List returns tenant-scoped orders, newest first, using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("tenant_id = ?", opts.tenantID)

	if len(opts.statuses) > 0 {
		query = query.Where("status IN ?", opts.statuses)
	}
	var rows []models.Order
	if err := query.Scopes(pagination.Keyset(opts.cursor, opts.limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
