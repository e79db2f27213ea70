package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
)

// Repository reads tenant menus and delivery zones.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindProduct loads one product of the tenant, active or not.
func (r *Repository) FindProduct(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		First(&product).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListActiveProducts returns the tenant's active products ordered for menu display.
func (r *Repository) ListActiveProducts(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("category ASC").
		Order("name ASC").
		Find(&rows).
		Error
	return rows, err
}

// ListDeliveryZones returns every zone of the tenant, including inactive ones.
func (r *Repository) ListDeliveryZones(ctx context.Context, tenantID uuid.UUID) ([]models.DeliveryZone, error) {
	var rows []models.DeliveryZone
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("neighborhood ASC").
		Find(&rows).
		Error
	return rows, err
}
