package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
)

type repository interface {
	FindProduct(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error)
	ListActiveProducts(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error)
	ListDeliveryZones(ctx context.Context, tenantID uuid.UUID) ([]models.DeliveryZone, error)
}

// Reader is the read-only catalog surface used by cart and checkout.
type Reader interface {
	GetProduct(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error)
	ListActiveProducts(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error)
	ListDeliveryZones(ctx context.Context, tenantID uuid.UUID) ([]models.DeliveryZone, error)
	Menu(ctx context.Context, tenantID uuid.UUID) (*Menu, error)
}

// Category groups menu products sharing a category label.
type Category struct {
	Name     string           `json:"name"`
	Products []models.Product `json:"products"`
}

// Menu is the public storefront payload.
type Menu struct {
	TenantID   uuid.UUID             `json:"tenantId"`
	Categories []Category            `json:"categories"`
	Zones      []models.DeliveryZone `json:"deliveryZones"`
}

type service struct {
	repo repository
}

// NewService builds the catalog reader.
func NewService(repo repository) (Reader, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetProduct(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProduct(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) ListActiveProducts(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error) {
	rows, err := s.repo.ListActiveProducts(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return rows, nil
}

func (s *service) ListDeliveryZones(ctx context.Context, tenantID uuid.UUID) ([]models.DeliveryZone, error) {
	rows, err := s.repo.ListDeliveryZones(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery zones")
	}
	return rows, nil
}

// Menu returns active products grouped by category (in first-seen order) and the
// active delivery zones.
func (s *service) Menu(ctx context.Context, tenantID uuid.UUID) (*Menu, error) {
	products, err := s.ListActiveProducts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	zones, err := s.ListDeliveryZones(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	menu := &Menu{TenantID: tenantID, Categories: []Category{}, Zones: ActiveZones(zones)}
	index := map[string]int{}
	for _, p := range products {
		name := strings.TrimSpace(p.Category)
		if name == "" {
			name = "Outros"
		}
		pos, ok := index[name]
		if !ok {
			pos = len(menu.Categories)
			index[name] = pos
			menu.Categories = append(menu.Categories, Category{Name: name})
		}
		menu.Categories[pos].Products = append(menu.Categories[pos].Products, p)
	}
	return menu, nil
}

// ActiveZones filters out inactive zones.
func ActiveZones(zones []models.DeliveryZone) []models.DeliveryZone {
	out := make([]models.DeliveryZone, 0, len(zones))
	for _, z := range zones {
		if z.IsActive {
			out = append(out, z)
		}
	}
	return out
}
