package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/internal/variants"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

type productReader interface {
	GetProduct(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error)
}

// Service exposes session-keyed cart operations.
type Service interface {
	Load(ctx context.Context, key Key) (*Aggregator, error)
	Get(ctx context.Context, key Key) (*View, error)
	AddItem(ctx context.Context, key Key, input AddItemInput) (*View, error)
	UpdateItem(ctx context.Context, key Key, itemID string, input UpdateItemInput) (*View, error)
	RemoveItem(ctx context.Context, key Key, itemID string) (*View, error)
	Clear(ctx context.Context, key Key) error
}

// AddItemInput is a customer request to put a product in the cart. Variants maps a
// group name to the item names picked in it.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Notes     string
	Variants  map[string][]string
}

// UpdateItemInput changes quantity and/or notes of a line; nil fields are untouched.
type UpdateItemInput struct {
	Quantity *int
	Notes    *string
}

// View is the cart as returned to clients.
type View struct {
	Items      []Item          `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// ViewOf renders the aggregator totals.
func ViewOf(agg *Aggregator) *View {
	return &View{
		Items:      agg.Items(),
		TotalItems: agg.TotalItems(),
		TotalPrice: agg.TotalPrice(),
	}
}

type service struct {
	store    SnapshotStore
	products productReader
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(store SnapshotStore, products productReader, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{store: store, products: products, logg: logg}, nil
}

func (s *service) Load(ctx context.Context, key Key) (*Aggregator, error) {
	return Restore(ctx, s.store, key, s.logg)
}

func (s *service) Get(ctx context.Context, key Key) (*View, error) {
	agg, err := s.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	return ViewOf(agg), nil
}

func (s *service) AddItem(ctx context.Context, key Key, input AddItemInput) (*View, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.products.GetProduct(ctx, key.TenantID, input.ProductID)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Produto indisponível no momento")
	}

	selected, err := variants.Build(*product, input.Variants)
	if err != nil {
		return nil, err
	}

	agg, err := s.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if _, err := agg.Add(ctx, *product, input.Quantity, input.Notes, selected); err != nil {
		return nil, err
	}
	return ViewOf(agg), nil
}

func (s *service) UpdateItem(ctx context.Context, key Key, itemID string, input UpdateItemInput) (*View, error) {
	agg, err := s.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if input.Notes != nil {
		if err := agg.SetNotes(ctx, itemID, *input.Notes); err != nil {
			return nil, err
		}
	}
	if input.Quantity != nil {
		if err := agg.SetQuantity(ctx, itemID, *input.Quantity); err != nil {
			return nil, err
		}
	}
	return ViewOf(agg), nil
}

func (s *service) RemoveItem(ctx context.Context, key Key, itemID string) (*View, error) {
	agg, err := s.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := agg.Remove(ctx, itemID); err != nil {
		return nil, err
	}
	return ViewOf(agg), nil
}

func (s *service) Clear(ctx context.Context, key Key) error {
	agg, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	return agg.Clear(ctx)
}
