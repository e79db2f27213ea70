package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

// ErrItemNotFound is returned when a mutation names an item the cart does not hold.
var ErrItemNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")

// Aggregator owns the cart of one session. Every mutation writes the full snapshot
// back through the SnapshotStore; totals are derived on each read.
type Aggregator struct {
	key   Key
	items []Item
	store SnapshotStore
	now   func() time.Time
}

// Restore loads the session snapshot. A missing snapshot is an empty cart, and so is
// one that cannot be decoded (logged at warn). Store failures are returned.
func Restore(ctx context.Context, store SnapshotStore, key Key, logg *logger.Logger) (*Aggregator, error) {
	if err := key.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart session")
	}
	agg := &Aggregator{key: key, store: store, now: time.Now}

	raw, err := store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return agg, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart storage unavailable")
	}

	items, err := decodeSnapshot(raw)
	if err != nil {
		if logg != nil {
			warnCtx := logg.WithFields(ctx, map[string]any{
				"tenant_id":  key.TenantID.String(),
				"session_id": key.SessionID,
				"error":      err.Error(),
			})
			logg.Warn(warnCtx, "discarding incompatible cart snapshot")
		}
		return agg, nil
	}
	agg.items = items
	return agg, nil
}

func decodeSnapshot(raw []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	for i, item := range items {
		if item.ID == "" || item.Quantity < 1 {
			return nil, fmt.Errorf("item %d is malformed", i)
		}
	}
	return items, nil
}

// Add appends a line for product (or merges it, see MergePolicy). Quantity below 1 counts as 1.
func (a *Aggregator) Add(ctx context.Context, product models.Product, quantity int, notes string, variants []models.SelectedVariant) (Item, error) {
	if quantity < 1 {
		quantity = 1
	}
	line := Item{
		ID:         a.nextID(product),
		Product:    product,
		Quantity:   quantity,
		Notes:      strings.TrimSpace(notes),
		Variants:   variants,
		FinalPrice: FinalPrice(product, variants),
	}

	next := MergePolicy(a.items, line)
	if err := a.commit(ctx, next); err != nil {
		return Item{}, err
	}
	if len(variants) == 0 {
		for _, item := range a.items {
			if item.Product.ID == product.ID && len(item.Variants) == 0 {
				return item, nil
			}
		}
	}
	return line, nil
}

// Remove drops itemID. Removing an unknown id is a no-op.
func (a *Aggregator) Remove(ctx context.Context, itemID string) error {
	idx := a.indexOf(itemID)
	if idx < 0 {
		return nil
	}
	next := make([]Item, 0, len(a.items)-1)
	next = append(next, a.items[:idx]...)
	next = append(next, a.items[idx+1:]...)
	return a.commit(ctx, next)
}

// SetQuantity sets an item quantity; q <= 0 removes the item.
func (a *Aggregator) SetQuantity(ctx context.Context, itemID string, q int) error {
	if q <= 0 {
		return a.Remove(ctx, itemID)
	}
	idx := a.indexOf(itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	next := a.Items()
	next[idx].Quantity = q
	return a.commit(ctx, next)
}

func (a *Aggregator) SetNotes(ctx context.Context, itemID, text string) error {
	idx := a.indexOf(itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	next := a.Items()
	next[idx].Notes = strings.TrimSpace(text)
	return a.commit(ctx, next)
}

// Clear empties the cart and deletes its snapshot.
func (a *Aggregator) Clear(ctx context.Context) error {
	if err := a.store.Delete(ctx, a.key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart storage unavailable")
	}
	a.items = nil
	return nil
}

// Items returns a copy of the cart lines in insertion order.
func (a *Aggregator) Items() []Item {
	out := make([]Item, len(a.items))
	copy(out, a.items)
	return out
}

func (a *Aggregator) IsEmpty() bool {
	return len(a.items) == 0
}

// TotalItems is the sum of quantities.
func (a *Aggregator) TotalItems() int {
	total := 0
	for _, item := range a.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice is the sum of FinalPrice x Quantity.
func (a *Aggregator) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range a.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func (a *Aggregator) Key() Key {
	return a.key
}

// commit persists next and only then swaps it in.
func (a *Aggregator) commit(ctx context.Context, next []Item) error {
	data, err := json.Marshal(next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart snapshot")
	}
	if err := a.store.Save(ctx, a.key, data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart storage unavailable")
	}
	a.items = next
	return nil
}

func (a *Aggregator) indexOf(itemID string) int {
	for i, item := range a.items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// nextID derives an id from the product id and the current instant, stepping past
// any id already present in the cart.
func (a *Aggregator) nextID(product models.Product) string {
	stamp := a.now().UnixNano()
	for {
		id := product.ID.String() + "-" + strconv.FormatInt(stamp, 10)
		if a.indexOf(id) < 0 {
			return id
		}
		stamp++
	}
}
