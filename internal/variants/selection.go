// Package variants validates option-group selections for a single product.
package variants

import (
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
)

var (
	// ErrLimitReached is returned when a multi-choice group already holds its maximum.
	ErrLimitReached = errors.New("variant group limit reached")
	ErrUnknownGroup = errors.New("unknown variant group")
	ErrUnknownItem  = errors.New("unknown variant item")
)

// Selection is the option set being built for one product.
type Selection struct {
	groups []models.VariantGroup
	picked map[string][]string
}

// NewSelection starts an empty selection over the product's variant groups.
func NewSelection(product models.Product) *Selection {
	return &Selection{
		groups: product.VariantGroups,
		picked: make(map[string][]string, len(product.VariantGroups)),
	}
}

// Toggle flips item within group. Single-choice groups replace the prior pick.
// Multi-choice groups refuse a new pick once Max items are held; Max <= 0 means no ceiling.
func (s *Selection) Toggle(group, item string) error {
	g, ok := s.group(group)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGroup, group)
	}
	if _, ok := findItem(g, item); !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownItem, group, item)
	}

	current := s.picked[g.Name]
	if g.SingleChoice() {
		s.picked[g.Name] = []string{item}
		return nil
	}

	for i, name := range current {
		if name == item {
			s.picked[g.Name] = append(current[:i:i], current[i+1:]...)
			return nil
		}
	}
	if g.Max > 0 && len(current) >= g.Max {
		return ErrLimitReached
	}
	s.picked[g.Name] = append(current, item)
	return nil
}

func (s *Selection) IsSelected(group, item string) bool {
	for _, name := range s.picked[group] {
		if name == item {
			return true
		}
	}
	return false
}

// Count returns how many items of group are selected.
func (s *Selection) Count(group string) int {
	return len(s.picked[group])
}

// Confirm checks every group minimum and returns the selected variants in product
// group order, then pick order.
func (s *Selection) Confirm() ([]models.SelectedVariant, error) {
	for _, g := range s.groups {
		if len(s.picked[g.Name]) < g.Min {
			return nil, minimumError(g)
		}
	}

	out := make([]models.SelectedVariant, 0)
	for _, g := range s.groups {
		for _, name := range s.picked[g.Name] {
			item, _ := findItem(g, name)
			out = append(out, models.SelectedVariant{
				Group: g.Name,
				Name:  item.Name,
				Price: item.Price,
			})
		}
	}
	return out, nil
}

// Build replays a client-supplied selection through Toggle and Confirm. Unknown
// groups or items, duplicates and over-limit requests are validation errors.
func Build(product models.Product, requested map[string][]string) ([]models.SelectedVariant, error) {
	sel := NewSelection(product)

	// walk product groups so error reporting is deterministic
	seen := 0
	for _, g := range product.VariantGroups {
		items, ok := requested[g.Name]
		if !ok {
			continue
		}
		seen++
		if ceiling := g.Max; ceiling > 0 && len(items) > ceiling {
			return nil, limitError(g)
		}
		dup := make(map[string]struct{}, len(items))
		for _, item := range items {
			if _, exists := dup[item]; exists {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("opção repetida em %s: %s", g.Name, item)).
					WithDetails(map[string]any{"group": g.Name, "item": item})
			}
			dup[item] = struct{}{}
			if err := sel.Toggle(g.Name, item); err != nil {
				if errors.Is(err, ErrLimitReached) {
					return nil, limitError(g)
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("opção inválida em %s: %s", g.Name, item)).
					WithDetails(map[string]any{"group": g.Name, "item": item})
			}
		}
	}
	if seen != len(requested) {
		for name := range requested {
			if _, ok := sel.group(name); !ok {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrUnknownGroup, "grupo de opções inválido: "+name).
					WithDetails(map[string]any{"group": name})
			}
		}
	}

	return sel.Confirm()
}

func (s *Selection) group(name string) (models.VariantGroup, bool) {
	for _, g := range s.groups {
		if g.Name == name {
			return g, true
		}
	}
	return models.VariantGroup{}, false
}

func findItem(g models.VariantGroup, name string) (models.VariantItem, bool) {
	for _, item := range g.Items {
		if item.Name == name {
			return item, true
		}
	}
	return models.VariantItem{}, false
}

func minimumError(g models.VariantGroup) error {
	noun := "opção"
	if g.Min > 1 {
		noun = "opções"
	}
	msg := fmt.Sprintf("Selecione pelo menos %d %s em %s", g.Min, noun, strings.TrimSpace(g.Name))
	return pkgerrors.New(pkgerrors.CodeValidation, msg).
		WithDetails(map[string]any{"group": g.Name, "min": g.Min})
}

func limitError(g models.VariantGroup) error {
	msg := fmt.Sprintf("Máximo de %d em %s", g.Max, strings.TrimSpace(g.Name))
	return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrLimitReached, msg).
		WithDetails(map[string]any{"group": g.Name, "max": g.Max})
}
