package reservation

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/mesa-backend/pkg/db/models"
	"github.com/angelmondragon/mesa-backend/pkg/db/types"
	pkgerrors "github.com/angelmondragon/mesa-backend/pkg/errors"
)

// Claim is what a set of order lines asks of one inventory item: the
// total quantity and the dishes that ask for it.
type Claim struct {
	Qty    decimal.Decimal
	Dishes []string
}

// Requirement maps inventory items to the claim a set of order lines
// places on them.
type Requirement map[uuid.UUID]Claim

// AddSnapshot folds one line's frozen recipe, scaled by quantity, into the
// requirement, attributing the claim to the line's dish.
func (r Requirement) AddSnapshot(dish string, snapshot types.RecipeSnapshot, qty int) {
	if qty <= 0 {
		return
	}
	scale := decimal.NewFromInt(int64(qty))
	for _, component := range snapshot {
		claim := r[component.InventoryItemID]
		claim.Qty = claim.Qty.Add(component.QtyPerUnit.Mul(scale))
		if dish != "" && !containsDish(claim.Dishes, dish) {
			claim.Dishes = append(claim.Dishes, dish)
		}
		r[component.InventoryItemID] = claim
	}
}

func containsDish(dishes []string, dish string) bool {
	for _, d := range dishes {
		if d == dish {
			return true
		}
	}
	return false
}

// ItemIDs returns the required item ids in stable order.
func (r Requirement) ItemIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Availability is the derived stock position of one item.
type Availability struct {
	Item      models.InventoryItem `json:"item"`
	Reserved  decimal.Decimal      `json:"reserved"`
	Available decimal.Decimal      `json:"available"`
}

// Shortage describes one item that cannot cover a requirement: how much
// was asked, what is physically on hand, what is left after other orders'
// claims, and which dishes ask for it.
type Shortage struct {
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	Name            string          `json:"name"`
	Required        decimal.Decimal `json:"required"`
	Stock           decimal.Decimal `json:"stock"`
	Available       decimal.Decimal `json:"available"`
	Dishes          []string        `json:"dishes"`
}

// Service derives stock reservations from active orders. Reservations are
// never stored: the claiming orders' lines are the single source of truth,
// so a crashed process cannot leak a stale hold.
type Service interface {
	Reserved(ctx context.Context, tx *gorm.DB, excludeOrderID *uuid.UUID) (Requirement, error)
	Availability(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) (map[uuid.UUID]Availability, error)
	Check(ctx context.Context, tx *gorm.DB, require Requirement, excludeOrderID *uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService wires the reservation calculator.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	return &service{repo: repo}, nil
}

// Reserved sums every claiming line's recipe over its full requested
// quantity. The kitchen accept path passes its own order in excludeOrderID
// so the order under review is not counted against itself.
func (s *service) Reserved(ctx context.Context, tx *gorm.DB, excludeOrderID *uuid.UUID) (Requirement, error) {
	repo := s.repo.WithTx(tx)
	lines, err := repo.ActiveLines(ctx, excludeOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load claiming order lines")
	}

	reserved := Requirement{}
	for _, line := range lines {
		reserved.AddSnapshot(line.Name, line.Recipe, line.QtyRequested)
	}
	return reserved, nil
}

func (s *service) Availability(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) (map[uuid.UUID]Availability, error) {
	repo := s.repo.WithTx(tx)
	items, err := repo.FindItemsByIDs(ctx, itemIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory items")
	}

	reserved, err := s.Reserved(ctx, tx, nil)
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]Availability, len(items))
	for _, item := range items {
		held := reserved[item.ID].Qty
		out[item.ID] = Availability{
			Item:      item,
			Reserved:  held,
			Available: item.Quantity.Sub(held),
		}
	}
	return out, nil
}

// Check verifies that current stock covers the requirement on top of what
// every other claiming order already holds. On failure it reports every
// short item at once so the caller can surface the full picture.
func (s *service) Check(ctx context.Context, tx *gorm.DB, require Requirement, excludeOrderID *uuid.UUID) error {
	if len(require) == 0 {
		return nil
	}

	repo := s.repo.WithTx(tx)
	ids := require.ItemIDs()
	items, err := repo.FindItemsByIDs(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory items")
	}
	byID := make(map[uuid.UUID]models.InventoryItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	reserved, err := s.Reserved(ctx, tx, excludeOrderID)
	if err != nil {
		return err
	}

	var shortages []Shortage
	var combined error
	for _, id := range ids {
		claim := require[id]
		item, ok := byID[id]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "recipe references unknown ingredient").
				WithDetails(map[string]any{"inventory_item_id": id})
		}
		available := item.Quantity.Sub(reserved[id].Qty)
		if available.LessThan(claim.Qty) {
			shortages = append(shortages, Shortage{
				InventoryItemID: item.ID,
				Name:            item.Name,
				Required:        claim.Qty,
				Stock:           item.Quantity,
				Available:       available,
				Dishes:          claim.Dishes,
			})
			combined = multierr.Append(combined, fmt.Errorf("%s: need %s, available %s of %s in stock", item.Name, claim.Qty, available, item.Quantity))
		}
	}
	if combined != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStockShortage, combined, "insufficient stock").
			WithDetails(map[string]any{"shortages": shortages})
	}
	return nil
}
