package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/mesa-backend/pkg/db/models"
	"github.com/angelmondragon/mesa-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mesa-backend/pkg/errors"
	"github.com/angelmondragon/mesa-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines stock management operations. Every quantity change runs
// through a movement that appends a ledger row; the item row is never set
// directly from user input.
type Service interface {
	CreateItem(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	ListItems(ctx context.Context) ([]models.InventoryItem, error)
	ListLowStock(ctx context.Context) ([]models.InventoryItem, error)
	UpdateItem(ctx context.Context, input UpdateItemInput) (*models.InventoryItem, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
	Import(ctx context.Context, input ImportInput) (*models.InventoryTransaction, error)
	Audit(ctx context.Context, input AuditInput) (*models.InventoryTransaction, error)
	Damage(ctx context.Context, input DamageInput) (*models.InventoryTransaction, error)
	Ledger(ctx context.Context, query LedgerQuery) (*LedgerPage, error)
	Consume(ctx context.Context, tx *gorm.DB, input ConsumeInput) (*models.InventoryItem, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// CreateItemInput describes a new ingredient.
type CreateItemInput struct {
	Name         string
	Unit         string
	MinThreshold decimal.Decimal
}

// UpdateItemInput carries the mutable descriptive fields of an item.
type UpdateItemInput struct {
	ItemID       uuid.UUID
	Name         *string
	Unit         *string
	MinThreshold *decimal.Decimal
}

// ImportInput records a stock delivery.
type ImportInput struct {
	ItemID      uuid.UUID
	Qty         decimal.Decimal
	UnitCost    decimal.Decimal
	Reason      *string
	PerformedBy string
}

// AuditInput replaces the tracked quantity with a physically counted one.
type AuditInput struct {
	ItemID      uuid.UUID
	CountedQty  decimal.Decimal
	Reason      *string
	PerformedBy string
}

// DamageInput writes off spoiled or broken stock.
type DamageInput struct {
	ItemID      uuid.UUID
	Qty         decimal.Decimal
	Reason      string
	PerformedBy string
}

// ConsumeInput deducts stock for one settled order ingredient.
type ConsumeInput struct {
	ItemID      uuid.UUID
	Qty         decimal.Decimal
	OrderID     uuid.UUID
	PerformedBy string
}

// LedgerQuery pages through an item's movement history, newest first.
type LedgerQuery struct {
	ItemID uuid.UUID
	Cursor string
	Limit  int
}

// LedgerPage is one page of ledger rows plus the cursor for the next page.
type LedgerPage struct {
	Transactions []models.InventoryTransaction
	NextCursor   string
}

// NewService wires an inventory service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name required")
	}
	if strings.TrimSpace(input.Unit) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item unit required")
	}
	if input.MinThreshold.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min threshold cannot be negative")
	}

	item := &models.InventoryItem{
		Name:         name,
		Unit:         strings.TrimSpace(input.Unit),
		Quantity:     decimal.Zero,
		AvgCost:      decimal.Zero,
		MinThreshold: input.MinThreshold,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory item")
	}
	return item, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	item, err := s.repo.FindItem(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context) ([]models.InventoryItem, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory items")
	}
	return items, nil
}

func (s *service) ListLowStock(ctx context.Context) ([]models.InventoryItem, error) {
	items, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock items")
	}
	return items, nil
}

func (s *service) UpdateItem(ctx context.Context, input UpdateItemInput) (*models.InventoryItem, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name cannot be blank")
		}
		updates["name"] = name
	}
	if input.Unit != nil {
		unit := strings.TrimSpace(*input.Unit)
		if unit == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item unit cannot be blank")
		}
		updates["unit"] = unit
	}
	if input.MinThreshold != nil {
		if input.MinThreshold.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "min threshold cannot be negative")
		}
		updates["min_threshold"] = *input.MinThreshold
	}
	if len(updates) == 0 {
		return s.GetItem(ctx, input.ItemID)
	}

	if _, err := s.GetItem(ctx, input.ItemID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateItem(ctx, input.ItemID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory item")
	}
	return s.GetItem(ctx, input.ItemID)
}

func (s *service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if _, err := s.GetItem(ctx, id); err != nil {
		return err
	}
	refs, err := s.repo.CountRecipeReferences(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count recipe references")
	}
	if refs > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "item is referenced by menu recipes")
	}
	if err := s.repo.SoftDeleteItem(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete inventory item")
	}
	return nil
}

// Import adds delivered stock and folds the delivery price into the item's
// weighted average cost.
func (s *service) Import(ctx context.Context, input ImportInput) (*models.InventoryTransaction, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if !input.Qty.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "import quantity must be positive")
	}
	if input.UnitCost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit cost cannot be negative")
	}
	if strings.TrimSpace(input.PerformedBy) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "performed by required")
	}

	var txn *models.InventoryTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItemForUpdate(ctx, input.ItemID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory item")
		}

		newQty := item.Quantity.Add(input.Qty)
		newAvg := item.AvgCost
		if newQty.IsPositive() {
			held := item.Quantity.Mul(item.AvgCost)
			added := input.Qty.Mul(input.UnitCost)
			newAvg = held.Add(added).DivRound(newQty, 4)
		}

		if err := repo.UpdateItem(ctx, item.ID, map[string]any{
			"quantity": newQty,
			"avg_cost": newAvg,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply import")
		}

		unitCost := input.UnitCost
		txn = &models.InventoryTransaction{
			InventoryItemID: item.ID,
			Type:            enums.MovementTypeImport,
			Delta:           input.Qty,
			StockAfter:      newQty,
			UnitCost:        &unitCost,
			Reason:          input.Reason,
			PerformedBy:     input.PerformedBy,
		}
		return repo.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Audit snaps the tracked quantity to a physical count. The ledger keeps the
// difference, so a miscount stays visible instead of silently vanishing.
func (s *service) Audit(ctx context.Context, input AuditInput) (*models.InventoryTransaction, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.CountedQty.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counted quantity cannot be negative")
	}
	if strings.TrimSpace(input.PerformedBy) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "performed by required")
	}

	var txn *models.InventoryTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItemForUpdate(ctx, input.ItemID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory item")
		}

		delta := input.CountedQty.Sub(item.Quantity)
		if err := repo.UpdateItem(ctx, item.ID, map[string]any{
			"quantity": input.CountedQty,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply audit")
		}

		txn = &models.InventoryTransaction{
			InventoryItemID: item.ID,
			Type:            enums.MovementTypeAudit,
			Delta:           delta,
			StockAfter:      input.CountedQty,
			Reason:          input.Reason,
			PerformedBy:     input.PerformedBy,
		}
		return repo.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Damage writes off stock that can no longer be sold. Unlike an audit the
// quantity to remove is explicit and must be covered by current stock.
func (s *service) Damage(ctx context.Context, input DamageInput) (*models.InventoryTransaction, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if !input.Qty.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "damage quantity must be positive")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "damage reason required")
	}
	if strings.TrimSpace(input.PerformedBy) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "performed by required")
	}

	var txn *models.InventoryTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItemForUpdate(ctx, input.ItemID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory item")
		}
		if item.Quantity.LessThan(input.Qty) {
			return pkgerrors.New(pkgerrors.CodeStockShortage, "damage exceeds current stock").
				WithDetails(map[string]any{
					"item_id":   item.ID,
					"available": item.Quantity,
					"requested": input.Qty,
				})
		}

		newQty := item.Quantity.Sub(input.Qty)
		if err := repo.UpdateItem(ctx, item.ID, map[string]any{
			"quantity": newQty,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply damage")
		}

		reason := input.Reason
		txn = &models.InventoryTransaction{
			InventoryItemID: item.ID,
			Type:            enums.MovementTypeDamage,
			Delta:           input.Qty.Neg(),
			StockAfter:      newQty,
			Reason:          &reason,
			PerformedBy:     input.PerformedBy,
		}
		return repo.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) Ledger(ctx context.Context, query LedgerQuery) (*LedgerPage, error) {
	if query.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(query.Limit)

	txns, err := s.repo.ListTransactions(ctx, query.ItemID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory transactions")
	}

	page := &LedgerPage{Transactions: txns}
	if len(txns) > limit {
		page.Transactions = txns[:limit]
		last := page.Transactions[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// Consume deducts settled stock inside the caller's transaction. The guarded
// UPDATE is the single point that enforces non-negative stock under
// concurrent settlements.
func (s *service) Consume(ctx context.Context, tx *gorm.DB, input ConsumeInput) (*models.InventoryItem, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for consume")
	}
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Qty.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "consume quantity must be positive")
	}

	repo := s.repo.WithTx(tx)
	affected, err := repo.ApplyDelta(ctx, input.ItemID, input.Qty.Neg().String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume inventory")
	}
	if affected == 0 {
		item, findErr := repo.FindItem(ctx, input.ItemID)
		details := map[string]any{"item_id": input.ItemID, "requested": input.Qty}
		if findErr == nil {
			details["available"] = item.Quantity
		}
		return nil, pkgerrors.New(pkgerrors.CodeStockShortage, "insufficient stock").WithDetails(details)
	}

	item, err := repo.FindItem(ctx, input.ItemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory item")
	}

	orderID := input.OrderID
	txn := &models.InventoryTransaction{
		InventoryItemID: item.ID,
		Type:            enums.MovementTypeConsume,
		Delta:           input.Qty.Neg(),
		StockAfter:      item.Quantity,
		PerformedBy:     input.PerformedBy,
		OrderID:         &orderID,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record consume")
	}
	return item, nil
}
