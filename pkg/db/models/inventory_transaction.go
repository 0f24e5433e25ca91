package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mesa-backend/pkg/enums"
)

// InventoryTransaction is one immutable entry in the stock movement ledger.
// Replaying deltas for an item in creation order from zero reproduces the
// item's current quantity.
type InventoryTransaction struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InventoryItemID uuid.UUID          `gorm:"column:inventory_item_id;type:uuid;not null;index"`
	Type            enums.MovementType `gorm:"column:type;type:movement_type;not null"`
	Delta           decimal.Decimal    `gorm:"column:delta;type:numeric(14,3);not null"`
	StockAfter      decimal.Decimal    `gorm:"column:stock_after;type:numeric(14,3);not null"`
	UnitCost        *decimal.Decimal   `gorm:"column:unit_cost;type:numeric(14,4)"`
	Reason          *string            `gorm:"column:reason"`
	PerformedBy     string             `gorm:"column:performed_by;not null"`
	OrderID         *uuid.UUID         `gorm:"column:order_id;type:uuid"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
}
