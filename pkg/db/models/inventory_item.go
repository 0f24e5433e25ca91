package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryItem is the current physical stock for one ingredient. Quantity
// only moves through ledger-writing operations (import, audit, damage,
// settlement consume); it is never overwritten from a cached read.
type InventoryItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string          `gorm:"column:name;not null"`
	Unit         string          `gorm:"column:unit;not null"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null;default:0"`
	AvgCost      decimal.Decimal `gorm:"column:avg_cost;type:numeric(14,4);not null;default:0"`
	MinThreshold decimal.Decimal `gorm:"column:min_threshold;type:numeric(14,3);not null;default:0"`
	DeletedAt    gorm.DeletedAt  `gorm:"column:deleted_at;index"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// LowStock reports whether the item is at or below its alert threshold.
func (i InventoryItem) LowStock() bool {
	return i.Quantity.LessThanOrEqual(i.MinThreshold)
}
