package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mesa-backend/pkg/db/types"
)

// OrderLine is one menu item within an order. Name, price and recipe are
// denormalized at add-time. Invariant held by every mutation:
// 0 <= QtyCompleted <= QtyAccepted <= QtyRequested.
type OrderLine struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	MenuItemID     uuid.UUID            `gorm:"column:menu_item_id;type:uuid;not null"`
	Name           string               `gorm:"column:name;not null"`
	UnitPriceCents int                  `gorm:"column:unit_price_cents;not null"`
	QtyRequested   int                  `gorm:"column:qty_requested;not null"`
	QtyAccepted    int                  `gorm:"column:qty_accepted;not null;default:0"`
	QtyCompleted   int                  `gorm:"column:qty_completed;not null;default:0"`
	Note           *string              `gorm:"column:note"`
	Recipe         types.RecipeSnapshot `gorm:"column:recipe;type:jsonb;not null"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// TotalCents is the line's contribution to the order subtotal.
func (l OrderLine) TotalCents() int {
	return l.UnitPriceCents * l.QtyRequested
}
