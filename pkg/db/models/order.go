package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mesa-backend/pkg/enums"
)

// Order is one table's active order aggregate. A table owns at most one
// non-paid order at a time.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TableID       uuid.UUID         `gorm:"column:table_id;type:uuid;not null;index"`
	Zone          string            `gorm:"column:zone;not null"`
	Status        enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'open'"`
	Note          *string           `gorm:"column:note"`
	KitchenNote   *string           `gorm:"column:kitchen_note"`
	SubtotalCents int               `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountCents int               `gorm:"column:discount_cents;not null;default:0"`
	TotalCents    int               `gorm:"column:total_cents;not null;default:0"`
	CreatedBy     string            `gorm:"column:created_by;not null"`
	ChefName      *string           `gorm:"column:chef_name"`
	ServedBy      *string           `gorm:"column:served_by"`
	PaidBy        *string           `gorm:"column:paid_by"`
	Lines         []OrderLine       `gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	StartedAt     *time.Time        `gorm:"column:started_at"`
	FinishedAt    *time.Time        `gorm:"column:finished_at"`
	PaidAt        *time.Time        `gorm:"column:paid_at"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// HasNewItems reports whether any line carries quantity the kitchen has not
// accepted yet.
func (o Order) HasNewItems() bool {
	for _, line := range o.Lines {
		if line.QtyRequested > line.QtyAccepted {
			return true
		}
	}
	return false
}

// Outstanding reports whether any kitchen work remains: unaccepted requests
// or accepted-but-incomplete quantities.
func (o Order) Outstanding() bool {
	for _, line := range o.Lines {
		if line.QtyRequested > line.QtyAccepted || line.QtyAccepted > line.QtyCompleted {
			return true
		}
	}
	return false
}
