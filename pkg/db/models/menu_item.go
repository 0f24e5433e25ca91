package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MenuItem is a sellable dish. Its recipe rows describe per-unit ingredient
// consumption; an item without recipe rows is unconstrained by stock.
type MenuItem struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string             `gorm:"column:name;not null"`
	Category       string             `gorm:"column:category;not null"`
	UnitPriceCents int                `gorm:"column:unit_price_cents;not null"`
	Active         bool               `gorm:"column:active;not null;default:true"`
	Recipe         []RecipeIngredient `gorm:"foreignKey:MenuItemID"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// RecipeIngredient maps one ingredient consumed per unit of a menu item.
type RecipeIngredient struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MenuItemID      uuid.UUID       `gorm:"column:menu_item_id;type:uuid;not null;index"`
	InventoryItemID uuid.UUID       `gorm:"column:inventory_item_id;type:uuid;not null"`
	QtyPerUnit      decimal.Decimal `gorm:"column:qty_per_unit;type:numeric(14,3);not null"`
	Position        int             `gorm:"column:position;not null;default:0"`
}
