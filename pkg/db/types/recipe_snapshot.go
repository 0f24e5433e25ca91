package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecipeComponent is one ingredient claim copied onto an order line.
type RecipeComponent struct {
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	QtyPerUnit      decimal.Decimal `json:"qty_per_unit"`
}

// RecipeSnapshot is the point-in-time copy of a menu item's recipe taken when
// a line is created. Later recipe edits never change an in-flight order's
// stock accounting, so this is a value stored with the line, not a reference.
type RecipeSnapshot []RecipeComponent

// Value implements driver.Valuer, storing the snapshot as JSON.
func (s RecipeSnapshot) Value() (driver.Value, error) {
	if s == nil {
		s = RecipeSnapshot{}
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *RecipeSnapshot) Scan(value any) error {
	if value == nil {
		*s = RecipeSnapshot{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported recipe snapshot type %T", value)
	}
}
