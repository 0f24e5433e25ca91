package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mesa-backend/pkg/enums"
)

// Table is a physical table. Busy iff CurrentOrderID points at a non-paid
// order whose table_id matches.
type Table struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string            `gorm:"column:name;not null"`
	Zone           string            `gorm:"column:zone;not null"`
	Status         enums.TableStatus `gorm:"column:status;type:table_status;not null;default:'free'"`
	CurrentOrderID *uuid.UUID        `gorm:"column:current_order_id;type:uuid"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
