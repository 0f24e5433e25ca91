package reservation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mesa-backend/pkg/db/models"
	"github.com/angelmondragon/mesa-backend/pkg/enums"
)

// Repository reads the rows the stock calculator derives reservations from.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ActiveLines(ctx context.Context, excludeOrderID *uuid.UUID) ([]models.OrderLine, error)
	FindItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.InventoryItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reservation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ActiveLines returns every line of orders that currently claim stock.
// Claiming statuses are open, pending and cooking; issue orders already
// failed an accept and wait for resolution, so they hold nothing.
func (r *repository) ActiveLines(ctx context.Context, excludeOrderID *uuid.UUID) ([]models.OrderLine, error) {
	claiming := []enums.OrderStatus{
		enums.OrderStatusOpen,
		enums.OrderStatusPending,
		enums.OrderStatusCooking,
	}
	q := r.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = order_lines.order_id").
		Where("orders.status IN ?", claiming)
	if excludeOrderID != nil {
		q = q.Where("order_lines.order_id <> ?", *excludeOrderID)
	}
	var lines []models.OrderLine
	if err := q.Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) FindItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.InventoryItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.InventoryItem
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
