package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/mesa-backend/internal/reservation"
	"github.com/angelmondragon/mesa-backend/pkg/config"
	"github.com/angelmondragon/mesa-backend/pkg/db"
	"github.com/angelmondragon/mesa-backend/pkg/db/models"
	"github.com/angelmondragon/mesa-backend/pkg/db/types"
	"github.com/angelmondragon/mesa-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mesa-backend/pkg/errors"
	"github.com/angelmondragon/mesa-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MenuResolver freezes a dish's price and recipe at add-time.
type MenuResolver interface {
	Resolve(ctx context.Context, menuItemID uuid.UUID) (*models.MenuItem, types.RecipeSnapshot, error)
}

// StockChecker verifies a requirement against derived availability.
type StockChecker interface {
	Check(ctx context.Context, tx *gorm.DB, require reservation.Requirement, excludeOrderID *uuid.UUID) error
}

type eventPublisher interface {
	Publish(ctx context.Context, topic string, payload any)
}

// Service defines the waiter- and cashier-facing order operations.
type Service interface {
	CreateTable(ctx context.Context, input CreateTableInput) (*models.Table, error)
	ListTables(ctx context.Context) ([]models.Table, error)
	OpenTable(ctx context.Context, input OpenTableInput) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, statuses []enums.OrderStatus) ([]models.Order, error)
	AddLine(ctx context.Context, input AddLineInput) (*models.Order, error)
	RemoveLine(ctx context.Context, input RemoveLineInput) (*models.Order, error)
	Submit(ctx context.Context, input SubmitInput) (*models.Order, error)
	Pay(ctx context.Context, input PayInput) (*models.Order, error)
	Reopen(ctx context.Context, input ReopenInput) (*models.Order, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	menu    MenuResolver
	stock   StockChecker
	events  eventPublisher
	metrics *metrics.CoreMetrics
	retry   config.RetryConfig
}

// CreateTableInput registers a physical table.
type CreateTableInput struct {
	Name string
	Zone string
}

// OpenTableInput seats guests and opens the table's order.
type OpenTableInput struct {
	TableID  uuid.UUID
	OpenedBy string
}

// AddLineInput adds requested quantity of one dish to an order.
type AddLineInput struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Qty        int
	Note       *string
	Actor      string
}

// RemoveLineInput takes requested quantity back off an order line. Qty zero
// removes everything the kitchen has not accepted.
type RemoveLineInput struct {
	OrderID uuid.UUID
	LineID  uuid.UUID
	Qty     int
	Actor   string
}

// SubmitInput sends the built-up order to the kitchen.
type SubmitInput struct {
	OrderID uuid.UUID
	Note    *string
	Actor   string
}

// PayInput settles the bill and frees the table.
type PayInput struct {
	OrderID       uuid.UUID
	DiscountCents int
	PaidBy        string
}

// ReopenInput returns an issue order to the kitchen queue.
type ReopenInput struct {
	OrderID uuid.UUID
	Actor   string
}

// OrderEvent is the payload broadcast on the orders topic.
type OrderEvent struct {
	Type    string            `json:"type"`
	OrderID uuid.UUID         `json:"order_id"`
	TableID uuid.UUID         `json:"table_id"`
	Status  enums.OrderStatus `json:"status"`
}

const eventsTopic = "orders"

// NewService wires an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, menu MenuResolver, stock StockChecker, events eventPublisher, coreMetrics *metrics.CoreMetrics, retryCfg config.RetryConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if menu == nil {
		return nil, fmt.Errorf("menu resolver required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock checker required")
	}
	if events == nil {
		return nil, fmt.Errorf("event publisher required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		menu:    menu,
		stock:   stock,
		events:  events,
		metrics: coreMetrics,
		retry:   retryCfg,
	}, nil
}

// runWithRetry re-runs fn when the database reports a serialization
// conflict. Anything else fails through immediately.
func (s *service) runWithRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(s.retry.Attempts()), retry.NewExponential(s.retry.Delay()))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && db.IsRetryableConflict(err) {
			s.metrics.IncTxRetry(operation)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *service) CreateTable(ctx context.Context, input CreateTableInput) (*models.Table, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "table name required")
	}
	zone := strings.TrimSpace(input.Zone)
	if zone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "table zone required")
	}

	table := &models.Table{
		Name:   name,
		Zone:   zone,
		Status: enums.TableStatusFree,
	}
	if err := s.repo.CreateTable(ctx, table); err != nil {
		if db.IsUniqueViolation(err, "uniq_tables_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "table name already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create table")
	}
	return table, nil
}

func (s *service) ListTables(ctx context.Context) ([]models.Table, error) {
	tables, err := s.repo.ListTables(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tables")
	}
	return tables, nil
}

func (s *service) OpenTable(ctx context.Context, input OpenTableInput) (*models.Order, error) {
	if input.TableID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "table id required")
	}
	if strings.TrimSpace(input.OpenedBy) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "opened by required")
	}

	var order *models.Order
	err := s.runWithRetry(ctx, "open_table", func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			table, err := repo.FindTableForUpdate(ctx, input.TableID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "table not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock table")
			}
			if table.Status == enums.TableStatusBusy {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "table already has an active order")
			}

			order = &models.Order{
				TableID:   table.ID,
				Zone:      table.Zone,
				Status:    enums.OrderStatusOpen,
				CreatedBy: input.OpenedBy,
			}
			if err := repo.CreateOrder(ctx, order); err != nil {
				if db.IsUniqueViolation(err, "uniq_orders_active_table") {
					return pkgerrors.New(pkgerrors.CodeStateConflict, "table already has an active order")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}

			return repo.UpdateTable(ctx, table.ID, map[string]any{
				"status":           enums.TableStatusBusy,
				"current_order_id": order.ID,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, eventsTopic, OrderEvent{Type: "order.opened", OrderID: order.ID, TableID: order.TableID, Status: order.Status})
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, statuses []enums.OrderStatus) ([]models.Order, error) {
	for _, status := range statuses {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
		}
	}
	list, err := s.repo.ListOrders(ctx, statuses)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// AddLine snapshots the dish and checks the added quantity against stock
// that is not already claimed by any order, this one included. Lines for
// the same dish merge; the original snapshot and price stay.
func (s *service) AddLine(ctx context.Context, input AddLineInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.MenuItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item id required")
	}
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	dish, snapshot, err := s.menu.Resolve(ctx, input.MenuItemID)
	if err != nil {
		return nil, err
	}

	err = s.runWithRetry(ctx, "add_line", func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindOrderForUpdate(ctx, input.OrderID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
			}
			switch order.Status {
			case enums.OrderStatusOpen, enums.OrderStatusPending, enums.OrderStatusCooking:
			default:
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order does not accept new items in its current state")
			}

			needed := reservation.Requirement{}
			needed.AddSnapshot(dish.Name, snapshot, input.Qty)
			if err := s.stock.Check(ctx, tx, needed, nil); err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStockShortage {
					s.metrics.IncReservationRejections()
				}
				return err
			}

			var existing *models.OrderLine
			for i := range order.Lines {
				if order.Lines[i].MenuItemID == input.MenuItemID {
					existing = &order.Lines[i]
					break
				}
			}
			if existing != nil {
				updates := map[string]any{"qty_requested": existing.QtyRequested + input.Qty}
				if input.Note != nil {
					updates["note"] = input.Note
				}
				if err := repo.UpdateLine(ctx, existing.ID, updates); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge order line")
				}
				existing.QtyRequested += input.Qty
			} else {
				line := &models.OrderLine{
					OrderID:        order.ID,
					MenuItemID:     dish.ID,
					Name:           dish.Name,
					UnitPriceCents: dish.UnitPriceCents,
					QtyRequested:   input.Qty,
					Note:           input.Note,
					Recipe:         snapshot,
				}
				if err := repo.CreateLine(ctx, line); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order line")
				}
				order.Lines = append(order.Lines, *line)
			}

			updates := totalsUpdates(order.Lines, order.DiscountCents)
			// new quantity reopens kitchen review
			if order.Status == enums.OrderStatusCooking {
				updates["status"] = enums.OrderStatusPending
			}
			return repo.UpdateOrder(ctx, order.ID, updates)
		})
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, eventsTopic, OrderEvent{Type: "order.updated", OrderID: order.ID, TableID: order.TableID, Status: order.Status})
	return order, nil
}

// RemoveLine takes back quantity the kitchen has not accepted. Draining the
// last line deletes the whole order and frees its table.
func (s *service) RemoveLine(ctx context.Context, input RemoveLineInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.LineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line id required")
	}
	if input.Qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	var deletedOrder bool
	var tableID uuid.UUID
	err := s.runWithRetry(ctx, "remove_line", func(ctx context.Context) error {
		deletedOrder = false
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindOrderForUpdate(ctx, input.OrderID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
			}
			tableID = order.TableID
			switch order.Status {
			case enums.OrderStatusOpen, enums.OrderStatusPending, enums.OrderStatusIssue:
			default:
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order lines cannot be removed in the current state")
			}

			var line *models.OrderLine
			for i := range order.Lines {
				if order.Lines[i].ID == input.LineID {
					line = &order.Lines[i]
					break
				}
			}
			if line == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order line not found")
			}

			removable := line.QtyRequested - line.QtyAccepted
			qty := input.Qty
			if qty == 0 {
				qty = removable
			}
			if qty > removable {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot remove quantity the kitchen already accepted")
			}

			newRequested := line.QtyRequested - qty
			if newRequested == 0 {
				if err := repo.DeleteLine(ctx, line.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order line")
				}
				line.QtyRequested = 0
			} else {
				if err := repo.UpdateLine(ctx, line.ID, map[string]any{"qty_requested": newRequested}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order line")
				}
				line.QtyRequested = newRequested
			}

			remaining := make([]models.OrderLine, 0, len(order.Lines))
			for _, l := range order.Lines {
				if l.QtyRequested > 0 {
					remaining = append(remaining, l)
				}
			}
			if len(remaining) == 0 {
				if err := repo.DeleteOrder(ctx, order.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete empty order")
				}
				deletedOrder = true
				return repo.UpdateTable(ctx, order.TableID, map[string]any{
					"status":           enums.TableStatusFree,
					"current_order_id": nil,
				})
			}

			return repo.UpdateOrder(ctx, order.ID, totalsUpdates(remaining, order.DiscountCents))
		})
	})
	if err != nil {
		return nil, err
	}

	if deletedOrder {
		s.events.Publish(ctx, eventsTopic, OrderEvent{Type: "order.deleted", OrderID: input.OrderID, TableID: tableID})
		return nil, nil
	}
	order, err := s.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, eventsTopic, OrderEvent{Type: "order.updated", OrderID: order.ID, TableID: order.TableID, Status: order.Status})
	return order, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	err := s.runWithRetry(ctx, "submit_order", func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindOrderForUpdate(ctx, input.OrderID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
			}
			if order.Status != enums.OrderStatusOpen {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only open orders can be submitted")
			}
			if len(order.Lines) == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "order has no lines to submit")
			}

			updates := map[string]any{"status": enums.OrderStatusPending}
			if input.Note != nil {
				updates["note"] = input.Note
			}
			return repo.UpdateOrder(ctx, order.ID, updates)
		})
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, eventsTopic, OrderEvent{Type: "order.submitted", OrderID: order.ID, TableID: order.TableID, Status: order.Status})
	return order, nil
}

func (s *service) Pay(ctx context.Context, input PayInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(input.PaidBy) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paid by required")
	}
	if input.DiscountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative")
	}

	err := s.runWithRetry(ctx, "pay_order", func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindOrderForUpdate(ctx, input.OrderID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
			}
			if order.Status != enums.OrderStatusServed {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only served orders can be paid")
			}
			if input.DiscountCents > order.SubtotalCents {
				return pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds subtotal")
			}

			now := time.Now().UTC()
			updates := totalsUpdates(order.Lines, input.DiscountCents)
			updates["status"] = enums.OrderStatusPaid
			updates["discount_cents"] = input.DiscountCents
			updates["paid_by"] = input.PaidBy
			updates["paid_at"] = now
			if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
			}

			return repo.UpdateTable(ctx, order.TableID, map[string]any{
				"status":           enums.TableStatusFree,
				"current_order_id": nil,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, eventsTopic, OrderEvent{Type: "order.paid", OrderID: order.ID, TableID: order.TableID, Status: order.Status})
	return order, nil
}

// Reopen puts an issue order back in front of the kitchen after a human
// resolved the underlying shortage.
func (s *service) Reopen(ctx context.Context, input ReopenInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	err := s.runWithRetry(ctx, "reopen_order", func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindOrderForUpdate(ctx, input.OrderID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
			}
			if order.Status != enums.OrderStatusIssue {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only issue orders can be reopened")
			}
			return repo.UpdateOrder(ctx, order.ID, map[string]any{
				"status":       enums.OrderStatusPending,
				"kitchen_note": nil,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, eventsTopic, OrderEvent{Type: "order.reopened", OrderID: order.ID, TableID: order.TableID, Status: order.Status})
	return order, nil
}

func totalsUpdates(lines []models.OrderLine, discountCents int) map[string]any {
	subtotal := 0
	for _, line := range lines {
		subtotal += line.TotalCents()
	}
	total := subtotal - discountCents
	if total < 0 {
		total = 0
	}
	return map[string]any{
		"subtotal_cents": subtotal,
		"total_cents":    total,
	}
}
