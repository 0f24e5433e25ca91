package kitchen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/mesa-backend/internal/inventory"
	"github.com/angelmondragon/mesa-backend/internal/notifications"
	"github.com/angelmondragon/mesa-backend/internal/orders"
	"github.com/angelmondragon/mesa-backend/internal/reservation"
	"github.com/angelmondragon/mesa-backend/pkg/config"
	"github.com/angelmondragon/mesa-backend/pkg/db"
	"github.com/angelmondragon/mesa-backend/pkg/db/models"
	"github.com/angelmondragon/mesa-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mesa-backend/pkg/errors"
	"github.com/angelmondragon/mesa-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockChecker verifies a requirement against derived availability.
type StockChecker interface {
	Check(ctx context.Context, tx *gorm.DB, require reservation.Requirement, excludeOrderID *uuid.UUID) error
}

// StockConsumer deducts settled stock inside the settlement transaction.
type StockConsumer interface {
	Consume(ctx context.Context, tx *gorm.DB, input inventory.ConsumeInput) (*models.InventoryItem, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, topic string, payload any)
}

// Service defines the chef-facing dispatch operations.
type Service interface {
	Queue(ctx context.Context) (*Queue, error)
	Accept(ctx context.Context, input AcceptInput) (*models.Order, error)
	Complete(ctx context.Context, input CompleteInput) (*models.Order, error)
}

// LineWork is one line's outstanding quantity in a queue bucket.
type LineWork struct {
	Line models.OrderLine `json:"line"`
	Qty  int              `json:"qty"`
}

// QueueEntry is one order in the dispatch queue with its work split into
// quantity awaiting accept and quantity already on the fire.
type QueueEntry struct {
	Order       models.Order `json:"order"`
	NewWork     []LineWork   `json:"new_work"`
	ActiveWork  []LineWork   `json:"active_work"`
	WaitedSince time.Time    `json:"waited_since"`
}

// Queue is the kitchen's view of outstanding orders, FIFO within each
// bucket.
type Queue struct {
	Incoming   []QueueEntry `json:"incoming"`
	InProgress []QueueEntry `json:"in_progress"`
	Issues     []QueueEntry `json:"issues"`
}

// AcceptInput claims a pending order for the kitchen.
type AcceptInput struct {
	OrderID  uuid.UUID
	ChefName string
}

// CompleteInput settles a cooking order: deduct stock, mark served.
type CompleteInput struct {
	OrderID  uuid.UUID
	ChefName string
}

// KitchenEvent is the payload broadcast on the kitchen topic.
type KitchenEvent struct {
	Type    string            `json:"type"`
	OrderID uuid.UUID         `json:"order_id"`
	TableID uuid.UUID         `json:"table_id"`
	Status  enums.OrderStatus `json:"status"`
}

const eventsTopic = "kitchen"

type service struct {
	repo      orders.Repository
	tx        txRunner
	stock     StockChecker
	consumer  StockConsumer
	notifier  notifications.Service
	events    eventPublisher
	metrics   *metrics.CoreMetrics
	retryConf config.RetryConfig
}

// NewService wires a kitchen service with the required dependencies.
func NewService(repo orders.Repository, tx txRunner, stock StockChecker, consumer StockConsumer, notifier notifications.Service, events eventPublisher, coreMetrics *metrics.CoreMetrics, retryCfg config.RetryConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock checker required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("stock consumer required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notification service required")
	}
	if events == nil {
		return nil, fmt.Errorf("event publisher required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		stock:     stock,
		consumer:  consumer,
		notifier:  notifier,
		events:    events,
		metrics:   coreMetrics,
		retryConf: retryCfg,
	}, nil
}

func (s *service) runWithRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(s.retryConf.Attempts()), retry.NewExponential(s.retryConf.Delay()))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && db.IsRetryableConflict(err) {
			s.metrics.IncTxRetry(operation)
			return retry.RetryableError(err)
		}
		return err
	})
}

// Queue derives the dispatch view. An order that picked up new items while
// cooking moves back to the incoming bucket but keeps its active work
// visible, so the chef sees both halves at once.
func (s *service) Queue(ctx context.Context) (*Queue, error) {
	list, err := s.repo.ListOrders(ctx, []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusCooking,
		enums.OrderStatusIssue,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list kitchen orders")
	}

	queue := &Queue{}
	for _, order := range list {
		// issues stay visible until resolved; the other buckets only show
		// orders with work left
		if order.Status != enums.OrderStatusIssue && !order.Outstanding() {
			continue
		}
		entry := buildEntry(order)
		switch order.Status {
		case enums.OrderStatusPending:
			queue.Incoming = append(queue.Incoming, entry)
		case enums.OrderStatusCooking:
			queue.InProgress = append(queue.InProgress, entry)
		case enums.OrderStatusIssue:
			queue.Issues = append(queue.Issues, entry)
		}
	}
	return queue, nil
}

func buildEntry(order models.Order) QueueEntry {
	entry := QueueEntry{Order: order, WaitedSince: order.CreatedAt}
	if order.StartedAt != nil {
		entry.WaitedSince = *order.StartedAt
	}
	for _, line := range order.Lines {
		if qty := line.QtyRequested - line.QtyAccepted; qty > 0 {
			entry.NewWork = append(entry.NewWork, LineWork{Line: line, Qty: qty})
		}
		if qty := line.QtyAccepted - line.QtyCompleted; qty > 0 {
			entry.ActiveWork = append(entry.ActiveWork, LineWork{Line: line, Qty: qty})
		}
	}
	return entry
}

// Accept re-checks the order's full requirement against stock not claimed
// by other orders. The order's own claim is excluded so it cannot block
// itself. A failed check parks the order as an issue instead of erroring:
// the state change and the notification must survive the request.
func (s *service) Accept(ctx context.Context, input AcceptInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	chef := strings.TrimSpace(input.ChefName)
	if chef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chef name required")
	}

	var becameIssue bool
	err := s.runWithRetry(ctx, "kitchen_accept", func(ctx context.Context) error {
		becameIssue = false
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindOrderForUpdate(ctx, input.OrderID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
			}
			if order.Status != enums.OrderStatusPending {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be accepted")
			}

			needed := reservation.Requirement{}
			for _, line := range order.Lines {
				needed.AddSnapshot(line.Name, line.Recipe, line.QtyRequested)
			}

			checkErr := s.stock.Check(ctx, tx, needed, &order.ID)
			if checkErr != nil {
				typed := pkgerrors.As(checkErr)
				if typed == nil || typed.Code() != pkgerrors.CodeStockShortage {
					return checkErr
				}

				s.metrics.IncReservationRejections()
				note := typed.Message()
				if cause := typed.Unwrap(); cause != nil {
					note = cause.Error()
				}
				if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
					"status":       enums.OrderStatusIssue,
					"kitchen_note": note,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "park order as issue")
				}

				waiter := order.CreatedBy
				if _, err := s.notifier.Publish(ctx, tx, notifications.PublishInput{
					Kind:        enums.NotificationKindKitchenIssue,
					Title:       "Kitchen cannot fulfill order",
					Message:     note,
					CreatedBy:   chef,
					TargetActor: &waiter,
				}); err != nil {
					return err
				}
				becameIssue = true
				return nil
			}

			for _, line := range order.Lines {
				if line.QtyAccepted == line.QtyRequested {
					continue
				}
				if err := repo.UpdateLine(ctx, line.ID, map[string]any{"qty_accepted": line.QtyRequested}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept order line")
				}
			}

			updates := map[string]any{
				"status":    enums.OrderStatusCooking,
				"chef_name": chef,
			}
			if order.StartedAt == nil {
				updates["started_at"] = time.Now().UTC()
			}
			return repo.UpdateOrder(ctx, order.ID, updates)
		})
	})
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	eventType := "kitchen.accepted"
	if becameIssue {
		eventType = "kitchen.issue"
	}
	s.events.Publish(ctx, eventsTopic, KitchenEvent{Type: eventType, OrderID: order.ID, TableID: order.TableID, Status: order.Status})
	return order, nil
}

// Complete settles a cooking order: every accepted quantity is deducted
// from inventory through the ledger, the order becomes served and the
// waiter is notified, all in one transaction. Calling it again on a served
// order is a no-op, so a retried request cannot deduct twice.
func (s *service) Complete(ctx context.Context, input CompleteInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	chef := strings.TrimSpace(input.ChefName)
	if chef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chef name required")
	}

	var alreadySettled bool
	var lowStockAlerts int
	err := s.runWithRetry(ctx, "kitchen_complete", func(ctx context.Context) error {
		alreadySettled = false
		lowStockAlerts = 0
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
			case enums.OrderStatusServed, enums.OrderStatusPaid:
				alreadySettled = true
				return nil
			case enums.OrderStatusCooking:
			default:
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only cooking orders can be completed")
			}

			needed := reservation.Requirement{}
			for _, line := range order.Lines {
				needed.AddSnapshot(line.Name, line.Recipe, line.QtyAccepted-line.QtyCompleted)
			}

			var lowItems []*models.InventoryItem
			for _, itemID := range needed.ItemIDs() {
				item, err := s.consumer.Consume(ctx, tx, inventory.ConsumeInput{
					ItemID:      itemID,
					Qty:         needed[itemID].Qty,
					OrderID:     order.ID,
					PerformedBy: chef,
				})
				if err != nil {
					return err
				}
				switch {
				case item.Quantity.IsZero():
					if _, err := s.notifier.Publish(ctx, tx, notifications.PublishInput{
						Kind:      enums.NotificationKindOutOfStock,
						Title:     fmt.Sprintf("Out of stock: %s", item.Name),
						Message:   fmt.Sprintf("%s is fully depleted", item.Name),
						CreatedBy: chef,
					}); err != nil {
						return err
					}
					lowStockAlerts++
				case item.LowStock():
					lowItems = append(lowItems, item)
				}
			}

			// one notification per settlement, every flagged ingredient in it
			if len(lowItems) > 0 {
				if _, err := s.notifier.Publish(ctx, tx, lowStockAlert(lowItems, chef)); err != nil {
					return err
				}
				lowStockAlerts += len(lowItems)
			}

			for _, line := range order.Lines {
				if line.QtyCompleted == line.QtyAccepted {
					continue
				}
				if err := repo.UpdateLine(ctx, line.ID, map[string]any{"qty_completed": line.QtyAccepted}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order line")
				}
			}

			if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
				"status":      enums.OrderStatusServed,
				"served_by":   chef,
				"finished_at": time.Now().UTC(),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order served")
			}

			waiter := order.CreatedBy
			_, err = s.notifier.Publish(ctx, tx, notifications.PublishInput{
				Kind:        enums.NotificationKindOrderReady,
				Title:       "Order ready to serve",
				Message:     fmt.Sprintf("order for table %s is ready", order.TableID),
				CreatedBy:   chef,
				TargetActor: &waiter,
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	if !alreadySettled {
		s.metrics.IncOrdersServed()
		s.metrics.AddLowStockAlerts(lowStockAlerts)
		s.events.Publish(ctx, eventsTopic, KitchenEvent{Type: "kitchen.served", OrderID: order.ID, TableID: order.TableID, Status: order.Status})
	}
	return order, nil
}

func lowStockAlert(items []*models.InventoryItem, chef string) notifications.PublishInput {
	names := make([]string, 0, len(items))
	levels := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
		levels = append(levels, fmt.Sprintf("%s at %s %s", item.Name, item.Quantity, item.Unit))
	}
	return notifications.PublishInput{
		Kind:      enums.NotificationKindLowStock,
		Title:     fmt.Sprintf("Low stock: %s", strings.Join(names, ", ")),
		Message:   strings.Join(levels, "; "),
		CreatedBy: chef,
	}
}
