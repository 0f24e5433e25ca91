package kitchen

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/mesa-backend/internal/inventory"
	"github.com/angelmondragon/mesa-backend/internal/notifications"
	"github.com/angelmondragon/mesa-backend/internal/orders"
	"github.com/angelmondragon/mesa-backend/internal/reservation"
	"github.com/angelmondragon/mesa-backend/pkg/config"
	"github.com/angelmondragon/mesa-backend/pkg/db/models"
	"github.com/angelmondragon/mesa-backend/pkg/db/types"
	"github.com/angelmondragon/mesa-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mesa-backend/pkg/errors"
)

func setupKitchenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{`
CREATE TABLE IF NOT EXISTS tables (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  zone TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'free',
  current_order_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  table_id TEXT NOT NULL,
  zone TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  note TEXT,
  kitchen_note TEXT,
  subtotal_cents INTEGER NOT NULL DEFAULT 0,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL DEFAULT 0,
  created_by TEXT NOT NULL,
  chef_name TEXT,
  served_by TEXT,
  paid_by TEXT,
  created_at DATETIME,
  started_at DATETIME,
  finished_at DATETIME,
  paid_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_lines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  menu_item_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty_requested INTEGER NOT NULL,
  qty_accepted INTEGER NOT NULL DEFAULT 0,
  qty_completed INTEGER NOT NULL DEFAULT 0,
  note TEXT,
  recipe TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS inventory_items (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  unit TEXT NOT NULL,
  quantity NUMERIC NOT NULL DEFAULT 0,
  avg_cost NUMERIC NOT NULL DEFAULT 0,
  min_threshold NUMERIC NOT NULL DEFAULT 0,
  deleted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS inventory_transactions (
  id TEXT PRIMARY KEY,
  inventory_item_id TEXT NOT NULL,
  type TEXT NOT NULL,
  delta NUMERIC NOT NULL,
  stock_after NUMERIC NOT NULL,
  unit_cost NUMERIC,
  reason TEXT,
  performed_by TEXT NOT NULL,
  order_id TEXT,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  created_by TEXT NOT NULL,
  target_actor TEXT,
  read_at DATETIME,
  created_at DATETIME
);`}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakePublisher struct {
	events []string
}

func (p *fakePublisher) Publish(_ context.Context, _ string, payload any) {
	if event, ok := payload.(KitchenEvent); ok {
		p.events = append(p.events, event.Type)
	}
}

type kitchenFixture struct {
	svc    Service
	db     *gorm.DB
	events *fakePublisher
}

func newKitchenFixture(t *testing.T) *kitchenFixture {
	t.Helper()
	db := setupKitchenTestDB(t)
	runner := gormTxRunner{db: db}

	stock, err := reservation.NewService(reservation.NewRepository(db))
	require.NoError(t, err)
	invSvc, err := inventory.NewService(inventory.NewRepository(db), runner)
	require.NoError(t, err)
	notifier, err := notifications.NewService(notifications.NewRepository(db))
	require.NoError(t, err)

	events := &fakePublisher{}
	svc, err := NewService(orders.NewRepository(db), runner, stock, invSvc, notifier, events, nil, config.RetryConfig{})
	require.NoError(t, err)
	return &kitchenFixture{svc: svc, db: db, events: events}
}

func (f *kitchenFixture) seedStock(t *testing.T, name, qty, threshold string) *models.InventoryItem {
	t.Helper()
	item := &models.InventoryItem{
		ID:           uuid.New(),
		Name:         name,
		Unit:         "kg",
		Quantity:     decimal.RequireFromString(qty),
		MinThreshold: decimal.RequireFromString(threshold),
	}
	require.NoError(t, f.db.Create(item).Error)
	return item
}

type seedLine struct {
	itemID     uuid.UUID
	qtyPerUnit string
	requested  int
	accepted   int
	completed  int
}

func (f *kitchenFixture) seedOrder(t *testing.T, status enums.OrderStatus, createdBy string, createdAt time.Time, lines ...seedLine) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:        uuid.New(),
		TableID:   uuid.New(),
		Zone:      "main",
		Status:    status,
		CreatedBy: createdBy,
		CreatedAt: createdAt,
	}
	require.NoError(t, f.db.Create(order).Error)

	for _, l := range lines {
		line := &models.OrderLine{
			ID:             uuid.New(),
			OrderID:        order.ID,
			MenuItemID:     uuid.New(),
			Name:           "dish",
			UnitPriceCents: 1000,
			QtyRequested:   l.requested,
			QtyAccepted:    l.accepted,
			QtyCompleted:   l.completed,
			Recipe: types.RecipeSnapshot{
				{InventoryItemID: l.itemID, QtyPerUnit: decimal.RequireFromString(l.qtyPerUnit)},
			},
			CreatedAt: createdAt,
		}
		require.NoError(t, f.db.Create(line).Error)
	}
	return order
}

func TestQueueBucketsAndOrder(t *testing.T) {
	f := newKitchenFixture(t)
	item := f.seedStock(t, "flour", "100", "1")

	now := time.Now().UTC()
	older := f.seedOrder(t, enums.OrderStatusPending, "ana", now.Add(-10*time.Minute), seedLine{itemID: item.ID, qtyPerUnit: "1", requested: 1})
	newer := f.seedOrder(t, enums.OrderStatusPending, "ana", now.Add(-5*time.Minute), seedLine{itemID: item.ID, qtyPerUnit: "1", requested: 1})
	cooking := f.seedOrder(t, enums.OrderStatusCooking, "ana", now.Add(-8*time.Minute), seedLine{itemID: item.ID, qtyPerUnit: "1", requested: 2, accepted: 2})
	issue := f.seedOrder(t, enums.OrderStatusIssue, "ana", now.Add(-2*time.Minute), seedLine{itemID: item.ID, qtyPerUnit: "1", requested: 5})

	queue, err := f.svc.Queue(context.Background())
	require.NoError(t, err)

	require.Len(t, queue.Incoming, 2)
	assert.Equal(t, older.ID, queue.Incoming[0].Order.ID)
	assert.Equal(t, newer.ID, queue.Incoming[1].Order.ID)
	require.Len(t, queue.InProgress, 1)
	assert.Equal(t, cooking.ID, queue.InProgress[0].Order.ID)
	require.Len(t, queue.Issues, 1)
	assert.Equal(t, issue.ID, queue.Issues[0].Order.ID)
}

func TestQueueExcludesOrdersWithoutOutstandingWork(t *testing.T) {
	f := newKitchenFixture(t)
	item := f.seedStock(t, "flour", "100", "1")
	f.seedOrder(t, enums.OrderStatusCooking, "ana", time.Now().UTC(),
		seedLine{itemID: item.ID, qtyPerUnit: "1", requested: 2, accepted: 2, completed: 2},
	)

	queue, err := f.svc.Queue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, queue.InProgress)
}

// An order that picked up new items while cooking shows both halves of its
// work in the incoming bucket.
func TestQueueSplitsNewAndActiveWork(t *testing.T) {
	f := newKitchenFixture(t)
	item := f.seedStock(t, "flour", "100", "1")

	order := f.seedOrder(t, enums.OrderStatusPending, "ana", time.Now().UTC(),
		seedLine{itemID: item.ID, qtyPerUnit: "1", requested: 3, accepted: 2},
	)

	queue, err := f.svc.Queue(context.Background())
	require.NoError(t, err)
	require.Len(t, queue.Incoming, 1)
	entry := queue.Incoming[0]
	assert.Equal(t, order.ID, entry.Order.ID)
	require.Len(t, entry.NewWork, 1)
	assert.Equal(t, 1, entry.NewWork[0].Qty)
	require.Len(t, entry.ActiveWork, 1)
	assert.Equal(t, 2, entry.ActiveWork[0].Qty)
}

func TestAcceptMovesOrderToCooking(t *testing.T) {
	f := newKitchenFixture(t)
	item := f.seedStock(t, "flour", "10", "1")
	order := f.seedOrder(t, enums.OrderStatusPending, "ana", time.Now().UTC(),
		seedLine{itemID: item.ID, qtyPerUnit: "0.5", requested: 4},
	)

	accepted, err := f.svc.Accept(context.Background(), AcceptInput{OrderID: order.ID, ChefName: "marco"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCooking, accepted.Status)
	require.NotNil(t, accepted.ChefName)
	assert.Equal(t, "marco", *accepted.ChefName)
	require.NotNil(t, accepted.StartedAt)
	require.Len(t, accepted.Lines, 1)
	assert.Equal(t, 4, accepted.Lines[0].QtyAccepted)
	assert.Contains(t, f.events.events, "kitchen.accepted")
}

// The accept check must not count the order's own claim against itself:
// stock that exactly covers the order is enough.
func TestAcceptExcludesOwnClaim(t *testing.T) {
	f := newKitchenFixture(t)
	item := f.seedStock(t, "flour", "3", "1")
	order := f.seedOrder(t, enums.OrderStatusPending, "ana", time.Now().UTC(),
		seedLine{itemID: item.ID, qtyPerUnit: "1", requested: 3},
	)

	accepted, err := f.svc.Accept(context.Background(), AcceptInput{OrderID: order.ID, ChefName: "marco"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCooking, accepted.Status)
}

func TestAcceptShortageParksOrderAsIssue(t *testing.T) {
	f := newKitchenFixture(t)
	item := f.seedStock(t, "flour", "3", "1")
	// a competing pending order claims most of the stock
	f.seedOrder(t, enums.OrderStatusPending, "luis", time.Now().UTC().Add(-time.Minute),
		seedLine{itemID: item.ID, qtyPerUnit: "1", requested: 2},
	)
	order := f.seedOrder(t, enums.OrderStatusPending, "ana", time.Now().UTC(),
		seedLine{itemID: item.ID, qtyPerUnit: "1", requested: 2},
	)

	parked, err := f.svc.Accept(context.Background(), AcceptInput{OrderID: order.ID, ChefName: "marco"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusIssue, parked.Status)
	require.NotNil(t, parked.KitchenNote)
	assert.NotEmpty(t, *parked.KitchenNote)

	var notes []models.Notification
	require.NoError(t, f.db.Where("kind = ?", enums.NotificationKindKitchenIssue).Find(&notes).Error)
	require.Len(t, notes, 1)
	require.NotNil(t, notes[0].TargetActor)
	assert.Equal(t, "ana", *notes[0].TargetActor)
	assert.Contains(t, f.events.events, "kitchen.issue")

	// stock was never touched
	var reloaded models.InventoryItem
	require.NoError(t, f.db.First(&reloaded, "id = ?", item.ID).Error)
	assert.True(t, reloaded.Quantity.Equal(decimal.RequireFromString("3")))
}

func TestAcceptRequiresPending(t *testing.T) {
	f := newKitchenFixture(t)
	item := f.seedStock(t, "flour", "10", "1")
	order := f.seedOrder(t, enums.OrderStatusOpen, "ana", time.Now().UTC(),
		seedLine{itemID: item.ID, qtyPerUnit: "1", requested: 1},
	)

	_, err := f.svc.Accept(context.Background(), AcceptInput{OrderID: order.ID, ChefName: "marco"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestCompleteSettlesOrder(t *testing.T) {
	f := newKitchenFixture(t)
	flour := f.seedStock(t, "flour", "10", "1")
	cheese := f.seedStock(t, "cheese", "2", "1.5")
	order := f.seedOrder(t, enums.OrderStatusCooking, "ana", time.Now().UTC(),
		seedLine{itemID: flour.ID, qtyPerUnit: "1", requested: 2, accepted: 2},
		seedLine{itemID: cheese.ID, qtyPerUnit: "0.25", requested: 2, accepted: 2},
	)

	served, err := f.svc.Complete(context.Background(), CompleteInput{OrderID: order.ID, ChefName: "marco"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusServed, served.Status)
	require.NotNil(t, served.ServedBy)
	assert.Equal(t, "marco", *served.ServedBy)
	require.NotNil(t, served.FinishedAt)
	for _, line := range served.Lines {
		assert.Equal(t, line.QtyAccepted, line.QtyCompleted)
	}

	var reloadedFlour, reloadedCheese models.InventoryItem
	require.NoError(t, f.db.First(&reloadedFlour, "id = ?", flour.ID).Error)
	require.NoError(t, f.db.First(&reloadedCheese, "id = ?", cheese.ID).Error)
	assert.True(t, reloadedFlour.Quantity.Equal(decimal.RequireFromString("8")))
	assert.True(t, reloadedCheese.Quantity.Equal(decimal.RequireFromString("1.5")))

	var txns []models.InventoryTransaction
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&txns).Error)
	assert.Len(t, txns, 2)

	var ready []models.Notification
	require.NoError(t, f.db.Where("kind = ?", enums.NotificationKindOrderReady).Find(&ready).Error)
	require.Len(t, ready, 1)
	require.NotNil(t, ready[0].TargetActor)
	assert.Equal(t, "ana", *ready[0].TargetActor)

	// cheese crossed its threshold during settlement
	var low []models.Notification
	require.NoError(t, f.db.Where("kind = ?", enums.NotificationKindLowStock).Find(&low).Error)
	require.Len(t, low, 1)
	assert.Contains(t, low[0].Title, "cheese")

	assert.Contains(t, f.events.events, "kitchen.served")
}

// One settlement flagging several ingredients produces a single low stock
// notification naming all of them.
func TestCompleteBundlesLowStockAlerts(t *testing.T) {
	f := newKitchenFixture(t)
	flour := f.seedStock(t, "flour", "10", "9")
	cheese := f.seedStock(t, "cheese", "2", "1.5")
	order := f.seedOrder(t, enums.OrderStatusCooking, "ana", time.Now().UTC(),
		seedLine{itemID: flour.ID, qtyPerUnit: "1", requested: 2, accepted: 2},
		seedLine{itemID: cheese.ID, qtyPerUnit: "0.25", requested: 2, accepted: 2},
	)

	_, err := f.svc.Complete(context.Background(), CompleteInput{OrderID: order.ID, ChefName: "marco"})
	require.NoError(t, err)

	var low []models.Notification
	require.NoError(t, f.db.Where("kind = ?", enums.NotificationKindLowStock).Find(&low).Error)
	require.Len(t, low, 1)
	assert.Contains(t, low[0].Title, "flour")
	assert.Contains(t, low[0].Title, "cheese")
	assert.Contains(t, low[0].Message, "flour at 8 kg")
	assert.Contains(t, low[0].Message, "cheese at 1.5 kg")
}

// Settling the same order twice must not deduct twice.
func TestCompleteIsIdempotent(t *testing.T) {
	f := newKitchenFixture(t)
	flour := f.seedStock(t, "flour", "10", "1")
	order := f.seedOrder(t, enums.OrderStatusCooking, "ana", time.Now().UTC(),
		seedLine{itemID: flour.ID, qtyPerUnit: "1", requested: 2, accepted: 2},
	)

	_, err := f.svc.Complete(context.Background(), CompleteInput{OrderID: order.ID, ChefName: "marco"})
	require.NoError(t, err)
	again, err := f.svc.Complete(context.Background(), CompleteInput{OrderID: order.ID, ChefName: "marco"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusServed, again.Status)

	var reloaded models.InventoryItem
	require.NoError(t, f.db.First(&reloaded, "id = ?", flour.ID).Error)
	assert.True(t, reloaded.Quantity.Equal(decimal.RequireFromString("8")))

	var txns []models.InventoryTransaction
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&txns).Error)
	assert.Len(t, txns, 1)

	var ready []models.Notification
	require.NoError(t, f.db.Where("kind = ?", enums.NotificationKindOrderReady).Find(&ready).Error)
	assert.Len(t, ready, 1)
}

func TestCompleteRequiresCooking(t *testing.T) {
	f := newKitchenFixture(t)
	flour := f.seedStock(t, "flour", "10", "1")
	order := f.seedOrder(t, enums.OrderStatusPending, "ana", time.Now().UTC(),
		seedLine{itemID: flour.ID, qtyPerUnit: "1", requested: 2},
	)

	_, err := f.svc.Complete(context.Background(), CompleteInput{OrderID: order.ID, ChefName: "marco"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}
