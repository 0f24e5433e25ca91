package reservation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/mesa-backend/pkg/db/models"
	"github.com/angelmondragon/mesa-backend/pkg/db/types"
	"github.com/angelmondragon/mesa-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mesa-backend/pkg/errors"
)

func setupReservationTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	items := `
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
);`
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  table_id TEXT NOT NULL,
  zone TEXT NOT NULL,
  status TEXT NOT NULL,
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
);`
	lines := `
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
);`
	require.NoError(t, db.Exec(items).Error)
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(lines).Error)
	return db
}

func newCalculator(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func seedStock(t *testing.T, db *gorm.DB, name, qty string) *models.InventoryItem {
	t.Helper()
	item := &models.InventoryItem{
		ID:       uuid.New(),
		Name:     name,
		Unit:     "kg",
		Quantity: decimal.RequireFromString(qty),
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func seedClaimingOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, itemID uuid.UUID, qtyPerUnit string, qtyRequested int) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:        uuid.New(),
		TableID:   uuid.New(),
		Zone:      "main",
		Status:    status,
		CreatedBy: "ana",
	}
	require.NoError(t, db.Create(order).Error)

	line := &models.OrderLine{
		ID:             uuid.New(),
		OrderID:        order.ID,
		MenuItemID:     uuid.New(),
		Name:           "dish",
		UnitPriceCents: 1000,
		QtyRequested:   qtyRequested,
		Recipe: types.RecipeSnapshot{
			{InventoryItemID: itemID, QtyPerUnit: decimal.RequireFromString(qtyPerUnit)},
		},
	}
	require.NoError(t, db.Create(line).Error)
	return order
}

func TestCheckPassesOnExactBoundary(t *testing.T) {
	db := setupReservationTestDB(t)
	calc := newCalculator(t, db)
	item := seedStock(t, db, "flour", "5")

	seedClaimingOrder(t, db, enums.OrderStatusPending, item.ID, "1", 3)

	require.NoError(t, calc.Check(context.Background(), nil, Requirement{
		item.ID: {Qty: decimal.RequireFromString("2")},
	}, nil))
}

func TestCheckFailsOneUnitPastBoundary(t *testing.T) {
	db := setupReservationTestDB(t)
	calc := newCalculator(t, db)
	item := seedStock(t, db, "flour", "5")

	seedClaimingOrder(t, db, enums.OrderStatusPending, item.ID, "1", 3)

	err := calc.Check(context.Background(), nil, Requirement{
		item.ID: {Qty: decimal.RequireFromString("2.001")},
	}, nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStockShortage, pkgerrors.As(err).Code())
}

func TestReservedIgnoresNonClaimingStatuses(t *testing.T) {
	db := setupReservationTestDB(t)
	calc := newCalculator(t, db)
	item := seedStock(t, db, "cheese", "100")

	seedClaimingOrder(t, db, enums.OrderStatusOpen, item.ID, "1", 1)
	seedClaimingOrder(t, db, enums.OrderStatusPending, item.ID, "1", 2)
	seedClaimingOrder(t, db, enums.OrderStatusCooking, item.ID, "1", 4)
	seedClaimingOrder(t, db, enums.OrderStatusIssue, item.ID, "1", 8)
	seedClaimingOrder(t, db, enums.OrderStatusServed, item.ID, "1", 16)
	seedClaimingOrder(t, db, enums.OrderStatusPaid, item.ID, "1", 32)

	reserved, err := calc.Reserved(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, reserved[item.ID].Qty.Equal(decimal.RequireFromString("7")), "reserved = %s", reserved[item.ID].Qty)
}

// An order under kitchen review must not block itself: its own claim is
// excluded and its full requirement checked against what remains.
func TestCheckExcludesOwnOrder(t *testing.T) {
	db := setupReservationTestDB(t)
	calc := newCalculator(t, db)
	item := seedStock(t, db, "dough", "4")

	mine := seedClaimingOrder(t, db, enums.OrderStatusPending, item.ID, "1", 3)

	// counting our own claim leaves only 1 available and the check fails
	err := calc.Check(context.Background(), nil, Requirement{
		item.ID: {Qty: decimal.RequireFromString("3")},
	}, nil)
	require.Error(t, err)

	// excluding ourselves makes the same requirement pass
	require.NoError(t, calc.Check(context.Background(), nil, Requirement{
		item.ID: {Qty: decimal.RequireFromString("3")},
	}, &mine.ID))
}

func TestCheckReportsEveryShortItem(t *testing.T) {
	db := setupReservationTestDB(t)
	calc := newCalculator(t, db)
	flour := seedStock(t, db, "flour", "1")
	cheese := seedStock(t, db, "cheese", "0.5")
	oil := seedStock(t, db, "oil", "9")

	// pizza needs flour+cheese, salad needs cheese+oil; only oil is covered
	needed := Requirement{}
	needed.AddSnapshot("pizza", types.RecipeSnapshot{
		{InventoryItemID: flour.ID, QtyPerUnit: decimal.RequireFromString("2")},
		{InventoryItemID: cheese.ID, QtyPerUnit: decimal.RequireFromString("0.5")},
	}, 1)
	needed.AddSnapshot("salad", types.RecipeSnapshot{
		{InventoryItemID: cheese.ID, QtyPerUnit: decimal.RequireFromString("0.5")},
		{InventoryItemID: oil.ID, QtyPerUnit: decimal.RequireFromString("1")},
	}, 1)

	err := calc.Check(context.Background(), nil, needed, nil)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStockShortage, typed.Code())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	shortages, ok := details["shortages"].([]Shortage)
	require.True(t, ok)
	require.Len(t, shortages, 2)

	byName := map[string]Shortage{}
	for _, s := range shortages {
		byName[s.Name] = s
	}

	short, ok := byName["flour"]
	require.True(t, ok)
	assert.True(t, short.Required.Equal(decimal.RequireFromString("2")))
	assert.True(t, short.Stock.Equal(decimal.RequireFromString("1")))
	assert.True(t, short.Available.Equal(decimal.RequireFromString("1")))
	assert.Equal(t, []string{"pizza"}, short.Dishes)

	short, ok = byName["cheese"]
	require.True(t, ok)
	assert.True(t, short.Required.Equal(decimal.RequireFromString("1")))
	assert.True(t, short.Stock.Equal(decimal.RequireFromString("0.5")))
	assert.ElementsMatch(t, []string{"pizza", "salad"}, short.Dishes)
}

func TestCheckUnknownIngredientIsNotFound(t *testing.T) {
	db := setupReservationTestDB(t)
	calc := newCalculator(t, db)

	err := calc.Check(context.Background(), nil, Requirement{
		uuid.New(): {Qty: decimal.RequireFromString("1")},
	}, nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestAvailabilityDerivesFromClaims(t *testing.T) {
	db := setupReservationTestDB(t)
	calc := newCalculator(t, db)
	item := seedStock(t, db, "basil", "10")

	seedClaimingOrder(t, db, enums.OrderStatusCooking, item.ID, "0.5", 4)

	out, err := calc.Availability(context.Background(), nil, []uuid.UUID{item.ID})
	require.NoError(t, err)
	pos, ok := out[item.ID]
	require.True(t, ok)
	assert.True(t, pos.Reserved.Equal(decimal.RequireFromString("2")))
	assert.True(t, pos.Available.Equal(decimal.RequireFromString("8")))
}

func TestRequirementAddSnapshotScales(t *testing.T) {
	itemA := uuid.New()
	itemB := uuid.New()
	snapshot := types.RecipeSnapshot{
		{InventoryItemID: itemA, QtyPerUnit: decimal.RequireFromString("0.3")},
		{InventoryItemID: itemB, QtyPerUnit: decimal.RequireFromString("0.1")},
	}

	needed := Requirement{}
	needed.AddSnapshot("margherita", snapshot, 3)
	needed.AddSnapshot("margherita", snapshot, 2)
	needed.AddSnapshot("margherita", snapshot, 0)

	assert.True(t, needed[itemA].Qty.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, needed[itemB].Qty.Equal(decimal.RequireFromString("0.5")))
	// the same dish claiming twice is attributed once
	assert.Equal(t, []string{"margherita"}, needed[itemA].Dishes)
}
