package menu

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/mesa-backend/internal/inventory"
	"github.com/angelmondragon/mesa-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mesa-backend/pkg/errors"
)

func setupMenuTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	menuItems := `
CREATE TABLE IF NOT EXISTS menu_items (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))||'-'||hex(randomblob(2))||'-4'||substr(hex(randomblob(2)),2)||'-'||substr('89ab',abs(random())%4+1,1)||substr(hex(randomblob(2)),2)||'-'||hex(randomblob(6)))),
  name TEXT NOT NULL,
  category TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	recipes := `
CREATE TABLE IF NOT EXISTS recipe_ingredients (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))||'-'||hex(randomblob(2))||'-4'||substr(hex(randomblob(2)),2)||'-'||substr('89ab',abs(random())%4+1,1)||substr(hex(randomblob(2)),2)||'-'||hex(randomblob(6)))),
  menu_item_id TEXT NOT NULL,
  inventory_item_id TEXT NOT NULL,
  qty_per_unit NUMERIC NOT NULL,
  position INTEGER NOT NULL DEFAULT 0
);`
	items := `
CREATE TABLE IF NOT EXISTS inventory_items (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))||'-'||hex(randomblob(2))||'-4'||substr(hex(randomblob(2)),2)||'-'||substr('89ab',abs(random())%4+1,1)||substr(hex(randomblob(2)),2)||'-'||hex(randomblob(6)))),
  name TEXT NOT NULL,
  unit TEXT NOT NULL,
  quantity NUMERIC NOT NULL DEFAULT 0,
  avg_cost NUMERIC NOT NULL DEFAULT 0,
  min_threshold NUMERIC NOT NULL DEFAULT 0,
  deleted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(menuItems).Error)
	require.NoError(t, db.Exec(recipes).Error)
	require.NoError(t, db.Exec(items).Error)
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newMenuService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), inventory.NewRepository(db), gormTxRunner{db: db})
	require.NoError(t, err)
	return svc
}

func seedIngredient(t *testing.T, db *gorm.DB, name string) *models.InventoryItem {
	t.Helper()
	item := &models.InventoryItem{
		ID:       uuid.New(),
		Name:     name,
		Unit:     "kg",
		Quantity: decimal.RequireFromString("10"),
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func TestSetRecipeReplacesRows(t *testing.T) {
	db := setupMenuTestDB(t)
	svc := newMenuService(t, db)

	dish, err := svc.CreateItem(context.Background(), CreateMenuItemInput{
		Name:           "Margherita",
		Category:       "pizza",
		UnitPriceCents: 1250,
	})
	require.NoError(t, err)

	flour := seedIngredient(t, db, "flour")
	cheese := seedIngredient(t, db, "cheese")

	updated, err := svc.SetRecipe(context.Background(), SetRecipeInput{
		MenuItemID: dish.ID,
		Rows: []RecipeRowInput{
			{InventoryItemID: flour.ID, QtyPerUnit: decimal.RequireFromString("0.3")},
			{InventoryItemID: cheese.ID, QtyPerUnit: decimal.RequireFromString("0.15")},
		},
	})
	require.NoError(t, err)
	require.Len(t, updated.Recipe, 2)
	assert.Equal(t, flour.ID, updated.Recipe[0].InventoryItemID)
	assert.Equal(t, cheese.ID, updated.Recipe[1].InventoryItemID)

	// replacing keeps only the new rows
	updated, err = svc.SetRecipe(context.Background(), SetRecipeInput{
		MenuItemID: dish.ID,
		Rows: []RecipeRowInput{
			{InventoryItemID: cheese.ID, QtyPerUnit: decimal.RequireFromString("0.2")},
		},
	})
	require.NoError(t, err)
	require.Len(t, updated.Recipe, 1)
	assert.Equal(t, cheese.ID, updated.Recipe[0].InventoryItemID)
}

func TestSetRecipeRejectsUnknownIngredient(t *testing.T) {
	db := setupMenuTestDB(t)
	svc := newMenuService(t, db)

	dish, err := svc.CreateItem(context.Background(), CreateMenuItemInput{
		Name:           "Carbonara",
		Category:       "pasta",
		UnitPriceCents: 1400,
	})
	require.NoError(t, err)

	_, err = svc.SetRecipe(context.Background(), SetRecipeInput{
		MenuItemID: dish.ID,
		Rows: []RecipeRowInput{
			{InventoryItemID: uuid.New(), QtyPerUnit: decimal.RequireFromString("0.1")},
		},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestSetRecipeRejectsDuplicateIngredient(t *testing.T) {
	db := setupMenuTestDB(t)
	svc := newMenuService(t, db)

	dish, err := svc.CreateItem(context.Background(), CreateMenuItemInput{
		Name:           "Focaccia",
		Category:       "bread",
		UnitPriceCents: 600,
	})
	require.NoError(t, err)
	flour := seedIngredient(t, db, "flour")

	_, err = svc.SetRecipe(context.Background(), SetRecipeInput{
		MenuItemID: dish.ID,
		Rows: []RecipeRowInput{
			{InventoryItemID: flour.ID, QtyPerUnit: decimal.RequireFromString("0.3")},
			{InventoryItemID: flour.ID, QtyPerUnit: decimal.RequireFromString("0.2")},
		},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestResolveSnapshotsRecipe(t *testing.T) {
	db := setupMenuTestDB(t)
	svc := newMenuService(t, db)

	dish, err := svc.CreateItem(context.Background(), CreateMenuItemInput{
		Name:           "Tiramisu",
		Category:       "dessert",
		UnitPriceCents: 700,
	})
	require.NoError(t, err)
	mascarpone := seedIngredient(t, db, "mascarpone")

	_, err = svc.SetRecipe(context.Background(), SetRecipeInput{
		MenuItemID: dish.ID,
		Rows: []RecipeRowInput{
			{InventoryItemID: mascarpone.ID, QtyPerUnit: decimal.RequireFromString("0.25")},
		},
	})
	require.NoError(t, err)

	item, snapshot, err := svc.Resolve(context.Background(), dish.ID)
	require.NoError(t, err)
	assert.Equal(t, dish.ID, item.ID)
	require.Len(t, snapshot, 1)
	assert.Equal(t, mascarpone.ID, snapshot[0].InventoryItemID)
	assert.True(t, snapshot[0].QtyPerUnit.Equal(decimal.RequireFromString("0.25")))
}

func TestResolveRefusesInactiveItem(t *testing.T) {
	db := setupMenuTestDB(t)
	svc := newMenuService(t, db)

	dish, err := svc.CreateItem(context.Background(), CreateMenuItemInput{
		Name:           "Seasonal Soup",
		Category:       "starter",
		UnitPriceCents: 500,
	})
	require.NoError(t, err)

	inactive := false
	_, err = svc.UpdateItem(context.Background(), UpdateMenuItemInput{
		MenuItemID: dish.ID,
		Active:     &inactive,
	})
	require.NoError(t, err)

	_, _, err = svc.Resolve(context.Background(), dish.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestListActiveOnly(t *testing.T) {
	db := setupMenuTestDB(t)
	svc := newMenuService(t, db)

	_, err := svc.CreateItem(context.Background(), CreateMenuItemInput{Name: "A", Category: "x", UnitPriceCents: 100})
	require.NoError(t, err)
	hidden, err := svc.CreateItem(context.Background(), CreateMenuItemInput{Name: "B", Category: "x", UnitPriceCents: 100})
	require.NoError(t, err)

	inactive := false
	_, err = svc.UpdateItem(context.Background(), UpdateMenuItemInput{MenuItemID: hidden.ID, Active: &inactive})
	require.NoError(t, err)

	all, err := svc.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "A", active[0].Name)
}
