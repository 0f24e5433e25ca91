package menu

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/mesa-backend/pkg/db/models"
	"github.com/angelmondragon/mesa-backend/pkg/db/types"
	pkgerrors "github.com/angelmondragon/mesa-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// IngredientCatalog resolves inventory items referenced by recipe rows.
type IngredientCatalog interface {
	FindItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.InventoryItem, error)
}

// Service defines menu and recipe management operations.
type Service interface {
	CreateItem(ctx context.Context, input CreateMenuItemInput) (*models.MenuItem, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
	List(ctx context.Context, activeOnly bool) ([]models.MenuItem, error)
	UpdateItem(ctx context.Context, input UpdateMenuItemInput) (*models.MenuItem, error)
	SetRecipe(ctx context.Context, input SetRecipeInput) (*models.MenuItem, error)
	Resolve(ctx context.Context, menuItemID uuid.UUID) (*models.MenuItem, types.RecipeSnapshot, error)
}

type service struct {
	repo        Repository
	ingredients IngredientCatalog
	tx          txRunner
}

// CreateMenuItemInput describes a new dish.
type CreateMenuItemInput struct {
	Name           string
	Category       string
	UnitPriceCents int
}

// UpdateMenuItemInput carries the mutable fields of a dish.
type UpdateMenuItemInput struct {
	MenuItemID     uuid.UUID
	Name           *string
	Category       *string
	UnitPriceCents *int
	Active         *bool
}

// RecipeRowInput is one ingredient requirement per unit of the dish.
type RecipeRowInput struct {
	InventoryItemID uuid.UUID
	QtyPerUnit      decimal.Decimal
}

// SetRecipeInput replaces a dish's recipe wholesale.
type SetRecipeInput struct {
	MenuItemID uuid.UUID
	Rows       []RecipeRowInput
}

// NewService wires a menu service with the required dependencies.
func NewService(repo Repository, ingredients IngredientCatalog, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("menu repository required")
	}
	if ingredients == nil {
		return nil, fmt.Errorf("ingredient catalog required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, ingredients: ingredients, tx: tx}, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateMenuItemInput) (*models.MenuItem, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item name required")
	}
	if strings.TrimSpace(input.Category) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item category required")
	}
	if input.UnitPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}

	item := &models.MenuItem{
		Name:           name,
		Category:       strings.TrimSpace(input.Category),
		UnitPriceCents: input.UnitPriceCents,
		Active:         true,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create menu item")
	}
	return item, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item id required")
	}
	item, err := s.repo.FindWithRecipe(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu item")
	}
	return item, nil
}

func (s *service) List(ctx context.Context, activeOnly bool) ([]models.MenuItem, error) {
	items, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list menu items")
	}
	return items, nil
}

func (s *service) UpdateItem(ctx context.Context, input UpdateMenuItemInput) (*models.MenuItem, error) {
	if input.MenuItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item id required")
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item name cannot be blank")
		}
		updates["name"] = name
	}
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item category cannot be blank")
		}
		updates["category"] = category
	}
	if input.UnitPriceCents != nil {
		if *input.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
		}
		updates["unit_price_cents"] = *input.UnitPriceCents
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}
	if len(updates) == 0 {
		return s.GetItem(ctx, input.MenuItemID)
	}

	if _, err := s.repo.Find(ctx, input.MenuItemID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu item")
	}
	if err := s.repo.Update(ctx, input.MenuItemID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update menu item")
	}
	return s.GetItem(ctx, input.MenuItemID)
}

// SetRecipe replaces the dish's recipe in one transaction. Every referenced
// ingredient must exist; a dangling reference would poison later stock checks.
func (s *service) SetRecipe(ctx context.Context, input SetRecipeInput) (*models.MenuItem, error) {
	if input.MenuItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item id required")
	}

	seen := map[uuid.UUID]bool{}
	ids := make([]uuid.UUID, 0, len(input.Rows))
	for _, row := range input.Rows {
		if row.InventoryItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipe row missing inventory item id")
		}
		if !row.QtyPerUnit.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipe quantity must be positive")
		}
		if seen[row.InventoryItemID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate ingredient in recipe")
		}
		seen[row.InventoryItemID] = true
		ids = append(ids, row.InventoryItemID)
	}

	found, err := s.ingredients.FindItemsByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipe ingredients")
	}
	if len(found) != len(ids) {
		present := map[uuid.UUID]bool{}
		for _, item := range found {
			present[item.ID] = true
		}
		missing := []uuid.UUID{}
		for _, id := range ids {
			if !present[id] {
				missing = append(missing, id)
			}
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "recipe references unknown ingredients").
			WithDetails(map[string]any{"missing": missing})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Find(ctx, input.MenuItemID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu item")
		}

		rows := make([]models.RecipeIngredient, 0, len(input.Rows))
		for i, row := range input.Rows {
			rows = append(rows, models.RecipeIngredient{
				MenuItemID:      input.MenuItemID,
				InventoryItemID: row.InventoryItemID,
				QtyPerUnit:      row.QtyPerUnit,
				Position:        i,
			})
		}
		if err := repo.ReplaceRecipe(ctx, input.MenuItemID, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace recipe")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetItem(ctx, input.MenuItemID)
}

// Resolve loads a dish and freezes its current recipe into a snapshot. Order
// lines store the snapshot so later recipe edits never change what an
// already-placed order will consume.
func (s *service) Resolve(ctx context.Context, menuItemID uuid.UUID) (*models.MenuItem, types.RecipeSnapshot, error) {
	item, err := s.GetItem(ctx, menuItemID)
	if err != nil {
		return nil, nil, err
	}
	if !item.Active {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "menu item is not active")
	}

	snapshot := make(types.RecipeSnapshot, 0, len(item.Recipe))
	for _, row := range item.Recipe {
		snapshot = append(snapshot, types.RecipeComponent{
			InventoryItemID: row.InventoryItemID,
			QtyPerUnit:      row.QtyPerUnit,
		})
	}
	return item, snapshot, nil
}
