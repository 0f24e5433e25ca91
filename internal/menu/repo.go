package menu

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mesa-backend/pkg/db/models"
)

// Repository manages persistence for menu items and their recipes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.MenuItem) error
	Find(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
	FindWithRecipe(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
	List(ctx context.Context, activeOnly bool) ([]models.MenuItem, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ReplaceRecipe(ctx context.Context, itemID uuid.UUID, rows []models.RecipeIngredient) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a menu repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.MenuItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindWithRecipe(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := r.db.WithContext(ctx).
		Preload("Recipe", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]models.MenuItem, error) {
	q := r.db.WithContext(ctx).
		Preload("Recipe", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("category ASC, name ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var items []models.MenuItem
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.MenuItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ReplaceRecipe(ctx context.Context, itemID uuid.UUID, rows []models.RecipeIngredient) error {
	if err := r.db.WithContext(ctx).
		Delete(&models.RecipeIngredient{}, "menu_item_id = ?", itemID).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}
