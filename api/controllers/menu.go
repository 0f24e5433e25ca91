package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/mesa-backend/api/responses"
	"github.com/angelmondragon/mesa-backend/api/validators"
	"github.com/angelmondragon/mesa-backend/internal/menu"
	"github.com/angelmondragon/mesa-backend/pkg/logger"
)

type createMenuItemRequest struct {
	Name           string `json:"name" validate:"required"`
	Category       string `json:"category" validate:"required"`
	UnitPriceCents int    `json:"unit_price_cents" validate:"required,gt=0"`
}

type updateMenuItemRequest struct {
	Name           *string `json:"name,omitempty"`
	Category       *string `json:"category,omitempty"`
	UnitPriceCents *int    `json:"unit_price_cents,omitempty"`
	Active         *bool   `json:"active,omitempty"`
}

type recipeRowRequest struct {
	InventoryItemID uuid.UUID `json:"inventory_item_id" validate:"required"`
	QtyPerUnit      string    `json:"qty_per_unit" validate:"required"`
}

type setRecipeRequest struct {
	Rows []recipeRowRequest `json:"rows" validate:"required,min=1,dive"`
}

func ListMenu(svc menu.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly, err := validators.ParseQueryBool(r, "activeOnly", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.List(r.Context(), activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func CreateMenuItem(svc menu.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createMenuItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.CreateItem(r.Context(), menu.CreateMenuItemInput{
			Name:           req.Name,
			Category:       req.Category,
			UnitPriceCents: req.UnitPriceCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

func GetMenuItem(svc menu.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParsePathUUID(chi.URLParam(r, "itemId"), "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.GetItem(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func UpdateMenuItem(svc menu.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParsePathUUID(chi.URLParam(r, "itemId"), "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateMenuItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.UpdateItem(r.Context(), menu.UpdateMenuItemInput{
			MenuItemID:     itemID,
			Name:           req.Name,
			Category:       req.Category,
			UnitPriceCents: req.UnitPriceCents,
			Active:         req.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// SetRecipe replaces the dish's ingredient list wholesale. Orders already
// placed keep the snapshot they were created with.
func SetRecipe(svc menu.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParsePathUUID(chi.URLParam(r, "itemId"), "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req setRecipeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows := make([]menu.RecipeRowInput, 0, len(req.Rows))
		for _, row := range req.Rows {
			qty, err := parseQty(row.QtyPerUnit, "qty_per_unit")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			rows = append(rows, menu.RecipeRowInput{
				InventoryItemID: row.InventoryItemID,
				QtyPerUnit:      qty,
			})
		}

		item, err := svc.SetRecipe(r.Context(), menu.SetRecipeInput{MenuItemID: itemID, Rows: rows})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}
