package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/mesa-backend/api/controllers"
	"github.com/angelmondragon/mesa-backend/api/middleware"
	"github.com/angelmondragon/mesa-backend/internal/events"
	"github.com/angelmondragon/mesa-backend/internal/inventory"
	"github.com/angelmondragon/mesa-backend/internal/kitchen"
	"github.com/angelmondragon/mesa-backend/internal/menu"
	"github.com/angelmondragon/mesa-backend/internal/notifications"
	"github.com/angelmondragon/mesa-backend/internal/orders"
	"github.com/angelmondragon/mesa-backend/pkg/capability"
	"github.com/angelmondragon/mesa-backend/pkg/config"
	"github.com/angelmondragon/mesa-backend/pkg/db"
	"github.com/angelmondragon/mesa-backend/pkg/logger"
	"github.com/angelmondragon/mesa-backend/pkg/redis"
)

// Deps bundles everything the router needs; keeps the constructor signature
// flat as the service count grows.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Hub           *events.Hub
	Registry      *prometheus.Registry
	Inventory     inventory.Service
	Menu          menu.Service
	Orders        orders.Service
	Kitchen       kitchen.Service
	Notifications notifications.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, logg))
		}

		r.Get("/events/stream", controllers.EventStream(deps.Hub, logg))

		r.Route("/tables", func(r chi.Router) {
			r.Get("/", controllers.ListTables(deps.Orders, logg))
			r.With(middleware.RequireCapability(capability.ActionTableOpen, logg)).
				Post("/", controllers.CreateTable(deps.Orders, logg))
			r.With(middleware.RequireCapability(capability.ActionTableOpen, logg)).
				Post("/{tableId}/open", controllers.OpenTable(deps.Orders, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
			r.With(middleware.RequireCapability(capability.ActionOrderAddLine, logg)).
				Post("/{orderId}/lines", controllers.AddOrderLine(deps.Orders, logg))
			r.With(middleware.RequireCapability(capability.ActionOrderRemoveLine, logg)).
				Delete("/{orderId}/lines/{lineId}", controllers.RemoveOrderLine(deps.Orders, logg))
			r.With(middleware.RequireCapability(capability.ActionOrderSubmit, logg)).
				Post("/{orderId}/submit", controllers.SubmitOrder(deps.Orders, logg))
			r.With(middleware.RequireCapability(capability.ActionOrderPay, logg)).
				Post("/{orderId}/pay", controllers.PayOrder(deps.Orders, logg))
			r.With(middleware.RequireCapability(capability.ActionOrderReopen, logg)).
				Post("/{orderId}/reopen", controllers.ReopenOrder(deps.Orders, logg))
		})

		r.Route("/kitchen", func(r chi.Router) {
			r.With(middleware.RequireCapability(capability.ActionKitchenQueue, logg)).
				Get("/queue", controllers.KitchenQueue(deps.Kitchen, logg))
			r.With(middleware.RequireCapability(capability.ActionKitchenAccept, logg)).
				Post("/orders/{orderId}/accept", controllers.KitchenAccept(deps.Kitchen, logg))
			r.With(middleware.RequireCapability(capability.ActionKitchenComplete, logg)).
				Post("/orders/{orderId}/complete", controllers.KitchenComplete(deps.Kitchen, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", controllers.ListInventory(deps.Inventory, logg))
			r.Get("/low-stock", controllers.ListLowStock(deps.Inventory, logg))
			r.Get("/{itemId}", controllers.GetInventoryItem(deps.Inventory, logg))
			r.Get("/{itemId}/transactions", controllers.InventoryLedger(deps.Inventory, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(capability.ActionInventoryManage, logg))
				r.Post("/", controllers.CreateInventoryItem(deps.Inventory, logg))
				r.Patch("/{itemId}", controllers.UpdateInventoryItem(deps.Inventory, logg))
				r.Delete("/{itemId}", controllers.DeleteInventoryItem(deps.Inventory, logg))
				r.Post("/{itemId}/import", controllers.ImportStock(deps.Inventory, logg))
				r.Post("/{itemId}/audit", controllers.AuditStock(deps.Inventory, logg))
				r.Post("/{itemId}/damage", controllers.DamageStock(deps.Inventory, logg))
			})
		})

		r.Route("/menu", func(r chi.Router) {
			r.Get("/", controllers.ListMenu(deps.Menu, logg))
			r.Get("/{itemId}", controllers.GetMenuItem(deps.Menu, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(capability.ActionMenuManage, logg))
				r.Post("/", controllers.CreateMenuItem(deps.Menu, logg))
				r.Patch("/{itemId}", controllers.UpdateMenuItem(deps.Menu, logg))
				r.Put("/{itemId}/recipe", controllers.SetRecipe(deps.Menu, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	return r
}
