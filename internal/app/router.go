package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jointvibe/internal/handler"
	"jointvibe/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	FareHandler     *handler.FareHandler
	VenueHandler    *handler.VenueHandler
	OrderHandler    *handler.OrderHandler
	DriverHandler   *handler.DriverHandler
	DeliveryHandler *handler.DeliveryHandler
	WalletHandler   *handler.WalletHandler
	AdminHandler    *handler.AdminHandler
	RedisClient     *redis.Client // nil disables idempotency keys
	NewRelicApp     *newrelic.Application
	Logger          *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger.Named("http")))
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger.Named("idempotency")))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		v1.POST("/fares/estimate", deps.FareHandler.Estimate)

		// Venue routes.
		venues := v1.Group("/venues")
		{
			venues.POST("", deps.VenueHandler.Create)
			venues.GET("", deps.VenueHandler.GetAll)
			venues.GET("/:id", deps.VenueHandler.Get)
			venues.GET("/:id/menu", deps.VenueHandler.GetMenu)
			venues.PUT("/:id/menu/items", deps.VenueHandler.UpsertMenuItem)
			venues.POST("/:id/checkin", deps.VenueHandler.CheckIn)
			venues.GET("/:id/orders", deps.VenueHandler.ListOrders)
		}
		v1.GET("/users/:id/venue", deps.VenueHandler.CurrentVenue)
		v1.GET("/users/:id/orders", deps.OrderHandler.ListCustomerOrders)

		// Order routes.
		orders := v1.Group("/orders")
		{
			orders.POST("", deps.OrderHandler.PlaceOrder)
			orders.GET("/:id", deps.OrderHandler.GetOrder)
			orders.POST("/:id/status", deps.OrderHandler.UpdateStatus)
			orders.POST("/:id/cancel", deps.OrderHandler.CancelOrder)
			orders.GET("/:id/events", deps.OrderHandler.Events)
		}

		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("/register", deps.DriverHandler.Register)
			drivers.GET("", deps.DriverHandler.GetAll)
			drivers.GET("/:id", deps.DriverHandler.Get)
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.POST("/:id/offline", deps.DriverHandler.GoOffline)
			drivers.POST("/:id/deliveries/:delivery_id/accept", deps.DriverHandler.AcceptDelivery)
			drivers.POST("/:id/deliveries/:delivery_id/arrive", deps.DriverHandler.ArriveAtVenue)
			drivers.POST("/:id/deliveries/:delivery_id/pickup", deps.DriverHandler.PickUp)
			drivers.POST("/:id/deliveries/:delivery_id/complete", deps.DriverHandler.CompleteDelivery)
		}

		// Delivery routes.
		deliveries := v1.Group("/deliveries")
		{
			deliveries.GET("", deps.DeliveryHandler.GetAll)
			deliveries.GET("/:id", deps.DeliveryHandler.Get)
		}

		// Wallet routes.
		wallets := v1.Group("/wallets")
		{
			wallets.POST("", deps.WalletHandler.Open)
			wallets.GET("", deps.WalletHandler.GetAll)
			wallets.GET("/:id", deps.WalletHandler.Get)
			wallets.GET("/:id/transactions", deps.WalletHandler.Transactions)
			wallets.POST("/:id/withdrawals", deps.WalletHandler.RequestWithdrawal)
			wallets.POST("/:id/convert", deps.WalletHandler.Convert)
		}

		// Admin routes.
		admin := v1.Group("/admin")
		{
			admin.POST("/venues/:id/approve", deps.AdminHandler.ApproveVenue)
			admin.POST("/withdrawals/:id/approve", deps.AdminHandler.ApproveWithdrawal)
			admin.POST("/withdrawals/:id/reject", deps.AdminHandler.RejectWithdrawal)
			admin.POST("/wallets/:id/freeze", deps.AdminHandler.FreezeWallet)
			admin.POST("/wallets/:id/unfreeze", deps.AdminHandler.UnfreezeWallet)
			admin.POST("/wallets/:id/mint", deps.AdminHandler.MintTokens)
		}
	}

	return router
}
