// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rideon/internal/http/handlers"
	"rideon/internal/http/middleware"
	"rideon/internal/modules/account"
	"rideon/internal/modules/chair"
	"rideon/internal/modules/matching"
	"rideon/internal/modules/notification"
	"rideon/internal/modules/pricing"
	"rideon/internal/modules/ride"
	"rideon/internal/modules/settlement"
)

type RouterDeps struct {
	Accounts      *account.Service
	AccountStore  *account.Store
	Chairs        *chair.Service
	ChairStore    *chair.Store
	Rides         *ride.Service
	Pricing       *pricing.Service
	Settlement    *settlement.Service
	Notifications *notification.Service
	Matcher       *matching.Service
	Log           *slog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log), middleware.Metrics())

	appHandler := handlers.NewAppHandler(deps.Accounts, deps.Rides, deps.Pricing, deps.Settlement, deps.Notifications, deps.Chairs)
	chairHandler := handlers.NewChairHandler(deps.Chairs, deps.Rides, deps.Notifications)
	ownerHandler := handlers.NewOwnerHandler(deps.Accounts, deps.Chairs)

	app := r.Group("/api/app")
	app.POST("/users", appHandler.RegisterUser)
	appAuthed := app.Group("", middleware.AppAuth(deps.AccountStore))
	appAuthed.POST("/payment-methods", appHandler.RegisterPaymentMethod)
	appAuthed.GET("/rides", appHandler.ListRides)
	appAuthed.POST("/rides", appHandler.CreateRide)
	appAuthed.POST("/rides/estimated-fare", appHandler.EstimateFare)
	appAuthed.POST("/rides/:ride_id/evaluation", appHandler.EvaluateRide)
	appAuthed.GET("/notification", appHandler.Notification)
	appAuthed.GET("/nearby-chairs", appHandler.NearbyChairs)

	ch := r.Group("/api/chair")
	ch.POST("/chairs", chairHandler.Register)
	chairAuthed := ch.Group("", middleware.ChairAuth(deps.ChairStore))
	chairAuthed.POST("/activity", chairHandler.SetActivity)
	chairAuthed.POST("/coordinate", chairHandler.PostCoordinate)
	chairAuthed.GET("/notification", chairHandler.Notification)
	chairAuthed.POST("/rides/:ride_id/status", chairHandler.PostRideStatus)

	owner := r.Group("/api/owner")
	owner.POST("/owners", ownerHandler.Register)
	ownerAuthed := owner.Group("", middleware.OwnerAuth(deps.AccountStore))
	ownerAuthed.GET("/sales", ownerHandler.Sales)
	ownerAuthed.GET("/chairs", ownerHandler.ListChairs)

	// Operational matching trigger with the same semantics as the sweep.
	r.POST("/api/internal/matching", func(c *gin.Context) {
		if _, err := deps.Matcher.MatchOne(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "matching failed"})
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
