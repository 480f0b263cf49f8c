// README: Entry point; loads config, wires services, starts HTTP server and
// the background matching sweep.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rideon/internal/config"
	httptransport "rideon/internal/http"
	"rideon/internal/infra"
	"rideon/internal/logging"
	"rideon/internal/modules/account"
	"rideon/internal/modules/chair"
	"rideon/internal/modules/matching"
	"rideon/internal/modules/notification"
	"rideon/internal/modules/pricing"
	"rideon/internal/modules/ride"
	"rideon/internal/modules/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.NewLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	couponStore := pricing.NewStore(dbPool)
	pricingSvc := pricing.NewService(couponStore)

	accountStore := account.NewStore(dbPool)
	accountSvc := account.NewService(dbPool, accountStore, couponStore)

	rideStore := ride.NewStore(dbPool)
	rideSvc := ride.NewService(dbPool, rideStore, couponStore)

	chairStore := chair.NewStore(dbPool, redisClient)
	chairSvc := chair.NewService(dbPool, chairStore, accountStore, rideSvc, rideStore, logger)

	matchingStore := matching.NewStore(dbPool)
	matchingSvc := matching.NewService(matchingStore, cfg.Matching, logger)

	notificationStore := notification.NewStore(dbPool, rideStore, chairStore, accountStore, couponStore)
	notificationSvc := notification.NewService(notificationStore, matchingSvc, cfg.Notification, logger)

	gateway := settlement.NewGateway(cfg.Payment)
	settlementSvc := settlement.NewService(dbPool, rideStore, accountStore, couponStore, gateway, cfg.Payment.GatewayURL)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Accounts:      accountSvc,
		AccountStore:  accountStore,
		Chairs:        chairSvc,
		ChairStore:    chairStore,
		Rides:         rideSvc,
		Pricing:       pricingSvc,
		Settlement:    settlementSvc,
		Notifications: notificationSvc,
		Matcher:       matchingSvc,
		Log:           logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go matchingSvc.RunSweep(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
