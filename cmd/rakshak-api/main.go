// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"rakshak/internal/alert"
	"rakshak/internal/config"
	httptransport "rakshak/internal/http"
	"rakshak/internal/infra"
	"rakshak/internal/logging"
	"rakshak/internal/maps"
	"rakshak/internal/modules/dispatch"
	"rakshak/internal/modules/incident"
	"rakshak/internal/modules/presence"
	"rakshak/internal/modules/unit"
	"rakshak/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.JSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Maps.APIKey == "" {
		log.Fatal("GOOGLE_MAPS_API_KEY is required")
	}
	distanceService, err := maps.NewDistanceService(cfg.Maps.APIKey)
	if err != nil {
		log.WithError(err).Fatal("maps init failed")
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.WithError(err).Fatal("database init failed")
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	unitStore := unit.NewStore(dbPool)
	geoIndex := unit.NewGeoIndex(redisClient)
	unitSvc := unit.NewService(unitStore, geoIndex, cfg.Dispatch, log)
	if err := unitSvc.SyncGeoIndex(ctx); err != nil {
		log.WithError(err).Fatal("geo index seed failed")
	}

	registry := presence.NewRegistry(unitStore, log)

	alertSender := alert.NewHTTPSender(cfg.Alert, log)
	resolver := dispatch.NewResolver(distanceService, cfg.Dispatch, log)
	broadcaster := dispatch.NewBroadcaster(registry, log)
	fanout := dispatch.NewFanout(alertSender, log)
	dispatchSvc := dispatch.NewService(unitSvc, resolver, broadcaster, fanout, cfg.Dispatch, log)

	incidentStore := incident.NewStore(dbPool)
	incidentSvc := incident.NewService(incidentStore, dispatchSvc, cfg.Dispatch, log)

	hub := ws.NewHub(registry, unitSvc, log)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httptransport.NewRouter(incidentSvc, hub, log),
	}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	log.WithField("addr", cfg.HTTP.Addr).Info("rakshak api listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server stopped")
	}
}
