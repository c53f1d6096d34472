// README: Entry point; loads config, wires services and starts the HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"fleetops/internal/audit"
	"fleetops/internal/config"
	"fleetops/internal/events"
	httptransport "fleetops/internal/http"
	"fleetops/internal/infra"
	"fleetops/internal/logger"
	"fleetops/internal/maps"
	"fleetops/internal/metrics"
	"fleetops/internal/modules/assignment"
	"fleetops/internal/modules/driver"
	"fleetops/internal/modules/fleet"
	"fleetops/internal/modules/merge"
	"fleetops/internal/modules/trip"
	"fleetops/internal/notify"
)

func main() {
	log := logger.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var verifier infra.TokenVerifier
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatal("firebase init", "error", err)
		}
	} else {
		log.Warn("FLEETOPS_FIREBASE_PROJECT_ID not set; auth disabled")
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal("connect db", "error", err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	m := metrics.NewMetrics("fleetops")
	publisher := events.NewRedisPublisher(redisClient, cfg.Redis.Channel, log)
	auditStore := audit.NewStore(dbPool)

	var mailer notify.Notifier = notify.Nop{}
	if cfg.Mail.Enabled {
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.Mail.ClientID,
			ClientSecret: cfg.Mail.ClientSecret,
			Endpoint:     google.Endpoint,
		}
		ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.Mail.RefreshToken})
		gm, err := notify.NewGmailNotifier(ctx, ts, cfg.Mail.From, log)
		if err != nil {
			log.Fatal("gmail init", "error", err)
		}
		mailer = gm
	}

	var estimator trip.RouteEstimator
	var geocoder trip.Geocoder
	if cfg.Maps.APIKey != "" {
		mapsSvc, err := maps.NewService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatal("maps init", "error", err)
		}
		estimator = mapsSvc
		geocoder = mapsSvc
	} else {
		log.Warn("FLEETOPS_MAPS_API_KEY not set; estimates and geocoding disabled")
	}

	tripStore := trip.NewStore(dbPool)
	fleetStore := fleet.NewStore(dbPool)
	driverStore := driver.NewStore(dbPool)

	driverSvc := driver.NewService(driverStore)
	fleetSvc := fleet.NewService(fleetStore, tripStore, publisher, log, cfg.Fleet.ExpiryWarningDays)
	tripSvc := trip.NewService(tripStore, trip.ServiceDeps{
		Vehicles:  fleetSvc,
		Drivers:   driverSvc,
		Estimator: estimator,
		Geocoder:  geocoder,
		Audit:     auditStore,
		Events:    publisher,
		Metrics:   m,
		Log:       log,
	})
	assignmentSvc := assignment.NewService(
		assignment.NewStore(dbPool), driverStore, fleetStore, mailer, m, log)
	mergeSvc := merge.NewService(
		tripStore, merge.NewPGDirectory(dbPool), mailer, auditStore, publisher, log)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Trips:       tripSvc,
		Fleet:       fleetSvc,
		Drivers:     driverSvc,
		Assignments: assignmentSvc,
		Merges:      mergeSvc,
		Audit:       auditStore,
		Verifier:    verifier,
		Metrics:     m,
		Log:         log,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	log.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("serve", "error", err)
	}
}
