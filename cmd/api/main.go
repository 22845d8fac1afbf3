package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/chachabrian/mooveit-fleet/internal/audit"
	"github.com/chachabrian/mooveit-fleet/internal/config"
	"github.com/chachabrian/mooveit-fleet/internal/database"
	"github.com/chachabrian/mooveit-fleet/internal/fleet"
	"github.com/chachabrian/mooveit-fleet/internal/handlers"
	"github.com/chachabrian/mooveit-fleet/internal/lifecycle"
	"github.com/chachabrian/mooveit-fleet/internal/middleware"
	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/internal/services"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

const (
	auditExportInterval = time.Minute
	shutdownTimeout     = 15 * time.Second
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	inMemory := pflag.Bool("memory", false, "use the in-memory store instead of postgres")
	migrate := pflag.Bool("migrate", true, "run database migrations on startup")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg, *inMemory, *migrate, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize store")
	}

	hub := services.NewHub(log, cfg.Security.CORSAllowedOrigins)
	go hub.Run(ctx)

	sinks := notify.Fanout{hub}
	sinks = append(sinks, optionalSinks(ctx, cfg, st, log)...)

	if cfg.Mongo.URI != "" {
		archive, client, err := audit.NewMongoArchive(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			log.WithError(err).Warn("Audit archive disabled")
		} else {
			defer client.Disconnect(context.Background())
			go audit.NewExporter(st, archive, log).Run(ctx, auditExportInterval)
			log.Info("Audit archive enabled")
		}
	}

	photos, err := services.NewPhotoStorage(cfg.Storage, cfg.App.BaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}

	recorder := audit.NewRecorder(log)
	engine := lifecycle.New(lifecycle.Dependencies{
		Store:  st,
		Audit:  recorder,
		Notify: sinks,
		Log:    log,
	})
	fleetSvc := fleet.NewService(fleet.Dependencies{
		Store:  st,
		Audit:  recorder,
		Notify: sinks,
		Photos: photos,
		Log:    log,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Security.CORSAllowedOrigins
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", handlers.RegistrationKeyHeader}
	r.Use(cors.New(corsConfig))

	deps := handlers.Deps{
		Store:    st,
		Engine:   engine,
		Fleet:    fleetSvc,
		Hub:      hub,
		Security: cfg.Security,
		Log:      log,
	}
	if local, ok := photos.(*services.LocalStorage); ok {
		deps.UploadDir = local.Dir()
	}
	handlers.RegisterRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server starting on port %s", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

func openStore(cfg *config.Config, inMemory, migrate bool, log *logger.Logger) (store.Store, error) {
	if inMemory {
		log.Warn("Using in-memory store; data will not survive a restart")
		return store.NewMemory(), nil
	}

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.RunMigrations(db); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("Database migrations applied")
	}
	return database.NewStore(db), nil
}

// optionalSinks connects the notification channels that are configured.
// A channel that fails to connect is logged and skipped.
func optionalSinks(ctx context.Context, cfg *config.Config, users store.Repository, log *logger.Logger) []notify.Sink {
	var sinks []notify.Sink

	if cfg.Redis.URL != "" {
		client, err := services.InitRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.WithError(err).Warn("Redis notifications disabled")
		} else {
			sinks = append(sinks, services.NewRedisPublisher(client, cfg.Redis.Channel, log))
		}
	}

	if cfg.MQTT.Broker != "" {
		client, err := services.ConnectMQTT(*cfg.MQTT)
		if err != nil {
			log.WithError(err).Warn("MQTT notifications disabled")
		} else {
			sinks = append(sinks, services.NewMQTTPublisher(client, cfg.MQTT.TopicPrefix, log))
		}
	}

	if cfg.Push.FirebaseServiceAccountPath != "" {
		client, err := services.InitFirebase(ctx, cfg.Push.FirebaseServiceAccountPath)
		if err != nil {
			log.WithError(err).Warn("Push notifications disabled")
		} else {
			sinks = append(sinks, services.NewPushSender(client, users, log))
		}
	}

	return sinks
}
