package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"baidu-face-go/config"
	apihandlers "baidu-face-go/internal/api/handlers"
	"baidu-face-go/internal/core/processor"
	"baidu-face-go/internal/core/store"
	"baidu-face-go/internal/db"
	"baidu-face-go/internal/db/repository"
	"baidu-face-go/internal/integrations/baidu"
	"baidu-face-go/internal/integrations/camera"
	"baidu-face-go/internal/integrations/homeassistant"
	"baidu-face-go/internal/integrations/mqtt"
	"baidu-face-go/internal/logger"
	syncservice "baidu-face-go/internal/services/sync"
	"baidu-face-go/internal/services/watch"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "/config/config.yaml", "path to the configuration file")
	flag.Parse()

	// Optional .env file for credentials
	if err := godotenv.Load(); err == nil {
		log.Info("Loaded environment from .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}

	// Database and detection history
	log.Info("Initializing database...")
	database, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	repo := repository.NewSQLiteRepository(database)

	// Baidu face API client; the token is fetched before anything else so a
	// credential problem aborts startup immediately.
	client := baidu.NewClient(cfg.Baidu)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Baidu.Timeout())
	if _, err := client.AcquireToken(ctx); err != nil {
		cancel()
		log.Fatalf("Can't authenticate against baidu face api: %v", err)
	}
	cancel()

	// MQTT client and Home Assistant integration
	var mqttClient *mqtt.Client
	var publisher *homeassistant.Publisher
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(cfg.MQTT)
		if err := mqttClient.Start(); err != nil {
			log.Warnf("Failed to initialize MQTT client: %v. Continuing without MQTT.", err)
			mqttClient = nil
		} else {
			defer mqttClient.Stop()
			publisher = homeassistant.NewPublisher(mqttClient, cfg)
		}
	} else {
		log.Info("MQTT is disabled in config.")
	}

	// Group/person store: one full sync at startup; a failure aborts setup.
	faceStore := store.New()
	syncService := syncservice.NewService(client, faceStore, publisherOrNil(publisher))
	defer syncService.Stop()

	log.Info("Loading group/person store from baidu face api...")
	if err := syncService.Sync(context.Background()); err != nil {
		log.Fatalf("Can't load data from face api: %v", err)
	}
	log.Infof("Store loaded: groups %v", faceStore.Groups())

	if cfg.Sync.IntervalMinutes > 0 {
		syncService.StartPeriodic(time.Duration(cfg.Sync.IntervalMinutes) * time.Minute)
	}

	// Home Assistant discovery for group and camera entities
	if mqttClient != nil && cfg.MQTT.HomeAssistant.Enabled {
		discovery := homeassistant.NewDiscoveryManager(mqttClient, cfg)
		if err := discovery.RegisterGroups(faceStore.Groups()); err != nil {
			log.WithError(err).Error("Failed to register group entities")
		}
		if err := discovery.RegisterCameras(cfg.Cameras); err != nil {
			log.WithError(err).Error("Failed to register camera entities")
		}
	}

	// Per-camera identifiers and polling loops
	identifiers := make(map[string]*processor.Identifier)
	watchService := watch.NewService(cfg.Baidu.Timeout())
	for _, cam := range cfg.Cameras {
		if !faceStore.HasGroup(cam.Group) {
			log.Warnf("Camera %s targets unknown group %s", cam.Name, cam.Group)
		}
		identifier := processor.NewIdentifier(
			cam.Name, cam.Group, cam.Confidence, cfg.SaveDir(cam),
			client, eventsOrNil(publisher), repo)
		identifiers[cam.Name] = identifier
		watchService.AddCamera(camera.NewClient(cam), identifier, time.Duration(cam.IntervalSeconds)*time.Second)
	}
	watchService.Start()
	defer watchService.Stop()

	// HTTP API
	router := gin.New()
	router.Use(gin.Recovery(), gin.Logger(), cors.Default())

	apiHandler := apihandlers.NewAPIHandler(cfg, faceStore, repo, identifiers, syncService)
	apiHandler.RegisterRoutes(router.Group("/api"))

	// Serve saved match frames
	router.StaticFS(cfg.Server.MatchURL, http.Dir(cfg.Server.MatchDir))
	log.Infof("Serving matched frames from %s under %s", cfg.Server.MatchDir, cfg.Server.MatchURL)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Infof("Starting server on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
	}

	log.Info("Server stopped.")
}

// publisherOrNil avoids handing a typed nil pointer to the sync service.
func publisherOrNil(p *homeassistant.Publisher) syncservice.GroupPublisher {
	if p == nil {
		return nil
	}
	return p
}

// eventsOrNil avoids handing a typed nil pointer to the identifiers.
func eventsOrNil(p *homeassistant.Publisher) processor.EventSink {
	if p == nil {
		return nil
	}
	return p
}
