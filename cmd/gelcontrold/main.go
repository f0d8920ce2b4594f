package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"

	"gel-controller/config"
	"gel-controller/internal/analysis"
	"gel-controller/internal/api"
	"gel-controller/internal/db"
	"gel-controller/internal/device"
	"gel-controller/internal/model"
	"gel-controller/internal/monitor"
	"gel-controller/internal/store"
)

func main() {
	log.SetPrefix("gel-controller ")
	log.SetFlags(log.LstdFlags)

	// Optional .env for local development; a missing file is fine.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	log.Printf("configuration loaded successfully from %s", configPath)

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	appStore := store.NewGormStore(gormDB)
	log.Println("baseline store initialized")

	capturer, err := device.NewHTTPCapturer(cfg.Capture.Dir, cfg.Capture.Timeout)
	if err != nil {
		log.Fatalf("failed to initialize capturer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := analysis.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions, analysis.LogAnalyzer{})
	pool.Start(ctx)

	controller := monitor.NewController(monitor.ControllerConfig{
		RetryMin: cfg.Detector.RetryMin,
		RetryMax: cfg.Detector.RetryMax,
	})
	controller.SetDispatcher(pool)
	controller.SetCaptureComplete(func(room *monitor.Room, artifacts []monitor.CaptureArtifact) {
		for _, artifact := range artifacts {
			rec := model.Baseline{
				CameraName: artifact.CameraName,
				CapturedAt: artifact.CapturedAt,
				Location:   artifact.Path,
			}
			if err := appStore.RecordBaseline(ctx, &rec); err != nil {
				log.Printf("failed to record baseline for room %s: %v", room.ID(), err)
			}
		}
	})

	if err := buildRooms(cfg, controller, capturer); err != nil {
		log.Fatalf("failed to build rooms: %v", err)
	}
	controller.Start(ctx)

	router := api.NewRouter(controller, appStore, &webpushOptions, api.RouterConfig{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("control-plane API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("Shutdown signal received, stopping services...")

	controller.Shutdown(5 * time.Second)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP server Shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// buildRooms constructs the configured room topology and registers it with
// the controller.
func buildRooms(cfg *config.Config, controller *monitor.Controller, capturer device.Capturer) error {
	for _, roomCfg := range cfg.Rooms {
		room, err := monitor.NewRoom(
			roomCfg.ID,
			roomCfg.Name,
			monitor.RoomState(roomCfg.InitialState),
			time.Duration(roomCfg.CaptureDelaySeconds)*time.Second,
		)
		if err != nil {
			return fmt.Errorf("room %s: %w", roomCfg.ID, err)
		}

		for _, camCfg := range roomCfg.Cameras {
			camera := monitor.NewCamera(monitor.CameraConfig{
				Name:           camCfg.Name,
				RoomID:         roomCfg.ID,
				IP:             camCfg.IP,
				Port:           camCfg.Port,
				MAC:            camCfg.MAC,
				URL:            camCfg.URL,
				PollInterval:   time.Duration(camCfg.PollIntervalSeconds * float64(time.Second)),
				OutputInterval: time.Duration(camCfg.OutputIntervalSeconds * float64(time.Second)),
			}, capturer)
			room.AddCamera(camera)
		}

		for _, detCfg := range roomCfg.Detectors {
			session := buildSession(cfg, detCfg)
			detector := monitor.NewPersonDetector(monitor.DetectorConfig{
				Name:             detCfg.Name,
				Host:             detCfg.Host,
				Port:             detCfg.Port,
				EncryptionKey:    detCfg.EncryptionKey,
				HeartbeatTimeout: time.Duration(detCfg.HeartbeatTimeoutSeconds * float64(time.Second)),
			}, session)
			room.AddPersonDetector(detector)
		}

		controller.AddRoom(room)
	}
	return nil
}

// buildSession creates the device session for one detector. Sensors publish
// channel readings over MQTT; the per-detector channel list maps keys to topics.
func buildSession(cfg *config.Config, detCfg config.PersonSensorConfig) device.Session {
	channels := make([]device.MQTTChannel, 0, len(detCfg.Channels))
	for _, ch := range detCfg.Channels {
		channels = append(channels, device.MQTTChannel{Key: ch.Key, Name: ch.Name, Topic: ch.Topic})
	}
	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "gel-controller"
	}
	return device.NewMQTTSession(device.MQTTSessionConfig{
		Broker:   cfg.MQTT.Broker,
		ClientID: clientID + "-" + detCfg.Name,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Channels: channels,
	})
}
