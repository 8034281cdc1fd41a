package main

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-compliance/internal/alerts"
	"github.com/ukydev/fleet-compliance/internal/auth"
	"github.com/ukydev/fleet-compliance/internal/config"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/extraction"
	"github.com/ukydev/fleet-compliance/internal/gateway"
	"github.com/ukydev/fleet-compliance/internal/handlers"
	"github.com/ukydev/fleet-compliance/internal/middleware"
	"github.com/ukydev/fleet-compliance/internal/storage"
)

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func main() {
	cfg := config.Load()

	client, err := db.ConnectMongo(cfg.MongoURI)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	log.Info("connected to MongoDB")

	database := client.Database(cfg.Database)
	vehicleCollection := &db.MongoVehicleCollection{Collection: database.Collection("vehicles")}
	alertCollection := &db.MongoAlertCollection{Collection: database.Collection("alerts")}
	userCollection := &db.MongoUserCollection{Collection: database.Collection("users")}

	var store storage.Store
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to MinIO")
		}
		store = minioStore
		log.WithField("bucket", cfg.MinioBucket).Info("using MinIO document storage")
	} else {
		diskStore, err := storage.NewDiskStore(cfg.UploadDir)
		if err != nil {
			log.WithError(err).Fatal("failed to create upload directory")
		}
		store = diskStore
		log.WithField("dir", cfg.UploadDir).Info("using disk document storage")
	}

	gatewayOpts := []gateway.Option{gateway.WithWarningWindow(cfg.WarningWindowDays)}
	if cfg.MQTTBrokerURL != "" {
		notifier, err := alerts.NewNotifier(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			log.WithError(err).Warn("alert notifier disabled")
		} else {
			defer notifier.Close()
			gatewayOpts = append(gatewayOpts, gateway.WithNotifier(notifier))
			log.WithField("broker", cfg.MQTTBrokerURL).Info("alert notifier connected")
		}
	}
	gw := gateway.New(vehicleCollection, alertCollection, gatewayOpts...)

	agent := extraction.NewClient(cfg.AgentURL, cfg.AgentTimeout)

	authService, err := auth.NewService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.WithError(err).Fatal("failed to create auth service")
	}
	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimit := middleware.NewRateLimitMiddleware(300, time.Minute)

	authHandler := handlers.NewAuthHandler(authService, userCollection)
	vehicleHandler := handlers.NewVehicleHandler(gw, vehicleCollection, cfg.WarningWindowDays)
	documentHandler := handlers.NewDocumentHandler(gw, agent, store)
	alertHandler := handlers.NewAlertHandler(gw)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/register", authHandler.Register)
	mux.HandleFunc("/api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			authHandler.UpdateProfile(w, r)
			return
		}
		authHandler.GetProfile(w, r)
	})
	mux.HandleFunc("/api/auth/change-password", authHandler.ChangePassword)

	mux.HandleFunc("/api/vehicles", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			vehicleHandler.Create(w, r)
			return
		}
		vehicleHandler.List(w, r)
	})
	mux.HandleFunc("/api/vehicles/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			vehicleHandler.Update(w, r)
		case http.MethodDelete:
			vehicleHandler.Delete(w, r)
		default:
			vehicleHandler.Get(w, r)
		}
	})
	mux.HandleFunc("/api/vehicles/{id}/documents/extract", documentHandler.Extract)
	mux.HandleFunc("/api/vehicles/{id}/documents", documentHandler.Confirm)

	mux.HandleFunc("/api/alerts", alertHandler.List)
	mux.HandleFunc("/api/alerts/unread-count", alertHandler.UnreadCount)
	mux.HandleFunc("/api/alerts/{id}/read", alertHandler.MarkRead)

	handler := authMiddleware.Authenticate(rateLimit.Limit(mux))

	log.WithField("port", cfg.Port).Info("HTTP server listening")
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
