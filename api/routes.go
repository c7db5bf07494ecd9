package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garnizeh/leavesync/internal/config"
	"github.com/garnizeh/leavesync/pkg/repository"
)

// Deps are the services the admin API exposes.
type Deps struct {
	Runs    repository.RunRepo
	Ledger  repository.NotificationRepo
	Trigger SyncTrigger
	Health  HealthCheck
}

func SetupRoutes(cfg *config.Config, version, buildTime string, deps Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	systemHandler := NewSystemHandler(deps.Health)
	authHandler := NewAuthHandler(cfg.Admin.Username, cfg.Admin.PasswordHash, cfg.JWTSecret, cfg.TokenDuration)
	runsHandler := NewRunsHandler(deps.Runs, deps.Ledger, deps.Trigger)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	apiV1.HandleFunc("/auth/signout", authHandler.Signout).Methods("POST")

	apiV1.HandleFunc("/runs", runsHandler.ListRuns).Methods("GET")
	apiV1.HandleFunc("/runs", runsHandler.TriggerRun).Methods("POST")
	apiV1.HandleFunc("/runs/{id}", runsHandler.GetRun).Methods("GET")
	apiV1.HandleFunc("/notifications/{request_id}", runsHandler.ListNotifications).Methods("GET")

	return r
}
