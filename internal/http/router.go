package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/wrenchway/backend/internal/config"
	"github.com/wrenchway/backend/internal/db"
	"github.com/wrenchway/backend/internal/events"
	"github.com/wrenchway/backend/internal/geocode"
	"github.com/wrenchway/backend/internal/http/handlers"
	"github.com/wrenchway/backend/internal/http/middleware"
	"github.com/wrenchway/backend/internal/service"
	"github.com/wrenchway/backend/internal/upstream"

	_ "github.com/wrenchway/backend/docs"
)

func Router(cfg config.Config, store *db.Store, source upstream.Client, publisher *events.Publisher, geocoder geocode.Geocoder, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	validate := validator.New()
	registry := &service.RegistryService{Store: store, Logger: logger}
	h := &handlers.Handler{
		Store:        store,
		Requests:     &service.RequestService{Store: store, Registry: registry, Events: publisher, Geocoder: geocoder, Logger: logger},
		Registry:     registry,
		Assigner:     &service.AssignmentService{Store: store, Events: publisher, Logger: logger, DefaultJobDuration: cfg.DefaultJobDuration},
		Appointments: &service.AppointmentService{Store: store, Registry: registry, Events: publisher, Logger: logger},
		Syncer:       &service.SyncService{Store: store, Upstream: source, Validate: validate, Logger: logger},
		Tracker:      &service.TrackingService{Store: store, Logger: logger},
		Validator:    validate,
		Logger:       logger,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/requests", h.CreateRequest)
		api.GET("/requests", h.ListRequests)
		api.GET("/requests/:id", h.GetRequest)
		api.POST("/requests/:id/status", h.TransitionRequest)
		api.POST("/requests/:id/location", h.PushLocation)
		api.GET("/requests/:id/tracking", h.TrackingView)
		api.GET("/appointments", h.ListAppointments)
		api.GET("/appointments/:id", h.GetAppointment)
		api.POST("/appointments/:id/status", h.TransitionAppointment)
		api.GET("/technicians", h.ListTechnicians)
		api.GET("/technicians/available", h.ListAvailableTechnicians)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/technicians", h.RegisterTechnician)
		admin.POST("/appointments/:id/assign", h.AssignAppointment)
		admin.POST("/requests/:id/assign", h.AssignRequest)
		admin.POST("/sync", h.Sync)
		admin.GET("/sync/runs/latest", h.SyncRunsLatest)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
