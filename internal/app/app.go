package app

import (
	"unihaven-backend/internal/config"
	"unihaven-backend/internal/database"
	"unihaven-backend/internal/geocode"
	"unihaven-backend/internal/health"
	"unihaven-backend/internal/listings"
	"unihaven-backend/internal/middleware"
	"unihaven-backend/internal/notify"
	"unihaven-backend/internal/ratings"
	"unihaven-backend/internal/reservations"
	"unihaven-backend/internal/tenants"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and route
// registration. The returned DB and Redis client are shared with the caller
// for startup checks and seeding.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opts)
		app.Use(middleware.HealthMarker(rdb))
	}

	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	// Health module (no auth)
	healthHandlers := &health.Handlers{
		Rdb:            rdb,
		ALSBaseURL:     cfg.ALSBaseURL,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			healthHandlers.DB = sqlDB
		}
	}
	app.Get("/health/json", healthHandlers.JSON)
	app.Get("/health/errors", healthHandlers.Errors)
	app.Get("/health/reset", healthHandlers.Reset)

	if db != nil {
		tenantService := &tenants.Service{DB: db}

		var geoClient geocode.Client = &geocode.ALSClient{BaseURL: cfg.ALSBaseURL}
		if rdb != nil {
			geoClient = &geocode.CachedClient{Next: geoClient, Rdb: rdb}
		}

		dispatcher := &notify.Dispatcher{
			Mailer: &notify.BrevoClient{APIKey: cfg.SendinblueAPIKey, MailFrom: cfg.MailFrom},
		}

		listingService := &listings.Service{DB: db, Geo: geoClient}
		listingHandlers := &listings.Handlers{Service: listingService}
		reservationService := &reservations.Service{DB: db, Tenants: tenantService, Notify: dispatcher}
		reservationHandlers := &reservations.Handlers{Service: reservationService}
		ratingService := &ratings.Service{DB: db}
		ratingHandlers := &ratings.Handlers{Service: ratingService}
		geoHandlers := &geocode.Handlers{Client: geoClient}

		require := middleware.RequireAPIKey(tenantService)
		optional := middleware.OptionalAPIKey(tenantService)

		api := app.Group("/api/v1")

		// Listings: writes need an authenticated tenant, reads are open.
		api.Post("/listings", require, listingHandlers.Create)
		api.Get("/listings", optional, listingHandlers.Search)
		api.Get("/listings/:id", optional, listingHandlers.Get)
		api.Delete("/listings/:id", require, listingHandlers.Delete)
		api.Get("/listings/:id/availability", optional, listingHandlers.CheckAvailability)

		// Reservations: requesters are anonymous; contract signing is
		// specialist-only.
		api.Post("/listings/:id/reservations", optional, reservationHandlers.Reserve)
		api.Delete("/listings/:id/reservations/:reservation_id", optional, reservationHandlers.Cancel)
		api.Post("/listings/:id/reservations/:reservation_id/contract", require, reservationHandlers.SignContract)
		api.Get("/reservations", optional, reservationHandlers.ListForUser)

		// Ratings
		api.Post("/listings/:id/ratings", optional, ratingHandlers.Submit)
		api.Get("/listings/:id/ratings", optional, ratingHandlers.List)

		// Tenant-system utilities
		api.Get("/listing-events", require, listingHandlers.Events)
		api.Get("/address-lookup", require, geoHandlers.Lookup)
	}

	return app, db, rdb, nil
}
