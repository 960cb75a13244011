// Package main provides the Visaflow API server implementation.
package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/visaflow/pkg/eventbus"
	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/dukex/visaflow/pkg/services"
	"github.com/dukex/visaflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

const defaultFetchTimeout = 30 * time.Second

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	fetcher     services.ContentFetcher
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	fetcher services.ContentFetcher,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		fetcher:     fetcher,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	digestService := services.NewDigest(a.persistence, a.logger)
	scraperService := services.NewScraper(a.persistence, a.fetcher, digestService, a.logger,
		services.WithPublisher(a.eventBus),
		services.WithTracer(a.tracer),
	)
	reviewService := services.NewReview(a.persistence, a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(scraperService, reviewService, digestService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Visaflow API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
