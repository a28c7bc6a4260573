package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/TranslaFox/app/controllers"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/authentication"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/billing"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/cache"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/database"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/documents"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/env"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/notify"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/ratelimit"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/receipt"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/reconcile"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/router"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/statistics"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/storage"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/users"
)

// Keys without which the portal cannot run at all.
var requiredEnv = []string{"DB_USER", "DB_NAME"}

// Delivery endpoints are only enforced outside development.
var requiredProdEnv = []string{"NOTIFY_WEBHOOK_URL", "PAYMENT_NOTIFY_WEBHOOK_URL", "INTAKE_WEBHOOK_URL"}

func main() {
	app, manager := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		manager.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	env.MustHaveEnv(requiredEnv...)
	if !env.IsDev() {
		env.MustHaveEnv(requiredProdEnv...)
	}
	database.SetupDatabase()
	cache.SetupCache()

	store, err := storage.NewFromEnv()
	if err != nil {
		panic(fmt.Errorf("object storage: %w", err))
	}

	db := database.GetDB()
	langs := authentication.DefaultLanguagesFromEnv()
	docs := documents.NewService(db, store)
	userSvc := users.NewService(db)

	manager := jobqueue.GetManager()
	manager.Configure(jobqueue.Deps{
		DB:        db,
		Deliverer: notify.NewDispatcherFromEnv(),
		Drafts:    docs,
	})

	controllers.SetServices(&controllers.Services{
		Documents:      docs,
		Reconcile:      reconcile.NewServiceFromEnv(db, receipt.NewValidatorFromEnv()),
		Authentication: authentication.NewService(db, langs),
		Billing:        billing.NewServiceFromEnv(db),
		Users:          userSvc,
		Drafts:         manager,
		Statistics:     statistics.NewService(db, statistics.RedisCache),
	})

	basePath := findBasePath()

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "TranslaFox",
		BodyLimit: env.GetEnvInt("UPLOAD_BODY_LIMIT_MB", 50) * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	}), monitor.New(monitor.Config{Title: "TranslaFox Metrics"}))

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
		Title:    "TranslaFox API",
	}))

	// ROUTER
	router.InstallRouter(app, userSvc, ratelimit.NewStorage())

	manager.Start()
	return app, manager
}

func findBasePath() string {
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/translafox to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); err == nil {
			return path
		}
	}
	panic("Could not find project root directory")
}
