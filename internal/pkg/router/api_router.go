package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TranslaFox/app/controllers"
	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/middleware"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/ratelimit"
)

type ApiRouter struct {
	auth           middleware.Authenticator
	limiterStorage fiber.Storage
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", ratelimit.New(h.limiterStorage))
	api.Get("/", controllers.HandlePing)

	// API v1 routes
	v1 := api.Group("/v1", middleware.APIKeyAuthMiddleware(h.auth), middleware.RequireAPIAuth)

	// Customer routes. Every logged in user may own documents.
	v1.Post("/documents", controllers.HandleDocumentUpload)
	v1.Get("/documents", controllers.HandleDocumentList)
	v1.Delete("/documents/:id", controllers.HandleDocumentDelete)
	v1.Post("/documents/:id/checkout", controllers.HandleDocumentCheckout)
	v1.Post("/documents/:id/receipt", controllers.HandleDocumentReceipt)
	v1.Get("/documents/:id/download", controllers.HandleDocumentDownload)
	v1.Get("/folders", controllers.HandleFolderList)
	v1.Post("/folders", controllers.HandleFolderCreate)
	v1.Get("/notifications", controllers.HandleNotificationList)
	v1.Post("/notifications/:id/read", controllers.HandleNotificationRead)

	payments := v1.Group("/payments", middleware.RequireRole(models.ROLE_FINANCE))
	payments.Get("/", controllers.HandlePaymentList)
	payments.Post("/:id/approve", controllers.HandlePaymentApprove)
	payments.Post("/:id/reject", controllers.HandlePaymentReject)

	verifications := v1.Group("/verifications", middleware.RequireRole(models.ROLE_AUTHENTICATOR))
	verifications.Get("/", controllers.HandleVerificationList)
	verifications.Post("/:documentID/approve", controllers.HandleVerificationApprove)
	verifications.Post("/:documentID/reject", controllers.HandleVerificationReject)

	admin := v1.Group("/admin", middleware.RequireAdmin)
	admin.Get("/users", controllers.HandleAdminUsers)
	admin.Post("/users/:id/role", controllers.HandleAdminChangeRole)
	admin.Post("/users/:id/api-key", controllers.HandleAdminIssueAPIKey)
	admin.Get("/action-logs", controllers.HandleAdminActionLogs)
	admin.Get("/outbox", controllers.HandleAdminOutbox)
	admin.Post("/drafts/sweep", controllers.HandleAdminDraftSweep)
	admin.Get("/statistics", controllers.HandleAdminStatistics)
}

func NewApiRouter(auth middleware.Authenticator, limiterStorage fiber.Storage) *ApiRouter {
	return &ApiRouter{auth: auth, limiterStorage: limiterStorage}
}
