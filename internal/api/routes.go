package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mystronium-backend-go/internal/config"
	"mystronium-backend-go/internal/core"
	"mystronium-backend-go/internal/middleware"
)

// BillingPath is the public billing endpoint shared by webhooks and direct calls.
const BillingPath = "/api/v1/billing"

// SetupRoutes configures all application routes. Global middleware (logging,
// recovery) is expected to be applied to router before this is called.
func SetupRoutes(
	router *gin.Engine,
	appConfig *config.Config,
	logger *zap.Logger,
	authMW *middleware.AuthMiddleware,
	userService core.UserService,
	billingService core.BillingService,
) {
	userHandler := NewUserHandler(userService, logger)
	billingHandler := NewBillingHandler(billingService, userService, appConfig.HardenedRoutes, logger)

	router.HandleMethodNotAllowed = true
	router.NoMethod(noMethod)

	billing := router.Group(BillingPath, middleware.BillingCORSHeaders())
	{
		billing.POST("", billingHandler.HandleBilling)
		billing.OPTIONS("", billingHandler.Options)
		for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodDelete} {
			billing.Handle(method, "", methodNotAllowed)
		}
	}

	apiV1 := router.Group("/api/v1", middleware.CORSMiddleware())
	{
		// Preflights are answered by the CORS middleware; the OPTIONS routes only
		// make the paths match so the group middleware runs.
		apiV1.OPTIONS("/billing/sessions", billingHandler.Options)
		apiV1.POST("/billing/sessions", authMW.VerifyToken(), billingHandler.CreateSession)

		apiV1.OPTIONS("/users/me/subscription", billingHandler.Options)
		apiV1.GET("/users/me/subscription", authMW.VerifyToken(), userHandler.GetSubscription)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	logger.Info("API routes configured",
		zap.String("billing_path", BillingPath),
		zap.Bool("hardened", appConfig.HardenedRoutes),
	)
}

// noMethod answers methods no route registers. The billing path keeps its CORS
// headers even though the billing group middleware does not run here.
func noMethod(c *gin.Context) {
	if c.Request.URL.Path == BillingPath {
		middleware.SetBillingCORSHeaders(c.Writer.Header())
	}
	methodNotAllowed(c)
}

func methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
}
