package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/config"
	"github.com/kendall-kelly/home-services-api/controllers"
	"github.com/kendall-kelly/home-services-api/middleware"
	"github.com/kendall-kelly/home-services-api/models"
	"github.com/kendall-kelly/home-services-api/services"
	"gorm.io/gorm"
)

// Collaborators are the external systems the services talk to
type Collaborators struct {
	Gateway  services.PaymentGateway
	Email    services.EmailSender
	Images   services.ImageService
	UserInfo services.UserInfoProvider
}

// Services is the wired service layer
type Services struct {
	Wallets     *services.WalletService
	Eligibility *services.EligibilityService
	Orders      *services.OrderService
	Users       *services.UserService
	Dispatcher  *services.NotificationDispatcher
	Sweeper     *services.ThresholdSweeper
}

// NewServices wires every service over db. The dispatcher is returned
// stopped; the caller starts and stops it.
func NewServices(db *gorm.DB, cfg *config.Config, ext Collaborators) *Services {
	wallets := services.NewWalletService(db)
	eligibility := services.NewEligibilityService(db)
	dispatcher := services.NewNotificationDispatcher(db, ext.Email, cfg.NotificationWorkers, cfg.NotificationQueueSize)

	orders := services.NewOrderService(db, services.OrderDeps{
		Wallets:     wallets,
		Eligibility: eligibility,
		Gateway:     ext.Gateway,
		Notifier:    dispatcher,
		Images:      ext.Images,
	}, services.OrderSettings{
		Currency:  cfg.Currency,
		Location:  cfg.Location(),
		TxTimeout: cfg.OrderTxTimeout,
	})

	return &Services{
		Wallets:     wallets,
		Eligibility: eligibility,
		Orders:      orders,
		Users:       services.NewUserService(db, wallets, ext.UserInfo, cfg.SignupBonus, cfg.ReferralBonus),
		Dispatcher:  dispatcher,
		Sweeper:     services.NewThresholdSweeper(db, dispatcher, nil),
	}
}

// Application holds everything the router serves
type Application struct {
	orders   *controllers.OrderController
	partners *controllers.PartnerController
	payments *controllers.PaymentController
	users    *controllers.UserController
	wallets  *controllers.WalletController
	sweeps   *controllers.SweepController

	auth        gin.HandlerFunc
	cronSecret  string
	corsOrigins []string
}

// NewApplication builds the controllers. auth authenticates every
// non-public route; tests pass a mock in place of the JWT validator.
func NewApplication(svc *Services, cfg *config.Config, auth gin.HandlerFunc) *Application {
	return &Application{
		orders:      controllers.NewOrderController(svc.Orders),
		partners:    controllers.NewPartnerController(svc.Orders),
		payments:    controllers.NewPaymentController(svc.Orders),
		users:       controllers.NewUserController(svc.Users),
		wallets:     controllers.NewWalletController(svc.Users, svc.Wallets),
		sweeps:      controllers.NewSweepController(svc.Sweeper),
		auth:        auth,
		cronSecret:  cfg.CronSecret,
		corsOrigins: cfg.CORSAllowedOrigins,
	}
}

// SetupRouter builds the gin engine with every route
func SetupRouter(app *Application) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	if len(app.corsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     app.corsOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", HealthCheck)

		// Database status endpoint
		v1.GET("/database/status", DatabaseStatus)

		// Threshold sweep, triggered by the external scheduler
		v1.POST("/internal/sweeps/threshold", middleware.RequireCronSecret(app.cronSecret), app.sweeps.RunThresholdSweep)

		authed := v1.Group("", app.auth)
		{
			authed.POST("/users", app.users.CreateUser)
			authed.GET("/users/me", app.users.GetMyProfile)
			authed.PUT("/users/me", app.users.UpdateMyProfile)

			// Order status is visible to the owner, the assigned partner and admins
			authed.GET("/orders/:id/status", app.orders.GetOrderStatus)

			customer := authed.Group("", middleware.RequireRole(models.RoleUser))
			{
				customer.GET("/wallet", app.wallets.GetMyWallet)
				customer.POST("/orders", app.orders.CreateOrder)
				customer.GET("/orders", app.orders.ListMyOrders)
				customer.POST("/orders/:id/cancel", app.orders.CancelOrder)
				customer.POST("/orders/:id/review", app.orders.CreateReview)
				customer.POST("/payment/verify", app.payments.VerifyPayment)
			}

			partner := authed.Group("/partner", middleware.RequireRole(models.RolePartner))
			{
				partner.GET("/orders", app.partners.ListAssignedOrders)
				partner.GET("/orders/available", app.partners.ListAvailableOrders)
				partner.POST("/accept-order", app.partners.AcceptOrder)
				partner.POST("/orders/update-status", app.partners.UpdateStatus)
				partner.POST("/orders/:id/completion-photo", app.partners.UploadCompletionPhoto)
			}
		}
	}

	return router
}
