package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront-api/auth"
	"github.com/yashrajoria/storefront-api/controllers"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/logger"
	"github.com/yashrajoria/storefront-api/middleware"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/services"
	"go.uber.org/zap"
)

// Options configures the global middleware chain.
type Options struct {
	Logger         *zap.Logger
	ServiceName    string
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
	Metrics        middleware.HTTPMetrics
	RequestTimeout time.Duration
}

// Controllers groups every HTTP handler set.
type Controllers struct {
	Health    *controllers.HealthController
	Auth      *controllers.AuthController
	Account   *controllers.AccountController
	Product   *controllers.ProductController
	Image     *controllers.ImageController
	Cart      *controllers.CartController
	Order     *controllers.OrderController
	Payment   *controllers.PaymentController
	Marketing *controllers.MarketingController
	Admin     *controllers.AdminController
}

// NewEngine builds a gin engine with the global middleware in order:
// recovery, request id, logging, security headers, CORS, rate limit,
// metrics, timeout and error rendering.
func NewEngine(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(opts.Logger))
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.RateLimiter != nil {
		r.Use(middleware.RateLimit(opts.RateLimiter))
	}
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics, opts.ServiceName))
	}
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(apperrors.ErrorMiddleware())
	return r
}

// Register mounts all routes under /api/v1.
func Register(r *gin.Engine, ctrl Controllers, tokens *auth.TokenManager, perms services.PermissionService) {
	requireAuth := middleware.Auth(tokens)
	optionalAuth := middleware.OptionalAuth(tokens)
	can := func(action, subject string) gin.HandlerFunc {
		return middleware.RequirePermission(perms, action, subject)
	}

	api := r.Group("/api/v1")
	api.GET("/health", ctrl.Health.Health)

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", ctrl.Auth.Register)
		authRoutes.POST("/login", ctrl.Auth.Login)
		authRoutes.POST("/refresh", ctrl.Auth.Refresh)
		authRoutes.POST("/logout", ctrl.Auth.Logout)
		authRoutes.POST("/otp/request", ctrl.Auth.RequestOTP)
		authRoutes.POST("/otp/verify", ctrl.Auth.VerifyOTP)
		authRoutes.POST("/password/reset", ctrl.Auth.ResetPassword)
	}

	account := api.Group("/account", requireAuth)
	{
		account.GET("/me", ctrl.Account.Me)
		account.PATCH("/me", ctrl.Account.UpdateProfile)
		account.POST("/password", ctrl.Account.ChangePassword)
		account.POST("/verify/email/request", ctrl.Account.RequestVerification(models.ChannelEmail))
		account.POST("/verify/email/confirm", ctrl.Account.ConfirmVerification(models.ChannelEmail))
		account.POST("/verify/phone/request", ctrl.Account.RequestVerification(models.ChannelSMS))
		account.POST("/verify/phone/confirm", ctrl.Account.ConfirmVerification(models.ChannelSMS))
	}

	products := api.Group("/products")
	{
		products.GET("", optionalAuth, ctrl.Product.List)
		products.GET("/:id", optionalAuth, ctrl.Product.Get)
		products.GET("/:id/images", ctrl.Image.List)

		products.POST("", requireAuth, can(services.ActionCreate, services.SubjectProduct), ctrl.Product.Create)
		products.PUT("/:id", requireAuth, can(services.ActionUpdate, services.SubjectProduct), ctrl.Product.Update)
		products.DELETE("/:id", requireAuth, can(services.ActionDelete, services.SubjectProduct), ctrl.Product.Delete)
		products.POST("/:id/stock", requireAuth, can(services.ActionUpdate, services.SubjectProduct), ctrl.Product.AdjustStock)

		products.POST("/:id/images/presign", requireAuth, can(services.ActionCreate, services.SubjectImage), ctrl.Image.Presign)
		products.POST("/:id/images", requireAuth, can(services.ActionCreate, services.SubjectImage), ctrl.Image.Register)
		products.POST("/:id/images/upload", requireAuth, can(services.ActionCreate, services.SubjectImage), ctrl.Image.Upload)
	}

	images := api.Group("/images", requireAuth)
	{
		images.PUT("/:id/primary", can(services.ActionUpdate, services.SubjectImage), ctrl.Image.SetPrimary)
		images.DELETE("/:id", can(services.ActionDelete, services.SubjectImage), ctrl.Image.Delete)
	}

	cart := api.Group("/cart", requireAuth)
	{
		cart.GET("", ctrl.Cart.GetCart)
		cart.DELETE("", ctrl.Cart.Clear)
		cart.POST("/items", ctrl.Cart.AddItem)
		cart.POST("/items/:productId/increase", ctrl.Cart.Increase)
		cart.POST("/items/:productId/decrease", ctrl.Cart.Decrease)
		cart.PUT("/items/:productId", ctrl.Cart.SetQuantity)
		cart.DELETE("/items/:productId", ctrl.Cart.RemoveItem)
		cart.POST("/merge", ctrl.Cart.Merge)
	}

	orders := api.Group("/orders", requireAuth)
	{
		orders.POST("/checkout", ctrl.Order.Checkout)
		orders.GET("", ctrl.Order.ListMine)
		orders.GET("/:id", ctrl.Order.GetMine)
		orders.POST("/:id/cancel", ctrl.Order.Cancel)
		orders.GET("/:id/payment", ctrl.Payment.GetForOrder)
		orders.POST("/:id/payment/retry", ctrl.Payment.Retry)
	}

	api.POST("/payments/webhook", ctrl.Payment.Webhook)

	marketing := api.Group("/marketing")
	{
		marketing.GET("/campaigns", ctrl.Marketing.ListActive)
		marketing.POST("/discounts/validate", ctrl.Marketing.ValidateDiscount)
		marketing.POST("/subscribe", ctrl.Marketing.Subscribe)
		marketing.POST("/unsubscribe", ctrl.Marketing.Unsubscribe)
	}

	admin := api.Group("/admin", requireAuth)
	{
		admin.GET("/accounts", can(services.ActionRead, services.SubjectAccount), ctrl.Admin.ListAccounts)
		admin.GET("/accounts/:id", can(services.ActionRead, services.SubjectAccount), ctrl.Admin.GetAccount)
		admin.PUT("/accounts/:id/role", can(services.ActionUpdate, services.SubjectAccount), ctrl.Admin.SetRole)
		admin.PUT("/accounts/:id/active", can(services.ActionUpdate, services.SubjectAccount), ctrl.Admin.SetActive)

		admin.GET("/roles", can(services.ActionRead, services.SubjectRole), ctrl.Admin.ListRoles)
		admin.POST("/roles", can(services.ActionCreate, services.SubjectRole), ctrl.Admin.CreateRole)
		admin.PUT("/roles/:id", can(services.ActionUpdate, services.SubjectRole), ctrl.Admin.UpdateRole)
		admin.DELETE("/roles/:id", can(services.ActionDelete, services.SubjectRole), ctrl.Admin.DeleteRole)

		admin.GET("/orders", can(services.ActionRead, services.SubjectOrder), ctrl.Order.ListAll)
		admin.GET("/orders/:id", can(services.ActionRead, services.SubjectOrder), ctrl.Order.Get)
		admin.PUT("/orders/:id/status", can(services.ActionUpdate, services.SubjectOrder), ctrl.Order.UpdateStatus)

		admin.GET("/campaigns", can(services.ActionRead, services.SubjectMarketing), ctrl.Marketing.ListCampaigns)
		admin.GET("/campaigns/:id", can(services.ActionRead, services.SubjectMarketing), ctrl.Marketing.GetCampaign)
		admin.POST("/campaigns", can(services.ActionCreate, services.SubjectMarketing), ctrl.Marketing.CreateCampaign)
		admin.PUT("/campaigns/:id", can(services.ActionUpdate, services.SubjectMarketing), ctrl.Marketing.UpdateCampaign)
		admin.DELETE("/campaigns/:id", can(services.ActionDelete, services.SubjectMarketing), ctrl.Marketing.DeleteCampaign)
	}
}
