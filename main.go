package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront-api/auth"
	"github.com/yashrajoria/storefront-api/cache"
	"github.com/yashrajoria/storefront-api/config"
	"github.com/yashrajoria/storefront-api/consumer"
	"github.com/yashrajoria/storefront-api/controllers"
	"github.com/yashrajoria/storefront-api/database"
	"github.com/yashrajoria/storefront-api/logger"
	"github.com/yashrajoria/storefront-api/middleware"
	"github.com/yashrajoria/storefront-api/notify"
	aws_pkg "github.com/yashrajoria/storefront-api/pkg/aws"
	"github.com/yashrajoria/storefront-api/repository"
	"github.com/yashrajoria/storefront-api/routes"
	"github.com/yashrajoria/storefront-api/services"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const serviceName = "storefront-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		logger.Initialize("development")
		logger.Log.Fatal("Failed to load configuration", zap.Error(err))
	}

	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		logger.Initialize(cfg.Env)
		logger.Log.Fatal("Failed to load AWS config", zap.Error(err))
	}

	var logSink io.Writer
	if cfg.CloudWatchLogsEnabled {
		w, err := aws_pkg.NewCloudWatchLogsWriter(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			logger.Initialize(cfg.Env)
			logger.Log.Warn("CloudWatch Logs unavailable, logging to stdout only", zap.Error(err))
		} else {
			logSink = w
		}
	}
	logger.InitializeWithWriter(cfg.Env, logSink)
	defer logger.Sync()
	log := logger.Log

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Database
	db, err := database.ConnectPostgres(log, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer database.Close()
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	if err := database.SeedRoles(db); err != nil {
		log.Fatal("Failed to seed roles", zap.Error(err))
	}
	if err := database.EnsureAdmin(db, log, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal("Failed to create admin account", zap.Error(err))
	}
	store := repository.NewStore(db)

	// Redis
	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	guard := cache.NewRedisGuard(redisClient)
	cartCache := cache.NewRedisCartCache(redisClient)
	productCache := cache.NewRedisProductCache(redisClient, log)
	roleCache := cache.NewRedisRoleCache(redisClient, time.Minute)

	// AWS
	metrics := aws_pkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	objects := aws_pkg.NewS3Store(awsCfg, cfg.S3Bucket, cfg.S3PublicBaseURL)

	var publisher services.EventPublisher
	if cfg.OrderTopicARN != "" {
		publisher = aws_pkg.NewSNSClient(awsCfg)
	}
	var queue *aws_pkg.SQSQueue
	var queueSender aws_pkg.QueueSender
	if cfg.NotificationQueueURL != "" {
		queue = aws_pkg.NewSQSQueue(awsCfg, cfg.NotificationQueueURL, log)
		queueSender = queue
	}

	// Outbound messaging
	var emailSender notify.EmailSender
	if cfg.SMTP.Enabled() {
		emailSender = notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		log.Warn("SMTP not configured, email delivery disabled")
	}
	var smsSender notify.SMSSender
	if cfg.Twilio.Enabled() {
		smsSender = notify.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)
	} else {
		log.Warn("Twilio not configured, SMS delivery disabled")
	}
	dispatcher := notify.NewDispatcher(emailSender, smsSender, log)

	gateway := services.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	if !gateway.Enabled() {
		log.Warn("Stripe not configured, payments stay in requires_payment")
	}

	// Services
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	perms := services.NewPermissionService(store, roleCache, log)
	otp := services.NewOTPService(store, guard, dispatcher, metrics, cfg.OTP, log)
	accounts := services.NewAccountService(store, tokens, otp, log)
	products := services.NewProductService(store, productCache, log)
	images := services.NewImageService(store, objects, productCache, cfg.ImageUploadTTL, cfg.MaxImageBytes, log)
	carts := services.NewCartService(store, cartCache, guard, metrics, cfg.Currency, log)
	marketing := services.NewMarketingService(store, log)
	payments := services.NewPaymentService(store, gateway, publisher, cfg.OrderTopicARN, queueSender, metrics, log)
	orders := services.NewOrderService(store, payments, cartCache, productCache, publisher, cfg.OrderTopicARN, queueSender, metrics, cfg.Currency, log)

	// HTTP
	limiter := middleware.DefaultRateLimiter()
	go limiter.RunCleanup(ctx)
	go otp.RunCleanup(ctx, time.Hour)

	r := routes.NewEngine(routes.Options{
		Logger:         log,
		ServiceName:    serviceName,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimiter:    limiter,
		Metrics:        metrics,
		RequestTimeout: cfg.RequestTimeout,
	})
	routes.Register(r, routes.Controllers{
		Health: controllers.NewHealthController(map[string]controllers.HealthCheck{
			"postgres": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		}),
		Auth:      controllers.NewAuthController(accounts),
		Account:   controllers.NewAccountController(accounts),
		Product:   controllers.NewProductController(products, perms),
		Image:     controllers.NewImageController(images),
		Cart:      controllers.NewCartController(carts),
		Order:     controllers.NewOrderController(orders),
		Payment:   controllers.NewPaymentController(payments, perms),
		Marketing: controllers.NewMarketingController(marketing),
		Admin:     controllers.NewAdminController(accounts, perms),
	}, tokens, perms)

	// Notification worker
	if queue != nil {
		go consumer.NewNotificationConsumer(queue, dispatcher, log).Start(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(r, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Storefront API starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited")
}
