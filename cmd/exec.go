package cmd

import (
	"log"
	"log/slog"
	"net/mail"
	"strconv"
	"time"

	"event-marketplace/config"
	"event-marketplace/internal/handlers"
	"event-marketplace/internal/ledger"
	"event-marketplace/internal/middleware"
	"event-marketplace/internal/services"
	"event-marketplace/internal/services/paymongo"
	"event-marketplace/monitoring"
	"event-marketplace/utils"

	_ "event-marketplace/migrations"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go/v7"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub (optional, realtime pushes are skipped without keys)
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUUID))
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		pn = pubnub.NewPubNub(pnConfig)
	}

	// Gateway client and ledger store, constructed once and shared
	gateway := paymongo.NewClient(&paymongo.Config{
		SecretKey:     cfg.PayMongo.SecretKey,
		WebhookSecret: cfg.PayMongo.WebhookSecret,
		BaseURL:       cfg.PayMongo.BaseURL,
		Timeout:       cfg.PayMongo.Timeout,
	})
	store := ledger.New(app)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	if cfg.EnableMetrics {
		if port, err := strconv.Atoi(cfg.MetricsPort); err == nil {
			go monitoring.Serve(port)
		}
	}

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		logger := slog.Default()

		// The mail client and sender identity come from the app settings,
		// which are only loaded by now.
		sender := mail.Address{
			Name:    app.Settings().Meta.SenderName,
			Address: app.Settings().Meta.SenderAddress,
		}
		dispatch := services.NewDispatcher(store, pn, app.NewMailClient(), sender, cfg.BaseURL, logger)
		reconcile := services.NewReconcileService(gateway, store, dispatch, redisClient, logger)
		checkout := services.NewCheckoutService(gateway, store, cfg.BaseURL, float64(cfg.PlatformFeePercent), logger)
		payouts := services.NewPayoutService(store, cfg.MinPayoutAmount, logger)

		webhookHandler := handlers.NewWebhookHandler(gateway, reconcile, logger)
		paymentHandler := handlers.NewPaymentHandler(reconcile, checkout, logger)
		payoutHandler := handlers.NewPayoutHandler(payouts, logger)

		limiter := middleware.NewRateLimiter(redisClient, 60, time.Minute)

		// Webhook endpoint (signature-authenticated, never rate limited)
		e.Router.POST("/api/v1/webhooks/paymongo", webhookHandler.HandlePayMongoWebhook)

		// Payment endpoints
		payments := e.Router.Group("/api/v1/payments")
		payments.BindFunc(limiter.PaymentRateLimit())
		payments.GET("/intent/{id}", paymentHandler.GetIntent)
		payments.GET("/intent/{id}/status", paymentHandler.GetIntentStatus)
		payments.POST("/intent", paymentHandler.CreateIntent)
		payments.POST("/{paymentId}/refund", paymentHandler.Refund)

		// Booking checkout
		e.Router.POST("/api/v1/bookings/checkout", paymentHandler.CreateCheckout)

		// Organizer payouts
		organizer := e.Router.Group("/api/v1/organizer")
		organizer.GET("/payments", payoutHandler.GetOrganizerPayments)
		organizer.POST("/payments", payoutHandler.RequestPayout)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	return app.Start()
}
