package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/config"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/handlers"
	"github.com/smartresidence/resident-backend/internal/middleware"
	"github.com/smartresidence/resident-backend/internal/services"
	"github.com/smartresidence/resident-backend/pkg/jwt"
	"github.com/smartresidence/resident-backend/pkg/push"
	"github.com/smartresidence/resident-backend/pkg/sms"
	"github.com/smartresidence/resident-backend/pkg/validator"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SmartResidence Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	phoneValidator := validator.NewPhoneValidator("+94")
	rateLimitService := services.NewRateLimitService(db, services.DefaultRateLimitConfig())

	// SMS gateway (Twilio)
	var smsGateway sms.Gateway
	if cfg.SMS.Mode == "production" {
		logger.Info("Initializing Twilio SMS gateway in production mode...")
		smsGateway = sms.NewTwilioGateway(sms.TwilioConfig{
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			FromNumber: cfg.SMS.FromNumber,
		})
	} else {
		logger.Info("SMS gateway in development mode (OTPs returned inline)")
		smsGateway = sms.NewTwilioGateway(sms.TwilioConfig{})
	}

	otpService := services.NewOTPService(db, smsGateway, cfg.Auth, cfg.SMS.Mode, logger)

	// Push + email
	pushGateway := push.NewFCMGateway(push.FCMConfig{
		Endpoint:  cfg.Push.Endpoint,
		ServerKey: cfg.Push.ServerKey,
	})
	sendgridClient := sendgrid.NewSendClient(cfg.Email.APIKey)
	notificationService := services.NewNotificationService(db, pushGateway, sendgridClient, cfg.Email, cfg.Push.Mode, logger)

	occupancyService := services.NewOccupancyService(logger)
	approvalService := services.NewApprovalService(db, occupancyService, notificationService, logger)
	checkInOutService := services.NewCheckInOutService(db, logger)
	subscriptionService := services.NewSubscriptionService(db, logger)

	uploadService, err := services.NewUploadService(context.Background(), cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize upload service: %v", err)
	}

	// Cron scheduler
	cronService, err := services.NewCronService(db, approvalService, subscriptionService, otpService, notificationService, cfg.Cron, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize cron service: %v", err)
	}
	if cfg.Cron.Enabled {
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
		logger.Info("Cron service started")
	} else {
		logger.Info("Cron service disabled by configuration")
	}

	logger.Info("Services initialized")

	// Repositories used directly by handlers and middleware
	apartmentRepo := database.NewApartmentRepository(db)
	clientRepo := database.NewClientUserRepository(db)
	adminRepo := database.NewAdminUserRepository(db)
	guardRepo := database.NewGuardRepository(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(
		jwtService,
		otpService,
		rateLimitService,
		phoneValidator,
		clientRepo,
		adminRepo,
		guardRepo,
		cfg,
		logger,
	)
	superadminHandler := handlers.NewSuperadminHandler(db, subscriptionService, cronService, cfg, logger)
	adminHandler := handlers.NewAdminHandler(db, approvalService, occupancyService, notificationService, phoneValidator, cfg, logger)
	approvalHandler := handlers.NewApprovalHandler(db, approvalService, logger)
	guardHandler := handlers.NewGuardHandler(db, checkInOutService, occupancyService, notificationService, logger)
	clientHandler := handlers.NewClientHandler(db, occupancyService, approvalService, notificationService, logger)
	websiteHandler := handlers.NewWebsiteHandler(db, logger)
	uploadHandler := handlers.NewUploadHandler(uploadService, logger)

	// Initialize Gin router
	router := gin.New()

	metrics := middleware.NewMetrics()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(metrics.Handler())
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Operational endpoints
	router.GET("/health", healthCheckHandler(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Feed the connection pool gauges alongside request metrics
	go reportDBPoolStats(db, metrics, logger)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Authentication routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/send-otp", authHandler.SendOTP)
			auth.POST("/verify-otp", authHandler.VerifyOTP)
			auth.POST("/admin-login", authHandler.AdminLogin)
			auth.POST("/guard-login", authHandler.GuardLogin)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
		}

		// Public marketing site
		website := v1.Group("/website")
		{
			website.GET("/blog", websiteHandler.ListPosts)
			website.GET("/blog/:slug", websiteHandler.GetPost)
		}

		// Superadmin panel
		superadmin := v1.Group("/superadmin")
		superadmin.Use(middleware.AuthMiddleware(jwtService))
		superadmin.Use(middleware.RequirePanel(jwt.PanelSuperadmin))
		{
			superadmin.POST("/apartments", superadminHandler.CreateApartment)
			superadmin.GET("/apartments", superadminHandler.ListApartments)
			superadmin.GET("/apartments/:apartmentID", superadminHandler.GetApartment)
			superadmin.PUT("/apartments/:apartmentID", superadminHandler.UpdateApartment)
			superadmin.PATCH("/apartments/:apartmentID/status", superadminHandler.UpdateApartmentStatus)

			superadmin.POST("/admins", superadminHandler.CreateAdmin)
			superadmin.GET("/apartments/:apartmentID/admins", superadminHandler.ListAdmins)

			superadmin.POST("/subscriptions", superadminHandler.CreateSubscription)
			superadmin.GET("/apartments/:apartmentID/subscriptions", superadminHandler.ListSubscriptions)
			superadmin.GET("/subscriptions/:subscriptionID", superadminHandler.GetSubscription)
			superadmin.POST("/subscriptions/:subscriptionID/installments", superadminHandler.RecordInstallment)
			superadmin.PUT("/subscriptions/:subscriptionID/installments/:installmentID", superadminHandler.CorrectInstallment)
			superadmin.DELETE("/subscriptions/:subscriptionID/installments/:installmentID", superadminHandler.DeleteInstallment)

			superadmin.POST("/blog", superadminHandler.CreateBlogPost)
			superadmin.DELETE("/blog/:postID", superadminHandler.DeleteBlogPost)

			superadmin.GET("/dashboard/stats", superadminHandler.DashboardStats)

			superadmin.POST("/cron/move-outs", superadminHandler.TriggerMoveOuts)
			superadmin.POST("/cron/subscriptions", superadminHandler.TriggerSubscriptionRoll)
			superadmin.GET("/cron/status", superadminHandler.CronStatus)

			superadmin.POST("/uploads", uploadHandler.Upload)
		}

		// Apartment admin panel
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService))
		admin.Use(middleware.RequirePanel(jwt.PanelAdmin))
		admin.Use(middleware.RequireApartmentScope())
		admin.Use(middleware.RequireActiveApartment(apartmentRepo))
		admin.Use(touchApartmentActivity(apartmentRepo, logger))
		{
			admin.POST("/blocks", adminHandler.CreateBlock)
			admin.GET("/blocks", adminHandler.ListBlocks)
			admin.POST("/blocks/:blockID/floors", adminHandler.CreateFloor)
			admin.GET("/blocks/:blockID/floors", adminHandler.ListFloors)

			admin.POST("/flats", adminHandler.CreateFlat)
			admin.GET("/flats", adminHandler.ListFlats)
			admin.DELETE("/flats/:flatID", adminHandler.ArchiveFlat)
			admin.GET("/flats/:flatID/occupants", adminHandler.ListFlatOccupants)
			admin.GET("/flats/:flatID/gate-passes", adminHandler.ListGatePasses)
			admin.GET("/flats/:flatID/history", approvalHandler.FlatHistory)

			admin.GET("/residents", adminHandler.ListResidents)
			admin.POST("/residents/offline", adminHandler.CreateOfflineResident)

			admin.POST("/occupancies", adminHandler.AssignOccupant)
			admin.DELETE("/flats/:flatID/occupants/:clientID", adminHandler.VacateOccupant)

			admin.GET("/requests", approvalHandler.ListPending)
			admin.POST("/requests/:requestID/approve", approvalHandler.Approve)
			admin.POST("/requests/:requestID/reject", approvalHandler.Reject)

			admin.POST("/guards", adminHandler.CreateGuard)
			admin.GET("/guards", adminHandler.ListGuards)
			admin.DELETE("/guards/:guardID", adminHandler.DeleteGuard)

			admin.POST("/notices", adminHandler.CreateNotice)
			admin.GET("/notices", adminHandler.ListNotices)
			admin.DELETE("/notices/:noticeID", adminHandler.DeleteNotice)

			admin.GET("/tickets", adminHandler.ListTickets)
			admin.PATCH("/tickets/:ticketID/status", adminHandler.UpdateTicketStatus)

			admin.POST("/uploads", uploadHandler.Upload)
		}

		// Guard panel
		guard := v1.Group("/guard")
		guard.Use(middleware.AuthMiddleware(jwtService))
		guard.Use(middleware.RequirePanel(jwt.PanelGuard))
		guard.Use(middleware.RequireApartmentScope())
		guard.Use(middleware.RequireActiveApartment(apartmentRepo))
		{
			guard.GET("/home", guardHandler.Home)
			guard.POST("/parties", guardHandler.RegisterParty)
			guard.GET("/parties", guardHandler.ListParties)
			guard.GET("/parties/:partyID/history", guardHandler.PartyHistory)
			guard.POST("/check-ins", guardHandler.CheckIn)
			guard.POST("/check-outs", guardHandler.CheckOut)
			guard.GET("/inside", guardHandler.Inside)
			guard.GET("/outside-today", guardHandler.OutsideToday)
			guard.GET("/gate-passes/:code", guardHandler.VerifyGatePass)
		}

		// Resident app
		client := v1.Group("/client")
		client.Use(middleware.AuthMiddleware(jwtService))
		client.Use(middleware.RequirePanel(jwt.PanelClient))
		client.Use(middleware.RequireApartmentScope())
		client.Use(middleware.RequireActiveApartment(apartmentRepo))
		client.Use(middleware.RequireVerifiedClient(clientRepo))
		{
			client.GET("/flats", clientHandler.MyFlats)
			client.GET("/flats/:flatID/gate-pass", clientHandler.MyGatePass)
			client.GET("/flats/:flatID/visitors", clientHandler.MyVisitors)

			client.POST("/requests", clientHandler.SubmitRequest)
			client.GET("/requests", clientHandler.MyRequests)

			client.GET("/profile", clientHandler.GetProfile)
			client.PUT("/profile", clientHandler.UpdateProfile)
			client.POST("/fcm-tokens", clientHandler.AddFCMToken)
			client.DELETE("/fcm-tokens", clientHandler.RemoveFCMToken)

			client.POST("/tickets", clientHandler.CreateTicket)
			client.GET("/tickets", clientHandler.MyTickets)

			client.GET("/notices", clientHandler.ListNotices)

			client.POST("/uploads", uploadHandler.Upload)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cfg.Cron.Enabled {
		logger.Info("Stopping cron service...")
		cronService.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// touchApartmentActivity stamps the apartment's last-activity marker after
// each admin request so the idle-apartment job has something to measure.
func touchApartmentActivity(repo *database.ApartmentRepository, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}
		if err := repo.TouchActivity(middleware.ApartmentID(c)); err != nil {
			logger.WithError(err).Warn("Failed to record apartment activity")
		}
	}
}

// reportDBPoolStats publishes sql.DB pool gauges every 15 seconds
func reportDBPoolStats(db database.DB, metrics *middleware.Metrics, logger *logrus.Logger) {
	pg, ok := db.(*database.PostgresDB)
	if !ok {
		logger.Warn("Database pool stats unavailable for this connection type")
		return
	}

	for range time.Tick(15 * time.Second) {
		stats := pg.DB.Stats()
		metrics.RecordDBPoolStats(stats.OpenConnections, stats.InUse, stats.Idle, stats.WaitCount, stats.WaitDuration)
	}
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if identity, ok := middleware.GetIdentity(c); ok {
			fields["user_id"] = identity.UserID
			fields["panel"] = identity.Panel
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
		} else {
			status := c.Writer.Status()
			if status >= 500 {
				entry.Error("Request completed with server error")
			} else if status >= 400 {
				entry.Warn("Request completed with client error")
			} else {
				entry.Info("Request completed successfully")
			}
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
