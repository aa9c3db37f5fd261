package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/lifesignal/backend/internal/config"
	"github.com/lifesignal/backend/internal/handlers"
	"github.com/lifesignal/backend/internal/logger"
	"github.com/lifesignal/backend/internal/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the HTTP API server and listen for requests.`,
	RunE:  runServe,
}

var (
	port string
)

func init() {
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override port from flag if provided
	if port != "" {
		cfg.Server.Port = port
	}

	log := newLogger(cfg)
	log.Info("starting lifesignal API server",
		logger.String("env", cfg.Server.Env),
		logger.String("store_backend", cfg.Store.Backend))

	engine, closeStore, err := newEngine(cfg, log)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	// Initialize handlers
	insightsHandler := handlers.NewInsightsHandler(engine)

	// Set Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())

	// Middleware
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RequestLogger())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"env":    cfg.Server.Env,
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		insights := v1.Group("/insights")
		{
			insights.GET("", insightsHandler.GetInsights)
			insights.GET("/category/:category", insightsHandler.GetInsightsByCategory)
			insights.GET("/top", insightsHandler.GetTopInsights)
			insights.GET("/history", insightsHandler.GetHistory)
			insights.POST("/compute", insightsHandler.Compute)
			insights.POST("/refresh", insightsHandler.RefreshCache)
		}
	}

	log.Info("server listening", logger.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
