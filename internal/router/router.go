package router

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"private-lending/internal/app"
	"private-lending/internal/config"
	"private-lending/internal/handlers"
	"private-lending/internal/middleware"
)

// corsMiddleware CORS middleware
// Priority: Environment Variable > Default (*)
func corsMiddleware() gin.HandlerFunc {
	allowedOrigins := []string{"*"}
	if envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); envOrigins != "" {
		allowedOrigins = allowedOrigins[:0]
		for _, o := range strings.Split(envOrigins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				allowedOrigins = append(allowedOrigins, trimmed)
			}
		}
	}
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"
	maxAge := 3600

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if allowedOrigin == origin {
					allowed = true
					break
				}
			}
			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Credentials", "true")
			} else {
				logrus.WithFields(logrus.Fields{
					"request_origin":  origin,
					"allowed_origins": allowedOrigins,
					"path":            c.Request.URL.Path,
					"method":          c.Request.Method,
					"remote_addr":     c.ClientIP(),
				}).Warn("🚫 CORS: Request blocked - Origin not in whitelist")
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		// Handle OPTIONS preflight requests
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type")
		c.Next()
	}
}

// SetupRouter builds the HTTP API of the node role held by the container
func SetupRouter(container *app.ServiceContainer) *gin.Engine {
	r := gin.Default()
	r.Use(corsMiddleware())

	logger := logrus.New()
	cfg := container.Config

	if len(cfg.Admin.AllowedIPs) > 0 {
		logger.WithFields(logrus.Fields{
			"allowed_ips": cfg.Admin.AllowedIPs,
			"count":       len(cfg.Admin.AllowedIPs),
		}).Info("Admin API IP whitelist configured")
	} else {
		logger.Info("No admin.allowedIPs configured, using localhost-only mode")
	}
	localhostOnly := middleware.NewLocalhostOnly(logger, cfg.Admin.AllowedIPs)

	// ============ Health Check ============
	healthHandler := handlers.NewHealthHandler(container.DB, cfg.Node.Role, cfg.Node.LocalDomain, container.NATSConnected())
	r.GET("/health", healthHandler.HealthCheckHandler)
	r.GET("/api/health", healthHandler.HealthCheckHandler)

	// ============ Prometheus Metrics ============
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ Event stream ============
	wsHandler := handlers.NewWebSocketHandler(container.Bus)
	r.GET("/ws/events", wsHandler.HandleEvents)

	api := r.Group("/api")

	// ============ Owner ============
	adminAuthHandler := handlers.NewAdminAuthHandler(container.Tokens, cfg.Admin, cfg.Node.OwnerAddress)
	adminLogin := api.Group("/admin")
	adminLogin.Use(localhostOnly.Restrict())
	{
		adminLogin.POST("/login", adminAuthHandler.AdminLoginHandler)
		adminLogin.POST("/totp/secret", adminAuthHandler.GenerateTOTPSecretHandler)
	}

	adminAuth := middleware.NewAdminAuthMiddleware(logger, container.Tokens)
	admin := api.Group("/admin")
	admin.Use(localhostOnly.Restrict(), adminAuth.RequireAdminAuth())

	adminHandler := handlers.NewAdminHandler(container.Routers, container.Markets, container.Prices)
	admin.POST("/routers", adminHandler.EnrollRouterHandler)
	admin.GET("/routers", adminHandler.ListRoutersHandler)

	switch cfg.Node.Role {
	case config.RoleIngress:
		setupIngressRoutes(api, container, logger)
	case config.RoleLendingCore:
		setupLendingCoreRoutes(api, admin, container, adminHandler)
	}

	// ============ NoRoute handler for 404 ============
	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if !strings.HasPrefix(path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"message":    "Endpoint not found",
				"path":       path,
				"suggestion": "Check /api endpoints for available APIs",
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "API endpoint not found",
			"code":    "NOT_FOUND",
			"path":    path,
		})
	})

	return r
}

func setupIngressRoutes(api *gin.RouterGroup, container *app.ServiceContainer, logger *logrus.Logger) {
	authMiddleware := middleware.NewAuthMiddleware(logger, container.Tokens)

	// ============ Wallet login ============
	authHandler := handlers.NewAuthHandler(container.Tokens)
	auth := api.Group("/auth")
	{
		auth.POST("/nonce", authHandler.GenerateNonceHandler)
		auth.POST("/login", authHandler.AuthenticateHandler)
	}

	depositHandler := handlers.NewDepositHandler(container.Ledger, container.Relay)
	actionHandler := handlers.NewActionHandler(container.Relay)

	// ============ Public reads ============
	api.GET("/deposits/:handle", depositHandler.GetDepositHandler)
	api.GET("/actions/:ciphertextHash", actionHandler.LookupActionHandler)
	api.GET("/custody/:token", depositHandler.CustodyBalanceHandler)

	// ============ Depositor ============
	secure := api.Group("")
	secure.Use(authMiddleware.RequireAuth())
	{
		secure.POST("/deposits/native", depositHandler.DepositNativeHandler)
		secure.POST("/deposits/erc20", depositHandler.DepositErc20Handler)
		secure.GET("/deposits", depositHandler.ListMyDepositsHandler)
		secure.POST("/actions", actionHandler.SubmitActionHandler)
	}
}

func setupLendingCoreRoutes(api, admin *gin.RouterGroup, container *app.ServiceContainer, adminHandler *handlers.AdminHandler) {
	processorHandler := handlers.NewProcessorHandler(container.Processor)
	marketHandler := handlers.NewMarketHandler(container.Markets, container.Prices)

	api.GET("/public-key", processorHandler.PublicKeyHandler)

	// processAction is permissionless
	actions := api.Group("/actions")
	{
		actions.GET("", processorHandler.PendingActionsHandler)
		actions.GET("/:handle", processorHandler.GetActionHandler)
		actions.GET("/:handle/payload", processorHandler.GetPayloadHandler)
		actions.POST("/:handle/process", processorHandler.ProcessActionHandler)
	}

	api.GET("/tokens", marketHandler.ListMarketsHandler)
	api.GET("/tokens/:token", marketHandler.GetMarketHandler)
	api.GET("/prices/:token", marketHandler.GetPriceHandler)
	api.GET("/accounts/:address/health", marketHandler.AccountHealthHandler)

	admin.POST("/tokens", adminHandler.ConfigureTokenHandler)
	admin.POST("/prices", adminHandler.UpdatePriceHandler)
	admin.POST("/prices/:token/rofl", adminHandler.RefreshRoflPriceHandler)
	admin.POST("/prices/:token/chainlink", adminHandler.RefreshChainlinkPriceHandler)
	admin.POST("/feeds/chainlink", adminHandler.SetChainlinkFeedHandler)
	admin.POST("/feeds/rofl", adminHandler.SetRoflOracleHandler)
}
