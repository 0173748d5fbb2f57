package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/pressroom/app/cfg"
)

// NewServer creates a new HTTP server with all routes configured. Files under
// mediaRoot are served at /media when mediaRoot is not empty.
func NewServer(handler *Handler, apiAccessKey, mediaRoot string) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		// The progress stream stays open for the whole session
		SkipPaths: []string{"/api/uploads/progress/stream"},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey, mediaRoot)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey, mediaRoot string) {
	r.GET("/feeds/:section", handler.GetFeed)
	r.GET("/health", handler.GetHealth)

	if mediaRoot != "" {
		r.Static("/media", mediaRoot)
	}

	// API endpoints (conditionally enabled with authentication)
	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.POST("/articles", handler.APICreateArticle)
			api.GET("/articles", handler.APIListArticles)
			api.GET("/articles/:id", handler.APIGetArticle)
			api.GET("/users/:id", handler.APIGetUser)
			api.GET("/uploads/progress", handler.APIGetUploadProgress)
			api.GET("/uploads/progress/stream", handler.APIStreamUploadProgress)
			api.GET("/tasks/:id", handler.APIGetTask)
		}
		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Warn("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"feed":   "/feeds/<section>",
			"health": "/health",
		}

		if mediaRoot != "" {
			endpoints["media"] = "/media/<folder>/<file>"
		}

		// Add API endpoints if authentication is enabled
		if apiAccessKey != "" {
			endpoints["publish"] = "/api/articles (POST multipart, requires X-API-Key header)"
			endpoints["articles"] = "/api/articles?section=<section>&limit=<n> (requires X-API-Key header)"
			endpoints["article"] = "/api/articles/<id> (requires X-API-Key header)"
			endpoints["user"] = "/api/users/<id> (requires X-API-Key header)"
			endpoints["progress"] = "/api/uploads/progress (requires X-API-Key header)"
			endpoints["progress_stream"] = "/api/uploads/progress/stream (SSE, requires X-API-Key header)"
			endpoints["task"] = "/api/tasks/<id> (requires X-API-Key header)"
		}

		c.JSON(200, gin.H{
			"service":     "Pressroom",
			"version":     cfg.GetVersion(),
			"description": "Article publishing with sequential media staging and point accounting",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"enabled":       apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		// Also check Authorization header with Bearer prefix
		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
