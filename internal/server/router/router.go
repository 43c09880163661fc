package router

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kzich/nudining/internal/server/handlers"
	"github.com/kzich/nudining/pkg/clients/identity"
)

// New wires the Gin engine with required routes and middlewares. A nil
// verifier disables identity checks (local development only).
func New(menuHandler *handlers.MenuHandler, ratingHandler *handlers.RatingHandler, userHandler *handlers.UserHandler, verifier identity.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	api := r.Group("/")
	if verifier != nil {
		api.Use(identityMiddleware(verifier, logger))
	} else if logger != nil {
		logger.Warn("identity verification disabled, all requests are trusted")
	}

	api.GET("/items/today", menuHandler.TodaysItems)
	api.POST("/ratings", ratingHandler.SubmitRating)
	api.POST("/macros/log", ratingHandler.LogMacros)
	api.POST("/macros/reset", ratingHandler.ResetMacros)
	api.GET("/users/:uid/ratedFood", userHandler.RatedFood)
	api.POST("/users", userHandler.Create)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

// identityMiddleware delegates bearer-token verification to the external
// identity provider. Handlers only ever see requests whose token resolved
// to a uid.
func identityMiddleware(verifier identity.Client, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		uid, err := verifier.VerifyToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			logger.Error("identity provider unreachable", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "identity verification unavailable"})
			return
		}

		c.Set("uid", uid)
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
