// Package api registers the HTTP boundary used by the presentation layer.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/router-for-me/LLMConfigService/internal/http/api/handlers"
	"github.com/router-for-me/LLMConfigService/internal/service"
	log "github.com/sirupsen/logrus"
)

// NewEngine builds a gin engine with recovery, request logging and CORS.
func NewEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogMiddleware())
	engine.Use(corsMiddleware())
	return engine
}

// RegisterRoutes registers config, provider, proxy and health routes.
// When secret is non-empty every /v0 route requires an HS256 bearer token.
func RegisterRoutes(r *gin.Engine, svc *service.Service, secret string) {
	if r == nil || svc == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(svc)
	r.GET("/healthz", healthHandler.Healthz)

	v0 := r.Group("/v0")
	if strings.TrimSpace(secret) != "" {
		v0.Use(bearerAuthMiddleware(secret))
	}

	configHandler := handlers.NewConfigHandler(svc)
	v0.GET("/configs", configHandler.List)
	v0.POST("/configs", configHandler.Create)
	v0.GET("/configs/:id", configHandler.Get)
	v0.PUT("/configs/:id", configHandler.Update)
	v0.DELETE("/configs/:id", configHandler.Delete)
	v0.POST("/configs/:id/default", configHandler.SetDefault)
	v0.GET("/providers", configHandler.ListProviders)
	v0.GET("/providers/:provider/default", configHandler.GetDefault)

	proxyHandler := handlers.NewProxyHandler(svc)
	v0.GET("/proxy", proxyHandler.GetGlobal)
	v0.PUT("/proxy", proxyHandler.SetGlobal)
	v0.GET("/configs/:id/proxy", proxyHandler.GetForConfig)
	v0.PUT("/configs/:id/proxy", proxyHandler.SetForConfig)
}

// ParseToken validates an HS256 token signed with secret and returns its claims.
func ParseToken(secret, token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, errParse := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if errParse != nil {
		return nil, errParse
	}
	return claims, nil
}

// IssueToken signs an HS256 token for subject that expires after ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// bearerAuthMiddleware rejects requests without a valid bearer token.
func bearerAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := ParseToken(secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("subject", claims.Subject)
		c.Next()
	}
}

// requestLogMiddleware logs one line per request.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("http request")
			return
		}
		entry.Debug("http request")
	}
}

// corsMiddleware adds permissive CORS headers for the local presentation layer.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
