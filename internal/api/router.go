package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"resource-pool-backend/internal/mw"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst)

	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Arbitration core
		api.POST("/requests", h.PostRequest)
		api.POST("/returns", h.PostReturn)
		api.GET("/assignments", h.GetAssignments)
		api.GET("/resources", caching, h.GetResources)
		api.GET("/utilization", caching, h.GetUtilization)

		// In-app notifications
		api.GET("/notifications", h.GetNotifications)
		api.DELETE("/notifications", h.DeleteNotifications)

		// Chat front
		api.POST("/messages", h.PostMessage)

		// Web push transport
		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
