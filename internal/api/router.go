package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"gel-controller/internal/mw"
	"gel-controller/internal/store"
)

// RouterConfig tunes middleware on the control-plane router.
type RouterConfig struct {
	RateLimitPerSec float64
	CacheTTL        time.Duration
}

// NewRouter creates and configures the control-plane Gin router.
func NewRouter(ctrl Controller, s store.Store, webpushOptions *webpush.Options, cfg RouterConfig) *gin.Engine {
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}

	r := gin.Default()
	handler := NewHandler(ctrl, s, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), 5)
	cacheStore := cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	caching := mw.Cache(cacheStore, cfg.CacheTTL)

	root := r.Group("/")
	root.Use(rateLimiter)
	{
		// control plane
		root.POST("/capture-baseline", handler.CaptureBaseline)
		root.POST("/analyze-latest", handler.AnalyzeLatest)

		// read surface
		root.GET("/rooms", handler.GetRooms)
		root.GET("/baselines", caching, handler.GetBaselines)

		// push subscriptions
		root.GET("/subscriptions", handler.GetSubscription)
		root.PUT("/subscriptions", handler.PutSubscription)
		root.DELETE("/subscriptions", handler.DeleteSubscription)
		root.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
