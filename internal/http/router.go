// Package httpapi wires the HTTP transport (Gin) to the webhook and admin
// handlers. It centralizes cross-cutting concerns such as tracing,
// correlation IDs, logging/redaction, panic recovery, metrics, CORS, security
// headers, request authentication, and rate limiting.
//
// Two surfaces share one engine:
//   - the Messenger webhook (GET challenge, POST signed deliveries)
//   - the admin API under APIBasePath (X-API-Key, rate limited, gzip)
package httpapi

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-messenger-bot/internal/config"
	"github.com/tbourn/go-messenger-bot/internal/http/handlers"
	"github.com/tbourn/go-messenger-bot/internal/http/middleware"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// Deps are the collaborators RegisterRoutes mounts.
type Deps struct {
	Config  config.Config
	Admin   *handlers.Handlers
	Webhook *handlers.WebhookHandler
}

// RegisterRoutes installs the shared middleware chain and mounts the health,
// metrics, docs, webhook and admin routes on r.
//
// Chain, outermost first: tracing, request id, access log (redacting outside
// debug mode), panic recovery, body cap, metrics, CORS, security headers.
//
// The admin group is skipped entirely when no admin key is configured.
func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	r.HandleMethodNotAllowed = true
	r.Use(chain(cfg)...)

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if d.Webhook != nil {
		mountWebhook(r, cfg, d.Webhook)
	}
	if d.Admin != nil {
		mountAdmin(r, cfg, d.Admin)
	}
}

func chain(cfg config.Config) []gin.HandlerFunc {
	access := middleware.RedactingLogger(middleware.RedactOptions{})
	if cfg.GinMode == gin.DebugMode {
		access = middleware.Logger()
	}

	hs := []gin.HandlerFunc{
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		access,
		middleware.Recovery(),
		limitBody(maxBodyBytes),
		middleware.Metrics("/metrics", "/health"),
	}
	hs = append(hs, corsMiddleware(cfg.CORS.AllowedOrigins)...)
	return append(hs, middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))
}

// mountWebhook registers the Messenger callback: GET answers the subscription
// challenge, POST deliveries must carry a valid X-Hub-Signature-256.
func mountWebhook(r *gin.Engine, cfg config.Config, wh *handlers.WebhookHandler) {
	r.GET(cfg.WebhookPath, wh.Verify)
	r.POST(cfg.WebhookPath, middleware.HubSignature(cfg.Messenger.AppSecret), wh.Receive)
}

func mountAdmin(r *gin.Engine, cfg config.Config, h *handlers.Handlers) {
	if cfg.AdminAPIKey == "" {
		log.Warn().Msg("ADMIN_API_KEY not set; admin API disabled")
		return
	}
	limiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAPIKeyOrIP())

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		middleware.APIKey(cfg.AdminAPIKey),
		limiter.Handler(),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.NoStore(),
	)

	api.GET("/leads", h.ListLeads)
	api.GET("/conversations", h.ListConversations)
	api.GET("/conversations/:sender_id/messages", h.ListConversationMessages)
	api.GET("/replies", h.GetReplies)
	api.POST("/replies/resolve", h.ResolveReply)
}

// corsMiddleware allows any origin when origins is empty. Otherwise only
// listed origins are echoed back, with Vary: Origin.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.HeaderAPIKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag"},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// gin-contrib/cors only sets the header when the request has an Origin.
		star := func(c *gin.Context) {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{star, cors.New(base)}
	}

	base.AllowOrigins = origins
	echo := func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && slices.Contains(origins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Next()
	}
	return []gin.HandlerFunc{echo, cors.New(base)}
}

// limitBody wraps the request body in http.MaxBytesReader; reads past
// maxBytes fail, which surfaces as a 400 from the JSON binders.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix returns a route group at prefix; "" and "/" mean the root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if strings.Trim(prefix, "/") == "" {
		return r.Group("")
	}
	return r.Group(prefix)
}
