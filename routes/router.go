package routes

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/photoshare/config"
	"github.com/cppla/photoshare/controllers"
	"github.com/cppla/photoshare/middleware"
	"github.com/cppla/photoshare/services"
	"github.com/cppla/photoshare/storage"
	"github.com/cppla/photoshare/utils"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Config config.AppConfig
	DB     *gorm.DB
	Host   storage.ImageHost
	Redis  *redis.Client // nil keeps revocations in memory
	Mailer services.ConfirmationSender
	Logger *zap.Logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	utils.RegisterValidators()

	r := gin.New()
	r.MaxMultipartMemory = int64(max(cfg.MaxUploadMB, 1)) << 20
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to the application logger
		r.Use(utils.RecoveryWithZap(d.Logger, false))
	}
	r.Use(middleware.RequestMetrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/images/*public_id", serveImage(d.Host))

	tokens := services.NewTokenService(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL, cfg.EmailTTL)
	authService := services.NewAuthService(d.DB, tokens, utils.NewTokenBlacklist(d.Redis), d.Mailer, d.Logger)
	userService := services.NewUserService(d.DB, d.Host, d.Logger)
	postService := services.NewPostService(d.DB, d.Host, d.Logger)
	commentService := services.NewCommentService(d.DB, d.Logger)

	authController := controllers.NewAuthController(authService, userService)
	profileController := controllers.NewProfileController(userService, cfg.MaxUploadMB)
	postController := controllers.NewPostController(postService, commentService, cfg.MaxUploadMB)
	commentController := controllers.NewCommentController(commentService)
	ratingController := controllers.NewRatingController(services.NewRatingService(d.DB))
	tagController := controllers.NewTagController(services.NewTagService(d.DB))
	statsController := controllers.NewStatsController(d.DB)

	authRequired := middleware.AuthRequired(authService)
	adminOnly := middleware.RequirePolicy(services.AdminOnly)
	moderators := middleware.RequirePolicy(services.AdminOrModerator)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	authGroup.POST("/signup", authController.Signup)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/refresh_token", authController.RefreshToken)
	authGroup.GET("/confirmed_email/:token", authController.ConfirmEmail)
	authGroup.POST("/request_email", authController.RequestEmail)
	authGroup.POST("/logout", authRequired, authController.Logout)
	authGroup.POST("/toggle_user_status/:user_id", authRequired, adminOnly, authController.ToggleUserStatus)

	profile := api.Group("/profile")
	profile.Use(authRequired)
	profile.GET("/me", profileController.Me)
	profile.PATCH("/avatar", profileController.UpdateAvatar)
	profile.PATCH("/update_role", adminOnly, profileController.UpdateRole)
	profile.GET("/:username", profileController.ByUsername)
	profile.PATCH("/:user_id", profileController.Update)
	profile.DELETE("/:user_id", moderators, profileController.Delete)

	// Public reads
	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/:id", postController.GetPost)
	api.GET("/posts/:id/comments", postController.ListComments)
	api.GET("/posts/:id/rating", ratingController.Average)
	api.GET("/posts/comments/:id", commentController.Get)
	api.GET("/tags", tagController.List)
	api.GET("/users/:id/posts", postController.ListUserPosts)
	api.GET("/stats", statsController.GetStats)

	protected := api.Group("")
	protected.Use(authRequired, middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	protected.POST("/posts", postController.CreatePost)
	protected.PATCH("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/transform", postController.Transform)
	protected.POST("/posts/:id/qr", postController.GenerateQR)
	protected.GET("/posts/:id/qr", postController.TransformedLinks)
	protected.POST("/posts/:id/rating", ratingController.Rate)
	protected.POST("/posts/comments", commentController.Create)
	protected.PATCH("/posts/comments/:id", commentController.Update)
	protected.DELETE("/posts/comments/:id", commentController.Delete)
	protected.DELETE("/ratings/:id", moderators, ratingController.Delete)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}

// serveImage streams an object from the image host, so the in-memory host has usable URLs.
func serveImage(host storage.ImageHost) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		publicID := strings.TrimPrefix(ctx.Param("public_id"), "/")
		rc, err := host.Open(ctx.Request.Context(), publicID)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				utils.Error(ctx, http.StatusNotFound, 40400, "image not found")
				return
			}
			utils.Error(ctx, http.StatusBadGateway, 50201, "image host unavailable")
			return
		}
		defer rc.Close()
		contentType := storage.ContentType(publicID)
		ctx.Header("X-Content-Type-Options", "nosniff")
		ctx.Header("Content-Security-Policy", "default-src 'none'; sandbox")
		if !storage.IsRaster(contentType) {
			ctx.Header("Content-Disposition", "attachment")
		}
		ctx.Header("Cache-Control", "public, max-age=86400")
		ctx.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
	}
}
