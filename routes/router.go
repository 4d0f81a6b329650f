package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yatube-project/yatube/config"
	"github.com/yatube-project/yatube/controllers"
	"github.com/yatube-project/yatube/middleware"
	"github.com/yatube-project/yatube/utils"
)

// indexCacheKey identifies the single cached page: the home feed.
const indexCacheKey = "cache:page:index"

// SetupRouter wires routes, middlewares, and controllers. The pageCache
// backs the time-bounded home page cache.
func SetupRouter(db *gorm.DB, pageCache utils.ByteCache) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
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

	// Record PV after each request
	r.Use(middleware.PageViewRecorder(db))

	r.LoadHTMLGlob(cfg.TemplatesGlob)
	r.Static("/static", "./static")

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	feedController := controllers.NewFeedController(db)
	postController := controllers.NewPostController(db)
	followController := controllers.NewFollowController(db)
	authController := controllers.NewAuthController(db)
	statsController := controllers.NewStatsController(db)

	indexTTL := time.Duration(cfg.IndexCacheSeconds) * time.Second
	r.GET("/",
		middleware.CachePage(pageCache, indexCacheKey, indexTTL),
		middleware.CurrentUser(),
		feedController.Index,
	)

	public := r.Group("", middleware.CurrentUser())
	public.GET("/group/:slug/", feedController.GroupPosts)
	public.GET("/profile/:username/", feedController.Profile)
	public.GET("/posts/:id/", feedController.PostDetail)

	protected := r.Group("", middleware.LoginRequired())
	protected.GET("/create/", postController.CreatePostPage)
	protected.POST("/create/", postController.CreatePost)
	protected.GET("/posts/:id/edit/", postController.EditPostPage)
	protected.POST("/posts/:id/edit/", postController.EditPost)
	protected.POST("/posts/:id/comment/", postController.AddComment)
	protected.GET("/follow/", followController.FollowIndex)
	protected.GET("/profile/:username/follow/", followController.ProfileFollow)
	protected.GET("/profile/:username/unfollow/", followController.ProfileUnfollow)

	authGroup := r.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.GET("/signup/", authController.SignupPage)
	authGroup.POST("/signup/", authController.Signup)
	authGroup.GET("/login/", authController.LoginPage)
	authGroup.POST("/login/", authController.Login)
	authGroup.GET("/logout/", authController.Logout)
	authGroup.GET("/oauth/:provider/login/", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback/", authController.OAuthCallback)

	r.GET("/stats", statsController.GetStats)

	r.NoRoute(func(ctx *gin.Context) {
		ctx.HTML(http.StatusNotFound, "404.html", gin.H{"Title": "Page not found"})
	})

	return r
}
