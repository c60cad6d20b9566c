package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"anoa.com/classboard/internal/config"
	"anoa.com/classboard/internal/entity"
	"anoa.com/classboard/internal/gateway"
	"anoa.com/classboard/internal/middleware"
	"anoa.com/classboard/internal/scheduler"
	"anoa.com/classboard/internal/workspace"
	"anoa.com/classboard/pkg/kvstore"
	"anoa.com/classboard/pkg/storage"

	boardHttp "anoa.com/classboard/internal/modules/board/delivery/http"
	boardService "anoa.com/classboard/internal/modules/board/service"

	eventsHttp "anoa.com/classboard/internal/modules/events/delivery/http"
	eventsService "anoa.com/classboard/internal/modules/events/service"

	lunchHttp "anoa.com/classboard/internal/modules/lunch/delivery/http"
	lunchService "anoa.com/classboard/internal/modules/lunch/service"

	noticeHttp "anoa.com/classboard/internal/modules/notice/delivery/http"
	noticeService "anoa.com/classboard/internal/modules/notice/service"

	searchHttp "anoa.com/classboard/internal/modules/search/delivery/http"
	searchService "anoa.com/classboard/internal/modules/search/service"

	sessionHttp "anoa.com/classboard/internal/modules/session/delivery/http"
	sessionService "anoa.com/classboard/internal/modules/session/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const (
	sweepSchedule     = "@every 1m"
	// Weekday mornings, before the first lunch lookups.
	lunchWarmSchedule = "30 6 * * 1-5"
)

type Server struct {
	engine      *gin.Engine
	registry    *workspace.Registry
	jobs        *scheduler.Scheduler
	redisClient *redis.Client
}

// NewServer wires every module over store. redisClient may be nil; the
// submit cooldown and the lunch cache are then disabled and events stay
// inside this process.
func NewServer(cfg *config.Config, store kvstore.Store, redisClient *redis.Client) *Server {
	gw := gateway.New(cfg.GatewayURL, cfg.GatewayListStyle, cfg.GatewayTimeout)

	var hub eventsService.Hub
	if redisClient != nil {
		hub = eventsService.NewRedisHub(redisClient)
	} else {
		hub = eventsService.NewMemoryHub()
	}

	var backend searchService.Backend
	if cfg.MeiliSearchHost != "" {
		backend = searchService.NewMeiliBackend(cfg.MeiliSearchHost, cfg.MeiliMasterKey)
	} else {
		log.Println("[search] MEILISEARCH_HOST not set, search disabled")
	}
	searchSvc := searchService.NewSearchService(backend)

	var images storage.ImageStorage
	if cfg.CloudinaryURL != "" {
		var err error
		images, err = storage.NewCloudinaryStorage(cfg.CloudinaryURL, cfg.CloudinaryUploadFolder+"/notice")
		if err != nil {
			log.Fatalf("failed to initialize cloudinary storage: %v", err)
		}
	}
	noticeSvc := noticeService.NewNoticeService(store, images, hub, cfg.GalleryMaxImageBytes)

	lunchSvc := lunchService.NewLunchService(nil, redisClient, lunchService.Options{
		APIKey:     cfg.NeisAPIKey,
		OfficeCode: cfg.NeisOfficeCode,
		SchoolCode: cfg.NeisSchoolCode,
		CacheTTL:   cfg.LunchCacheTTL,
	})

	boardSvc := boardService.NewBoardService(gw, redisClient, hub, noticeSvc, cfg.RateLimitSubmit, cfg.GalleryMaxImageBytes)
	authSvc := sessionService.NewAuthService(gw)

	registry := workspace.NewRegistry(workspace.Deps{
		Store:   store,
		Fetcher: gw,
		OnLoaded: func(deviceID string, category entity.Category, items []entity.BoardItem) {
			go searchSvc.Index(context.Background(), category, items)
			publish(hub, deviceID, eventsService.Event{Type: eventsService.TypeBoardReloaded, Category: category.String()})
		},
		OnSessionChanged: func(deviceID string, _, _ entity.Session) {
			publish(hub, deviceID, eventsService.Event{Type: eventsService.TypeSessionChanged})
		},
	}, cfg.WorkspaceIdleTTL)

	jobs := scheduler.New(lunchService.Seoul, time.Minute)
	registerJobs(jobs, registry, lunchSvc)
	jobs.Start()

	sessionHandler := sessionHttp.NewSessionHandler(authSvc, boardSvc, registry)
	boardHandler := boardHttp.NewBoardHandler(boardSvc, registry, cfg.GalleryMaxImageBytes)
	searchHandler := searchHttp.NewSearchHandler(searchSvc, registry)
	lunchHandler := lunchHttp.NewLunchHandler(lunchSvc)
	noticeHandler := noticeHttp.NewNoticeHandler(noticeSvc, registry)
	eventsHandler := eventsHttp.NewEventsHandler(hub, cfg.AllowedOrigins)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	deviceMiddleware := middleware.NewDeviceMiddleware(cfg.DeviceTokenSecret, cfg.DeviceTokenTTL, cfg.IsProduction())

	api := router.Group("/api")
	api.Use(deviceMiddleware.Identify())
	{
		auth := api.Group("/auth")
		auth.POST("/login", sessionHandler.Login)
		auth.POST("/signup", sessionHandler.Signup)
		auth.POST("/logout", sessionHandler.Logout)

		api.GET("/session", sessionHandler.GetSession)

		boards := api.Group("/boards/:category")
		boards.GET("", boardHandler.Navigate)
		boards.GET("/more", boardHandler.RevealMore)
		boards.POST("", boardHandler.Submit)
		boards.POST("/reload", boardHandler.Reload)
		boards.GET("/items/:index", boardHandler.Detail)

		api.GET("/search", searchHandler.Search)
		api.GET("/lunch", lunchHandler.GetMenu)

		api.GET("/notice/profile-image", noticeHandler.GetProfileImage)
		api.POST("/notice/profile-image", noticeHandler.UploadProfileImage)

		api.GET("/events/ws", eventsHandler.HandleWebSocket)
	}

	return &Server{
		engine:      router,
		registry:    registry,
		jobs:        jobs,
		redisClient: redisClient,
	}
}

func (s *Server) Run(addr string) error {
	defer s.jobs.Stop()
	return s.engine.Run(addr)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func registerJobs(jobs *scheduler.Scheduler, registry *workspace.Registry, lunchSvc lunchService.LunchService) {
	sweep := scheduler.NewJob("workspace-sweep", sweepSchedule, func(context.Context) error {
		if n := registry.Sweep(); n > 0 {
			log.Printf("🧹 Evicted %d idle workspaces", n)
		}
		return nil
	})
	warm := scheduler.NewJob("lunch-warmup", lunchWarmSchedule, func(ctx context.Context) error {
		_, err := lunchSvc.Menu(ctx, "")
		return err
	})
	for _, job := range []scheduler.Job{sweep, warm} {
		if err := jobs.Register(job); err != nil {
			log.Printf("⚠️ %v", err)
		}
	}
}

func publish(hub eventsService.Hub, deviceID string, ev eventsService.Event) {
	if err := hub.Publish(context.Background(), deviceID, ev); err != nil {
		log.Printf("[events] publish %s to %s: %v", ev.Type, deviceID, err)
	}
}

func setupCORS(router *gin.Engine, origins []string) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", middleware.DeviceTokenHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
