package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"canvas-backend/internal/auth"
	"canvas-backend/internal/canvas"
	"canvas-backend/internal/config"
	"canvas-backend/internal/directory"
	"canvas-backend/internal/handler"
	"canvas-backend/internal/presence"
	"canvas-backend/internal/storage"
	"canvas-backend/internal/tools"
)

// Server Fiber 서버 래퍼
type Server struct {
	app *fiber.App
	cfg *config.Config
	db  *gorm.DB

	hub    *canvas.Hub
	mirror *presence.Mirror

	authHandler     *handler.AuthHandler
	roomHandler     *handler.RoomHandler
	versionHandler  *handler.VersionHandler
	toolsHandler    *handler.ToolsHandler
	healthHandler   *handler.HealthHandler
	canvasWSHandler *handler.CanvasWSHandler
	jwtManager      *auth.JWTManager

	cleanupCancel context.CancelFunc
}

// New 새 서버 인스턴스 생성
func New(cfg *config.Config, db *gorm.DB) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Canvas Session Coordinator",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             10 * 1024 * 1024, // 10MB
		DisableStartupMessage: false,
	})

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	dir := directory.NewService(db)

	// Redis 프레즌스 미러 (선택적)
	var mirror *presence.Mirror
	if cfg.Redis.Enabled {
		var err error
		mirror, err = presence.NewMirror(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("⚠️ Redis mirror initialization failed: %v (presence mirroring disabled)", err)
			mirror = nil
		}
	} else {
		log.Println("ℹ️ Redis presence mirror not enabled")
	}

	hub := canvas.NewHub(dir, mirror)

	// S3 서비스 초기화 (선택적)
	var s3Service *storage.S3Service
	if cfg.S3.BucketName != "" && cfg.S3.AccessKeyID != "" {
		var err error
		s3Service, err = storage.NewS3Service(context.Background(), cfg.S3)
		if err != nil {
			log.Printf("⚠️ S3 service initialization failed: %v (PDF upload will be disabled)", err)
		} else {
			log.Printf("✅ S3 service initialized (bucket: %s)", cfg.S3.BucketName)
		}
	} else {
		log.Println("ℹ️ S3 service not configured (PDF upload will be disabled)")
	}

	toolsClient := tools.NewClient(cfg.Tools)

	return &Server{
		app:             app,
		cfg:             cfg,
		db:              db,
		hub:             hub,
		mirror:          mirror,
		authHandler:     handler.NewAuthHandler(dir, jwtManager, cfg.Auth.TokenExpiry, cfg.Auth.SecureCookie),
		roomHandler:     handler.NewRoomHandler(dir, hub),
		versionHandler:  handler.NewVersionHandler(dir),
		toolsHandler:    handler.NewToolsHandler(toolsClient, s3Service),
		healthHandler:   handler.NewHealthHandler(db, mirror),
		canvasWSHandler: handler.NewCanvasWSHandler(hub, cfg.WebSocket.WriteTimeout),
		jwtManager:      jwtManager,
	}
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Asia/Seoul",
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 헬스체크 엔드포인트
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	// Rate Limiter 설정 (인증 엔드포인트용 - Brute Force 방지)
	authLimiter := limiter.New(limiter.Config{
		Max:        10,              // 최대 10회
		Expiration: 1 * time.Minute, // 1분당
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	// Auth 라우트 그룹
	authGroup := s.app.Group("/auth")
	authGroup.Post("/register", authLimiter, s.authHandler.Register)
	authGroup.Post("/login", authLimiter, s.authHandler.Login)
	authGroup.Post("/logout", auth.AuthMiddleware(s.jwtManager), s.authHandler.Logout)
	authGroup.Get("/me", auth.AuthMiddleware(s.jwtManager), s.authHandler.Me)

	// Room 라우트 그룹 (인증 필요)
	roomGroup := s.app.Group("/api/rooms", auth.AuthMiddleware(s.jwtManager))
	roomGroup.Get("", s.roomHandler.ListRooms)
	roomGroup.Post("/create", s.roomHandler.CreateRoom)
	roomGroup.Get("/:roomId", s.roomHandler.GetRoom)
	roomGroup.Delete("/:roomId", s.roomHandler.DeleteRoom)
	roomGroup.Post("/:roomId/join", s.roomHandler.JoinRoom)
	roomGroup.Post("/:roomId/leave", s.roomHandler.LeaveRoom)
	roomGroup.Get("/:roomId/members", s.roomHandler.GetRoomMembers)

	// Canvas version 라우트 (인증 필요)
	canvasGroup := s.app.Group("/api/canvas", auth.AuthMiddleware(s.jwtManager))
	canvasGroup.Get("/versions/:versionId", s.versionHandler.GetVersion)
	canvasGroup.Delete("/versions/:versionId", s.versionHandler.DeleteVersion)
	canvasGroup.Get("/:roomId/versions", s.versionHandler.ListVersions)

	// Tools 라우트 (인증 필요) - 문서 배치 작업 + 업로드 presign
	toolsGroup := s.app.Group("/api/tools", auth.AuthMiddleware(s.jwtManager))
	toolsGroup.Post("/upload-pdf/presign", s.toolsHandler.PresignUpload)
	toolsGroup.Post("/scrape", s.toolsHandler.Scrape)
	toolsGroup.Post("/questions", s.toolsHandler.GenerateQuestions)
	toolsGroup.Post("/summarize", s.toolsHandler.Summarize)

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket 캔버스 세션 엔드포인트
	s.app.Get("/ws/canvas", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		// 토큰은 쿼리 파라미터 또는 쿠키에서
		token := c.Query("token")
		if token == "" {
			token = c.Cookies("access_token")
		}
		if token == "" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		claims, err := s.jwtManager.ValidateToken(token)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		c.Locals("username", claims.Username)
		c.Locals("userID", claims.UserID)
		c.Locals("connID", uuid.NewString())

		return c.Next()
	}, websocket.New(s.canvasWSHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:   s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  s.cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout: s.cfg.WebSocket.HandshakeTimeout,
	}))
}

// StartCleanup 유휴 세션/만료 요청 정리 루프 시작
func (s *Server) StartCleanup() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cleanupCancel = cancel

	go s.hub.RunCleanup(ctx,
		s.cfg.Session.CleanupInterval,
		s.cfg.Session.RoomIdleTTL,
		s.cfg.Session.PendingJoinTTL,
	)
	log.Printf("🧹 Session cleanup running every %s (idle TTL %s, pending TTL %s)",
		s.cfg.Session.CleanupInterval, s.cfg.Session.RoomIdleTTL, s.cfg.Session.PendingJoinTTL)
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Fatalf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Canvas Session Coordinator starting on %s", s.cfg.Server.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost%s/ws/canvas", s.cfg.Server.Port)

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	if s.cleanupCancel != nil {
		s.cleanupCancel()
	}
	if s.mirror != nil {
		s.mirror.Close()
	}
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
