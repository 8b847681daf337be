package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sabo-arena-service/handlers"
	"sabo-arena-service/middleware"
	"sabo-arena-service/models"
	"sabo-arena-service/services"
	"sabo-arena-service/utils"
	"sabo-arena-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // 20MB — profile images only
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// CORS configuration for the mobile and web clients
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.ArenaUser{},
		&models.PlayerRanking{},
		&models.Challenge{},
		&models.Match{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("failed to connect to redis:", err)
	}

	clock := clockwork.NewRealClock()
	notifier := services.NewChangeNotifier(rdb, "challenge_changes")
	backend := services.NewGormBackend(db, clock)
	hub := services.NewChallengeHub(backend, clock)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial load of the working set; a failure here is not fatal — the
	// invalidation loop or the first sweep-triggering request refetches.
	if err := hub.Refresh(ctx); err != nil {
		log.Printf("⚠️  Initial challenge load failed: %v", err)
	}

	go hub.RunInvalidationLoop(ctx, notifier.Signals(ctx), 2*time.Second)

	sched, err := services.StartExpiryScheduler(hub, clock)
	if err != nil {
		log.Fatal("failed to start expiry scheduler:", err)
	}
	defer func() { _ = sched.Shutdown() }()

	challengeService := services.NewChallengeService(db, hub, backend, notifier, clock)
	challengeService.OnAccepted = func(res *services.AcceptResult) {
		log.Printf("🎱 Challenge %s accepted → match %s scheduled", res.Challenge.ID, res.MatchID)
	}
	profileService := services.NewProfileService(db)

	// --- Sync workers: profile mirror + ranking (points balance) mirror ---
	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("ARENA_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("ARENA_SERVICE_TOKEN environment variable not set")
	}

	userSyncWorker := workers.NewArenaUserSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)
	userSyncWorker.Start(ctx)

	rankingSyncClient := workers.NewRankingSyncClient(db)
	go workers.PollRankings(ctx, rankingSyncClient, 10*time.Second)

	handlers.SetupChallengeRoutes(app, challengeService)
	handlers.SetupProfileRoutes(app, profileService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Arena User Sync Worker running")
	log.Println("✅ Ranking polling running (every 10s)")
	log.Println("✅ Expiry sweeper scheduled")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
