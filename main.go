package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"meme-vote-system/handlers"
	"meme-vote-system/middleware"
	"meme-vote-system/models"
	"meme-vote-system/services"
	"meme-vote-system/utils"
	"meme-vote-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB, JSON API only
	})

	// 🔐 GLOBAL: Only Gateway requests allowed, no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Wallet-Address",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	// TranslateError lets the duplicate-vote guard see unique violations as
	// gorm.ErrDuplicatedKey regardless of driver
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Meme{},
		&models.Vote{},
		&models.User{},
		&models.VotingPeriod{},
		&models.LotteryDraw{},
		&models.LotteryParticipant{},
		&models.MintIntent{},
		&models.SchedulerLog{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	providerURL := os.Getenv("CONTENT_PROVIDER_URL")
	if providerURL == "" {
		log.Fatal("CONTENT_PROVIDER_URL environment variable not set")
	}
	providerKey := os.Getenv("CONTENT_PROVIDER_API_KEY")
	if providerKey == "" {
		log.Fatal("CONTENT_PROVIDER_API_KEY environment variable not set")
	}

	clock := clockwork.NewRealClock()
	contentClient := services.NewContentClient(providerURL, providerKey)

	ticketService := services.NewTicketService(db, clock)
	rarityService := services.NewRarityService(db, clock)
	voteService := services.NewVoteService(db, ticketService, rarityService, clock)
	lotteryService := services.NewLotteryService(db, clock, services.ResetScope(os.Getenv("LOTTERY_RESET_SCOPE")))

	orchestrator := services.NewOrchestrator(db, contentClient, utils.UploadImageToR2, rarityService, clock)
	if n, err := strconv.Atoi(os.Getenv("MEME_COUNT")); err == nil && n > 0 {
		orchestrator.MemeCount = n
	}
	if d, err := time.ParseDuration(os.Getenv("MEME_GENERATION_DELAY")); err == nil && d > 0 {
		orchestrator.GenerationDelay = d
	}

	supervisor := services.NewSupervisor(db, orchestrator, lotteryService, clock)
	if err := supervisor.Start(); err != nil {
		log.Fatal("failed to start scheduler:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repairWorker := workers.NewRarityRepairWorker(rarityService, 10*time.Minute)
	repairWorker.Start(ctx)

	handlers.SetupVoteRoutes(app, voteService)
	handlers.SetupSchedulerRoutes(app, supervisor)
	handlers.SetupLotteryRoutes(app, lotteryService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Daily cycle scheduler running (UTC)")
	log.Println("✅ Rarity repair worker running (every 10m)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := supervisor.Stop(); err != nil {
		log.Printf("scheduler shutdown error: %v", err)
	}
}
