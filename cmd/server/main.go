package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/prize-competition/internal/allocator"
	"github.com/iliyamo/prize-competition/internal/clock"
	"github.com/iliyamo/prize-competition/internal/config"
	"github.com/iliyamo/prize-competition/internal/database"
	"github.com/iliyamo/prize-competition/internal/handler"
	"github.com/iliyamo/prize-competition/internal/lock"
	"github.com/iliyamo/prize-competition/internal/queue"
	"github.com/iliyamo/prize-competition/internal/quiz"
	"github.com/iliyamo/prize-competition/internal/ratelimit"
	"github.com/iliyamo/prize-competition/internal/repository"
	"github.com/iliyamo/prize-competition/internal/router"
	"github.com/iliyamo/prize-competition/internal/store"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	clk := clock.NewReal()

	// The key-value backend is chosen once at startup; everything above
	// the store interface is backend-agnostic.
	var kv store.Store
	switch cfg.StoreBackend {
	case "memory":
		kv = store.NewMemory(clk)
		log.Printf("store: using in-memory backend (single instance only)")
	default:
		client, err := config.NewRedisClient()
		if err != nil {
			log.Fatalf("store: %v", err)
		}
		kv = store.NewRedis(client)
	}

	users := repository.NewUserRepo(db)
	competitions := repository.NewCompetitionRepo(db)
	orders := repository.NewOrderRepo(db)
	contacts := repository.NewContactRepo(db)

	locks := lock.NewManager(kv, clk, cfg.ReservationTTL)
	tracker := quiz.NewTracker(kv, clk, cfg.QuizMaxAttempts, cfg.QuizLockout, cfg.QuizPassedTTL)
	limiter := ratelimit.NewLimiter(kv, clk, config.LoadRateLimitBuckets())
	alloc := allocator.New(orders, locks)

	authHandler := handler.NewAuthHandler(cfg, users, kv)
	publicHandler := handler.NewPublicHandler(competitions)
	reservationHandler := handler.NewReservationHandler(locks, alloc, competitions)
	questionHandler := handler.NewQuestionHandler(tracker, competitions)
	checkoutHandler := handler.NewCheckoutHandler(locks, tracker, competitions, orders)
	contactHandler := handler.NewContactHandler(contacts)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, limiter, cfg.JWTSecret)
	router.RegisterPublic(e, publicHandler, limiter, kv)
	router.RegisterCompetition(e, reservationHandler, questionHandler, checkoutHandler, limiter, cfg.JWTSecret)
	router.RegisterContact(e, contactHandler, limiter)

	// Order events are consumed in the background; the loop reconnects
	// on its own and never takes the server down.
	go func() {
		if err := queue.StartOrderConsumer(); err != nil {
			log.Printf("order consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
