package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-circulation/internal/cache"
	"github.com/iliyamo/library-circulation/internal/config"
	"github.com/iliyamo/library-circulation/internal/database"
	"github.com/iliyamo/library-circulation/internal/handler"
	"github.com/iliyamo/library-circulation/internal/middleware"
	"github.com/iliyamo/library-circulation/internal/queue"
	"github.com/iliyamo/library-circulation/internal/repository"
	"github.com/iliyamo/library-circulation/internal/router"
	"github.com/iliyamo/library-circulation/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and availability cache disabled")
	}

	// Repositories.
	books := repository.NewBookRepo(db)
	copies := repository.NewCopyRepo(db, books)
	loanRepo := repository.NewLoanRepo(db)
	resRepo := repository.NewReservationRepo(db)
	repRepo := repository.NewReportRepo(db)
	patrons := repository.NewPatronRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	settings := repository.NewSettingsRepo(db)
	audit := repository.NewAuditRepo(db)

	// Services.
	receipts := queue.NewPublisher()
	avail := cache.NewAvailability(rdb, 5*time.Second)
	clock := service.SystemClock()
	loans := service.NewLoanService(db, loanRepo, copies, resRepo, patrons, settings, audit, receipts, avail, clock, cfg.LoanPeriodDays)
	reservations := service.NewReservationService(db, resRepo, books, patrons, copies, loans, audit, avail, clock, cfg.ReservationTTL)
	reports := service.NewReportService(db, repRepo, loanRepo, copies, books, settings, audit, receipts, avail, clock)
	inventory := service.NewInventoryService(db, books, copies, audit, avail)

	// Background receipt worker.
	go func() {
		if err := queue.StartReceiptConsumer(); err != nil {
			log.Printf("receipt consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, patrons), cfg.JWTSecret)
	router.RegisterCatalog(e, handler.NewCatalogHandler(inventory, avail), limiter, cfg.JWTSecret)
	router.RegisterCirculation(e,
		handler.NewReservationHandler(reservations, patrons),
		handler.NewLoanHandler(loans, patrons),
		handler.NewReportHandler(reports, patrons),
		handler.NewAdminHandler(settings, patrons, audit, loans, reservations),
		cfg.JWTSecret,
	)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
