package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sectbot/handlers"
	"sectbot/internal/discord"
	"sectbot/internal/rank"
	"sectbot/internal/workers"
	"sectbot/middleware"
	"sectbot/services"
)

const (
	viewMaxAge      = 24 * time.Hour
	cooldownIdleAge = 30 * time.Minute
	janitorPeriod   = 10 * time.Minute
)

var (
	dbPool        *pgxpool.Pool
	ledgerService *services.LedgerService
	feedHub       *services.FeedHub
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to database")

	ledgerService = services.NewLedgerService(dbPool)
	if err := ledgerService.CreateTables(ctx); err != nil {
		log.Fatal("Failed to create tables:", err)
	}

	feedHub = services.NewFeedHub()

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		log.Fatal("DISCORD_TOKEN environment variable is not set")
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		log.Fatal("Failed to create Discord session:", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	dg.StateEnabled = true

	session := discord.NewSession(dg)
	dispatcher := discord.NewDispatcher(dg)
	resolver := rank.NewResolver(rank.DefaultConfig())

	viewRegistry := services.NewViewRegistry(ledgerService, session, resolver)
	viewRegistry.AddListener(feedHub)
	go feedHub.Run()

	rewardManager := services.NewRoleRewardManager(ledgerService, session, viewRegistry)
	rewardManager.OnDistribute(func(guildID int64, members int, awarded int64) {
		middleware.CountRewardDistribution()
	})

	notifier := services.NewPromotionNotifier(ledgerService, session, resolver)
	cooldown := middleware.NewCommandCooldown(3*time.Second, 3)

	handlers.NewLeaderboardHandler(ledgerService, viewRegistry, session, resolver, cooldown).Register(dispatcher)
	handlers.NewPointsHandler(ledgerService, viewRegistry, session, resolver, feedHub).Register(dispatcher)
	handlers.NewConfigHandler(ledgerService, rewardManager, session).Register(dispatcher)
	handlers.NewEventHandler(ledgerService, viewRegistry, rewardManager, notifier, session).Register(dispatcher)

	if err := dg.Open(); err != nil {
		log.Fatal("Failed to open Discord gateway:", err)
	}
	log.Println("Discord gateway connected")

	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	defer janitorCancel()
	go janitor(janitorCtx, viewRegistry, cooldown)
	workers.StartCleanupWorker(janitorCtx, ledgerService, time.Hour, 90*24*time.Hour)

	statusHandler := handlers.NewStatusHandler(dbPool, viewRegistry, feedHub)

	r := mux.NewRouter()

	r.HandleFunc("/feed/ws", feedHub.ServeWS)

	standardRouter := r.PathPrefix("/").Subrouter()

	rateLimiter := middleware.NewRateLimiter(5, 30)
	go rateLimiter.CleanupVisitors(janitorCtx)

	standardRouter.Use(rateLimiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	standardRouter.HandleFunc("/", statusHandler.Root).Methods("GET")
	standardRouter.HandleFunc("/status", statusHandler.Status).Methods("GET")
	standardRouter.HandleFunc("/health", statusHandler.Health).Methods("GET")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting status server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	rewardManager.StopAll()
	log.Println("Reward schedules stopped")

	if err := dg.Close(); err != nil {
		log.Printf("Discord gateway close error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}

// janitor prunes stale leaderboard views and idle cooldown entries.
func janitor(ctx context.Context, views *services.ViewRegistry, cooldown *middleware.CommandCooldown) {
	ticker := time.NewTicker(janitorPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := views.PruneOlderThan(viewMaxAge); n > 0 {
				log.Printf("Pruned %d stale leaderboard views", n)
			}
			if n := cooldown.Cleanup(cooldownIdleAge); n > 0 {
				log.Printf("Evicted %d idle cooldown entries", n)
			}
		}
	}
}
