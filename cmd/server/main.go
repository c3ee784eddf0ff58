package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/kopainglay2025/relay/internal/admin"
	"github.com/kopainglay2025/relay/internal/broadcast"
	"github.com/kopainglay2025/relay/internal/channel"
	"github.com/kopainglay2025/relay/internal/config"
	"github.com/kopainglay2025/relay/internal/conversation"
	"github.com/kopainglay2025/relay/internal/db"
	myMiddleware "github.com/kopainglay2025/relay/internal/middleware"
	"github.com/kopainglay2025/relay/internal/notify"
	"github.com/kopainglay2025/relay/internal/webhook"
)

func main() {
	// 1. Config & Flags
	configPath := flag.String("config", "config.toml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database (Platform Layer)
	database, err := db.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("❌ Failed to connect to DB: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database Schema Initialized")

	// 3. Connect to Redis (optional; required for multi-instance fan-out)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		log.Println("✅ Connected to Redis")
	} else {
		log.Println("⚠️ No Redis configured; live notifications are single-instance only")
	}

	// 4. Notification Bus
	hub := notify.NewHub(redisClient)
	go hub.Run()
	go hub.SubscribeToRedis(ctx)

	var bus notify.Publisher = hub
	if cfg.AMQP.URL != "" {
		conn, err := notify.DialWithRetry(ctx, cfg.AMQP.URL, 5, time.Second)
		if err != nil {
			log.Fatalf("❌ Failed to connect to AMQP: %v", err)
		}
		amqpPub, err := notify.NewAMQPPublisher(conn, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatalf("❌ Failed to declare AMQP exchange: %v", err)
		}
		defer amqpPub.Close()
		bus = notify.Fanout{hub, amqpPub}
		log.Println("✅ Mirroring events to AMQP exchange", cfg.AMQP.Exchange)
	}

	// 5. Channel Connectors
	var connectors []channel.Connector
	if cfg.Telegram.Token != "" {
		connectors = append(connectors, channel.NewTelegramConnector(cfg.Telegram.Token))
	}
	if cfg.Facebook.PageToken != "" {
		connectors = append(connectors, channel.NewFacebookConnector(cfg.Facebook.PageToken, cfg.Facebook.VerifyToken))
	}
	if cfg.Viber.Token != "" {
		connectors = append(connectors, channel.NewViberConnector(cfg.Viber.Token, cfg.Viber.SenderName))
	}
	if cfg.WhatsApp.Token != "" {
		connectors = append(connectors, channel.NewWhatsAppConnector(cfg.WhatsApp.Token, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.VerifyToken))
	}
	registry := channel.NewRegistry(connectors...)
	log.Printf("✅ Registered connectors: %v", registry.Channels())

	// 6. Engines
	convRepo := conversation.NewRepository(database.Conn)
	engine := conversation.NewEngine(convRepo, bus)
	dispatcher := conversation.NewDispatcher(convRepo, registry, bus, cfg.SendTimeout())

	// 7. Broadcast Coordinator
	jobRepo := broadcast.NewRepository(database.Conn)
	coordinator := broadcast.NewCoordinator(ctx, jobRepo, convRepo, dispatcher, cfg.BroadcastDelay())

	// 8. Admin Auth
	adminRepo := admin.NewRepository(database.Conn)
	adminService := admin.NewService(adminRepo, cfg.Auth.JWTSecret)
	if err := adminService.Bootstrap(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("❌ Admin bootstrap failed: %v", err)
	}
	adminHandler := admin.NewHandler(adminService)
	authMiddleware := myMiddleware.NewAuthMiddleware(adminService)

	// 9. Handlers & Routes
	convHandler := conversation.NewHandler(convRepo, dispatcher)
	broadcastHandler := broadcast.NewHandler(coordinator)
	webhookHandler := webhook.NewHandler(registry, engine, dispatcher, cfg.Relay.WelcomeText)
	wsHandler := notify.NewHandler(hub)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public Routes
	r.Post("/login", adminHandler.Login)
	r.Get("/webhook/{channel}", webhookHandler.Verify)
	r.Post("/webhook/{channel}", webhookHandler.Receive)

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		// WebSocket (Real-time)
		r.Get("/ws", wsHandler.ServeWS)

		r.Get("/api/chats", convHandler.ListChats)
		r.Get("/api/chats/{id}/history", convHandler.GetHistory)
		r.Post("/api/chats/{id}/reply", convHandler.Reply)
		r.Put("/api/chats/{id}/read", convHandler.MarkRead)

		r.Post("/api/broadcast", broadcastHandler.Start)
		r.Get("/api/broadcast/{id}", broadcastHandler.Get)
	})

	server := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("🚀 Relay starting on %s", cfg.Server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Println("✅ Shutdown complete")
}
