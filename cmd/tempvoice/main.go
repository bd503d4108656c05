package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rx3lixir/tempvoice/internal/admin"
	"github.com/rx3lixir/tempvoice/internal/archive"
	"github.com/rx3lixir/tempvoice/internal/auth"
	"github.com/rx3lixir/tempvoice/internal/config"
	"github.com/rx3lixir/tempvoice/internal/cooldown"
	"github.com/rx3lixir/tempvoice/internal/discord"
	"github.com/rx3lixir/tempvoice/internal/moderation"
	"github.com/rx3lixir/tempvoice/internal/reconcile"
	"github.com/rx3lixir/tempvoice/internal/room"
	"github.com/rx3lixir/tempvoice/internal/schedule"
	"github.com/rx3lixir/tempvoice/internal/server"
	"github.com/rx3lixir/tempvoice/internal/storage/postgres"
	"github.com/rx3lixir/tempvoice/internal/storage/s3"
	"github.com/rx3lixir/tempvoice/internal/websocket"
	"github.com/rx3lixir/tempvoice/pkg/logger"
	"github.com/rx3lixir/tempvoice/pkg/password"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "internal/config/config.yaml", "path to the yaml config")
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before the config, missing file is fine")
	hashPassword := pflag.String("hash-password", "", "print a bcrypt hash for admin_params.password_hash and exit")
	pflag.Parse()

	if *hashPassword != "" {
		hash, err := password.Hash(*hashPassword)
		if err != nil {
			fmt.Printf("Error hashing password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	// Values from .env end up as APP_* variables that viper picks up
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Error loading env file: %v\n", err)
		os.Exit(1)
	}

	// Initializing and validating config
	cm, err := config.NewConfigManager(*configPath)
	if err != nil {
		fmt.Printf("Error getting config file: %v\n", err)
		os.Exit(1)
	}
	c := cm.GetConfig()
	if err := c.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initializing logger
	log := logger.Must(logger.New(logger.Config{
		Env:       c.GeneralParams.Env,
		Level:     c.GeneralParams.LogLevel,
		AddSource: false,
	}))

	log.Info(
		"Config loaded successfully!",
		"env", c.GeneralParams.Env,
		"http_server_address", c.HttpServerParams.GetAddress(),
		"database", c.MainDBParams.Name,
		"text_channels", c.DiscordParams.TextChannels,
		"access_roles", c.DiscordParams.AccessRoles,
	)

	// Global context with cancel
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Creating database connection and making sure the tables exist
	pool, err := postgres.NewPool(ctx, c.MainDBParams.GetDSN(), c.MainDBParams.MaxConns)
	if err != nil {
		log.Error(
			"Failed to create postgres pool",
			"error", err,
			"db", c.MainDBParams.Name,
		)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Error("Failed to prepare database schema", "error", err)
		os.Exit(1)
	}

	log.Info("Database connection established", "db", c.MainDBParams.Name)

	roomStore := room.NewPostgresStore(pool)
	settingsStore := moderation.NewPostgresStore(pool)
	sessionStore := schedule.NewPostgresStore(pool)

	// Optional session archive in object storage
	var (
		roomArchive  room.Archiver
		adminArchive admin.ArchiveReader
	)
	if c.S3Params.Enabled {
		client, err := s3.Connect(ctx, s3.Config{
			Endpoint:  c.S3Params.Endpoint,
			AccessKey: c.S3Params.AccessKeyID,
			SecretKey: c.S3Params.SecretAccessKey,
			Bucket:    c.S3Params.BucketName,
			Region:    c.S3Params.Region,
			UseSSL:    c.S3Params.UseSSL,
		})
		if err != nil {
			log.Error("Failed to connect to object storage", "error", err)
			os.Exit(1)
		}
		a := archive.NewMinIOArchive(client, c.S3Params.BucketName)
		roomArchive, adminArchive = a, a

		log.Info("Session archive enabled", "bucket", c.S3Params.BucketName)
	}

	// Redis backs both the command cooldown and the reconcile queue
	var (
		redisClient *redis.Client
		limiter     discord.Cooldown
	)
	if c.NeedsRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     c.RedisParams.Addr,
			Password: c.RedisParams.Password,
			DB:       c.RedisParams.DB,
		})
		defer redisClient.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			log.Error("Failed to reach redis", "error", err, "addr", c.RedisParams.Addr)
			os.Exit(1)
		}
	}
	if c.CooldownParams.Enabled {
		l, err := cooldown.NewLimiter(redisClient, c.CooldownParams.MaxCommands, c.CooldownParams.Window)
		if err != nil {
			log.Error("Failed to create command cooldown", "error", err)
			os.Exit(1)
		}
		limiter = l
	}

	// Discord session, platform adapter and the room manager
	session, err := discordgo.New("Bot " + c.DiscordParams.Token)
	if err != nil {
		log.Error("Failed to create discord session", "error", err)
		os.Exit(1)
	}

	wsManager := websocket.NewManager(c.HttpServerParams.AllowedOrigins, log.Component("websocket"))

	manager := room.NewManager(room.Deps{
		Store:      roomStore,
		Platform:   discord.NewPlatform(session),
		Moderators: moderation.NewResolver(settingsStore, c.DiscordParams.DefaultModeratorRole),
		Attendees:  sessionStore,
		Archive:    roomArchive,
		Notifier:   wsManager,
		Names:      room.NewNameAllocator(roomStore, nil),
		Log:        log.Component("rooms"),
	}, room.Options{
		TextChannels:   c.DiscordParams.TextChannels,
		AccessRoles:    c.DiscordParams.AccessRoles,
		SupportHint:    c.DiscordParams.SupportHint,
		ReconcileGrace: c.ReconcileParams.Grace,
	})

	bot := discord.NewBot(session, manager, limiter, discord.BotConfig{
		Prefix:       c.DiscordParams.CommandPrefix,
		EventTimeout: c.DiscordParams.EventTimeout,
	}, log.Component("discord"))

	if err := bot.Open(); err != nil {
		log.Error("Failed to connect to discord gateway", "error", err)
		os.Exit(1)
	}

	// Periodic sweep for rooms whose leave events were lost
	var worker *reconcile.Worker
	if c.ReconcileParams.Enabled {
		worker = reconcile.NewWorker(asynq.RedisClientOpt{
			Addr:     c.RedisParams.Addr,
			Password: c.RedisParams.Password,
			DB:       c.RedisParams.DB,
		}, manager, reconcile.Config{
			Interval: c.ReconcileParams.Interval,
			Timeout:  c.ReconcileParams.Timeout,
		}, log.Component("reconcile"))

		if err := worker.Start(); err != nil {
			log.Error("Failed to start reconcile worker", "error", err)
			os.Exit(1)
		}
	}

	// Admin API
	authService := auth.NewService(
		c.GeneralParams.SecretKey,
		c.AdminParams.TokenTTL,
		c.AdminParams.Username,
		c.AdminParams.PasswordHash,
	)
	if c.AdminParams.PasswordHash == "" {
		log.Warn("admin password hash is empty, admin login is disabled")
	}

	router := server.NewRouter(server.RouterConfig{
		AdminHandler: admin.NewHandler(admin.Deps{
			Rooms:    manager,
			Settings: settingsStore,
			Sessions: sessionStore,
			Archive:  adminArchive,
			Auth:     authService,
		}, log.Component("admin"), time.Duration(c.MainDBParams.Timeout)*time.Second),
		WSHandler:   websocket.NewHandler(wsManager, authService, log.Component("websocket")),
		WSManager:   wsManager,
		AuthService: authService,
		Log:         log.Component("http"),
	})

	HTTPserver := server.New(c.HttpServerParams.GetAddress(), router, log.Component("http"))

	serverErrors := make(chan error, 1)

	go func() {
		serverErrors <- HTTPserver.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we recieve a signal or error
	exitCode := 0
	select {
	case err := <-serverErrors:
		log.Error("Server error", "error", err)
		exitCode = 1

	case sig := <-shutdown:
		log.Info("Shutdown signal received", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// Stop taking new events first, then let in-flight handlers finish
	if err := bot.Close(shutdownCtx); err != nil {
		log.Error("Discord shutdown failed", "error", err)
	}

	if worker != nil {
		worker.Shutdown()
	}

	log.Info("Shutting down HTTP server...")
	if err := HTTPserver.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
	wsManager.Shutdown()

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
