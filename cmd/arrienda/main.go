package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	authsvc "arrienda/internal/app/services/auth"
	chatsvc "arrienda/internal/app/services/chat"
	"arrienda/internal/domain/property"
	"arrienda/internal/inbox"
	"arrienda/internal/infra/broker/kafka"
	"arrienda/internal/infra/config"
	ginserver "arrienda/internal/infra/http/gin"
	"arrienda/internal/infra/obs"
	redispresence "arrienda/internal/infra/presence/redis"
	"arrienda/internal/infra/security"
	"arrienda/internal/infra/storage/memory"
	mongostore "arrienda/internal/infra/storage/mongo"
	"arrienda/internal/infra/storage/s3"
	"arrienda/internal/infra/storage/scylla"
	"arrienda/internal/notify"
	"arrienda/internal/realtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	scyllaSession, err := scylla.NewSession(cfg, logger)
	if err != nil {
		logger.Error("scylla connect failed", "error", err)
		os.Exit(1)
	}
	defer scyllaSession.Close()
	store := scylla.NewStore(scyllaSession, logger)

	mongoClient, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connect failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Close(closeCtx)
	}()
	profiles := mongostore.NewProfileStore(mongoClient.DB)

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		logger.Error("kafka producer init failed", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	var tracker *redispresence.Tracker
	if redisClient, err := redispresence.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
		logger.Warn("redis unavailable, presence disabled", "error", err)
	} else {
		defer redisClient.Close()
		tracker = redispresence.NewTracker(redisClient, cfg.OnlineWindow)
	}

	var uploader s3.Uploader = s3.NoopUploader{}
	if client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicEndpoint, logger); err != nil {
		logger.Warn("s3 unavailable, attachments disabled", "error", err)
	} else {
		uploader = client
	}

	userRepo := memory.NewUserRepository()
	sessionStore := memory.NewSessionStore()
	propertyRepo := memory.NewPropertyRepository()

	fixturesPath := getenv("PROPERTY_FIXTURES", filepath.Join("data", "properties.json"))
	if err := loadPropertyFixtures(ctx, propertyRepo, fixturesPath, logger); err != nil {
		logger.Warn("property fixtures load failed", "path", fixturesPath, "error", err)
	}

	manager := realtime.NewManager(logger)
	publisher := realtime.NewPublisher(producer, cfg.MessagesTopic, cfg.ConversationsTopic)
	notifier := notify.New(producer, profiles, cfg.NotificationsTopic, logger)

	chatService := &chatsvc.Service{
		Store:      store,
		Profiles:   profiles,
		Properties: propertyRepo,
		Events:     publisher,
		Notify:     notifier,
		Logger:     logger,
	}
	authService := &authsvc.Service{
		Users:      userRepo,
		Sessions:   sessionStore,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		Profiles:   profiles,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}

	registry := inbox.NewRegistry()
	defer registry.CloseAll()
	newSession := func(userID string) (*inbox.Session, error) {
		return inbox.NewSession(inbox.SessionConfig{
			UserID:          userID,
			Fetch:           chatService,
			Mark:            chatService,
			Opener:          manager,
			VisibilityDelay: cfg.VisibilityDelay,
			Logger:          logger,
		})
	}

	feed := realtime.NewFeed(realtime.FeedConfig{
		Brokers:            cfg.KafkaBrokers,
		GroupID:            cfg.KafkaGroupID,
		MessagesTopic:      cfg.MessagesTopic,
		ConversationsTopic: cfg.ConversationsTopic,
	}, manager, logger)
	supervisor := &realtime.Supervisor{
		Runner:  feed,
		Logger:  logger,
		Initial: cfg.ReconnectInitial,
		Max:     cfg.ReconnectMax,
	}
	go func() {
		if err := supervisor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("feed supervisor stopped", "error", err)
		}
	}()

	handlers := ginserver.Handlers{
		Auth: ginserver.AuthHandler{Service: authService, Logger: logger},
		Chat: ginserver.ChatHandler{Service: chatService, Logger: logger},
		Inbox: ginserver.InboxHandler{
			Sessions:   registry,
			NewSession: newSession,
			Presence:   nilIfNoTracker(tracker),
			Logger:     logger,
		},
		Property:   ginserver.PropertyHandler{Repo: propertyRepo, Logger: logger},
		Attachment: ginserver.AttachmentHandler{Uploader: uploader, Logger: logger},
		Me:         ginserver.MeHandler{Profiles: profiles, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{
			Service:  authService,
			Presence: nilIfNoTracker(tracker),
			Logger:   logger,
		}.Handle,
	}
	if tracker != nil {
		handlers.Presence = ginserver.PresenceHandler{Tracker: tracker, Reader: tracker, Logger: logger}
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return mongoClient.Ping(pingCtx)
		},
	}, handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		manager.CloseAll()
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

// nilIfNoTracker keeps the interface nil when the concrete tracker is nil.
func nilIfNoTracker(t *redispresence.Tracker) ginserver.ActivityTracker {
	if t == nil {
		return nil
	}
	return t
}

type propertyFixture struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_id"`
	Title      string `json:"title"`
	City       string `json:"city"`
	PriceCents int64  `json:"price_cents"`
	CoverURL   string `json:"cover_url"`
}

func loadPropertyFixtures(ctx context.Context, repo *memory.PropertyRepository, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("property fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []propertyFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now()
	for _, fx := range fixtures {
		p, err := property.New(property.CreateParams{
			ID:         property.ID(fx.ID),
			OwnerID:    fx.OwnerID,
			Title:      fx.Title,
			City:       fx.City,
			PriceCents: fx.PriceCents,
			CoverURL:   fx.CoverURL,
			Now:        now,
		})
		if err != nil {
			logger.Error("fixture invalid", "property_id", fx.ID, "error", err)
			continue
		}
		if err := repo.Save(ctx, p); err != nil {
			logger.Error("cannot store fixture property", "property_id", fx.ID, "error", err)
			continue
		}
		logger.Info("property fixture imported", "property_id", p.ID)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
