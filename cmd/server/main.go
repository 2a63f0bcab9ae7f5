package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lughati/voice_service/internal/client"
	"github.com/lughati/voice_service/internal/config"
	"github.com/lughati/voice_service/internal/handler/http"
	"github.com/lughati/voice_service/internal/logger"
	"github.com/lughati/voice_service/internal/repository"
	"github.com/lughati/voice_service/internal/server"
	"github.com/lughati/voice_service/internal/service"
	"github.com/lughati/voice_service/internal/speech/google"
	"github.com/lughati/voice_service/internal/transcoder"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("env", cfg.Environment).Msg("Starting voice_service")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Postgres client
	var postgresClient *client.PostgresClient
	if cfg.DatabaseURL != "" {
		var err error
		postgresClient, err = client.NewPostgresClient(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Postgres client")
		} else {
			log.Info().Msg("Postgres client initialized")
		}
	} else {
		log.Warn().Msg("DATABASE_URL not set, skipping Postgres initialization")
	}

	// Initialize Redis client
	var redisClient *client.RedisClient
	if cfg.RedisURL != "" {
		var err error
		redisClient, err = client.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Redis client")
		} else {
			log.Info().Msg("Redis client initialized")
		}
	}

	// Initialize audio storage
	var audioStore service.AudioStore
	var storageClient *client.StorageClient
	switch cfg.StorageBackend {
	case "gcs":
		if cfg.GCSBucketName != "" {
			var err error
			storageClient, err = client.NewStorageClient(ctx, cfg.GCSBucketName)
			if err != nil {
				log.Error().Err(err).Msg("Failed to initialize GCS client")
			} else {
				audioStore = storageClient
				log.Info().Str("bucket", cfg.GCSBucketName).Msg("GCS client initialized")
			}
		} else {
			log.Warn().Msg("GCS_BUCKET_NAME not set, skipping storage initialization")
		}
	default:
		if cfg.CloudflareAccessKeyID != "" && cfg.CloudflareSecretKey != "" && cfg.CloudflareR2Endpoint != "" && cfg.CloudflareBucketName != "" {
			cloudflareClient, err := client.NewCloudflareClient(ctx,
				cfg.CloudflareAccessKeyID,
				cfg.CloudflareSecretKey,
				cfg.CloudflareR2Endpoint,
				cfg.CloudflareBucketName,
				cfg.CloudflarePublicURL,
			)
			if err != nil {
				log.Error().Err(err).Msg("Failed to initialize Cloudflare client")
			} else {
				audioStore = cloudflareClient
				log.Info().Msg("Cloudflare R2 client initialized")
			}
		} else {
			log.Warn().Msg("Cloudflare configuration missing, skipping R2 initialization")
		}
	}

	// Initialize Pub/Sub publisher
	var pubsubClient *client.PubSubClient
	if cfg.GCPProjectID != "" && cfg.PubSubTopicID != "" {
		var err error
		pubsubClient, err = client.NewPubSubClient(ctx, cfg.GCPProjectID, cfg.PubSubTopicID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Pub/Sub client")
		} else {
			log.Info().Str("topic", cfg.PubSubTopicID).Msg("Pub/Sub client initialized")
		}
	}

	// Initialize AI clients
	var openaiClient *client.OpenAIClient
	if cfg.OpenAIAPIKey != "" {
		openaiClient = client.NewOpenAIClient(cfg.OpenAIAPIKey)
		log.Info().Msg("OpenAI client initialized")
	}

	var geminiClient *client.GeminiClient
	if cfg.GCPProjectID != "" {
		var err error
		geminiClient, err = client.NewGeminiClient(ctx, cfg.GCPProjectID, cfg.GCPLocation)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Gemini client")
		} else {
			log.Info().Msg("Gemini client initialized")
		}
	}

	// Initialize audio transcoder
	tc, err := transcoder.New(transcoder.Options{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		TempDir:     cfg.TempDir,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize transcoder")
	}

	// Initialize speech provider
	speechClient := google.New(cfg.GoogleSpeechAPIKey, cfg.SpeechTimeout)
	if cfg.GoogleSpeechAPIKey == "" {
		log.Warn().Msg("GOOGLE_SPEECH_API_KEY not set, transcription will fail")
	}

	// Initialize repositories
	userRepo := repository.NewPostgresUserRepository(postgresClient)
	sentenceRepo := repository.NewPostgresSentenceRepository(postgresClient)
	attemptRepo := repository.NewPostgresAttemptRepository(postgresClient)
	sampleRepo := repository.NewPostgresSampleRepository(postgresClient)

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret)
	aiService := service.NewAIService(openaiClient, geminiClient)

	voiceService := service.NewVoiceService(tc, speechClient, attemptRepo, sampleRepo, sentenceRepo, log).
		WithLanguages(cfg.DefaultLanguage, cfg.FeedbackLanguage)
	if audioStore != nil {
		voiceService = voiceService.WithStorage(audioStore)
	}
	if pubsubClient != nil {
		voiceService = voiceService.WithEvents(pubsubClient)
	}
	if redisClient != nil {
		voiceService = voiceService.WithCoaching(redisClient, aiService)
	}

	// Initialize handlers
	healthHandler := http.NewHealthHandler()
	authHandler := http.NewAuthHandler(log, authService)
	voiceHandler := http.NewVoiceHandler(log, voiceService)

	// Initialize HTTP server
	httpServer := server.NewHTTPServer(cfg, log, healthHandler, authHandler, voiceHandler, authService)

	// Start server
	go func() {
		if err := httpServer.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
			cancel()
		}
	}()

	log.Info().
		Str("http_addr", cfg.HTTPAddress()).
		Msg("Server started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Close clients
	if pubsubClient != nil {
		pubsubClient.Close()
	}
	if storageClient != nil {
		storageClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if postgresClient != nil {
		postgresClient.Close()
	}

	log.Info().Msg("Server stopped")
}
