package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"drivechat/internal/auth"
	"drivechat/internal/blobstore"
	"drivechat/internal/config"
	"drivechat/internal/handler"
	"drivechat/internal/middleware"
	"drivechat/internal/repository/postgres"
	"drivechat/internal/service"
	"drivechat/internal/store"
	"drivechat/internal/stream"
	chatsync "drivechat/internal/sync"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, 10)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	jwtVerifier, err := auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected", "max_conns", 25, "min_conns", 5)

	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	chatRepo := postgres.NewChatRepository(repoConfig)
	msgRepo := postgres.NewMessageRepository(repoConfig)
	fileRepo := postgres.NewFileRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	uploadLimits, err := config.LoadUploadLimits()
	if err != nil {
		log.Fatalf("Failed to load upload limits: %v", err)
	}

	objectStorage := blobstore.NewSupabaseStorage(cfg.SupabaseURL, cfg.StorageBucket, cfg.SupabaseKey, logger)
	aiClient := stream.NewClient(cfg.AskAIURL, cfg.AskAgentURL, cfg.IngestURL, logger)

	chatStore := store.NewChatStore()
	fileStore := store.NewFileStore()

	syncer := chatsync.NewChatSyncer(chatStore, chatRepo, msgRepo, aiClient, logger)
	guard := service.NewHierarchyGuard(fileRepo)
	fileService := service.NewFileService(
		fileRepo, objectStorage, fileStore, guard,
		txManager, uploadLimits, aiClient, logger,
	)

	chatHandler := handler.NewChatHandler(syncer, aiClient, logger)
	fileHandler := handler.NewFileHandler(fileService, logger)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", fileHandler.HealthCheck)

	// Chat routes
	mux.HandleFunc("GET /api/chats", chatHandler.ListChats)
	mux.HandleFunc("POST /api/chats", chatHandler.CreateChat)
	mux.HandleFunc("DELETE /api/chats", chatHandler.ClearChats)
	mux.HandleFunc("PATCH /api/chats/{id}", chatHandler.UpdateChat)
	mux.HandleFunc("DELETE /api/chats/{id}", chatHandler.DeleteChat)
	mux.HandleFunc("GET /api/chats/{id}/messages", chatHandler.ListMessages)
	mux.HandleFunc("POST /api/chats/{id}/messages", chatHandler.SendMessage)
	mux.HandleFunc("POST /api/chats/{id}/ask", chatHandler.Ask)

	// Document question route (no transcript)
	mux.HandleFunc("POST /api/ask", chatHandler.AskDocument)

	// File routes
	mux.HandleFunc("GET /api/files", fileHandler.ListFolder)
	mux.HandleFunc("POST /api/files", fileHandler.Upload)
	mux.HandleFunc("GET /api/files/search", fileHandler.Search) // Must come before {id} route
	mux.HandleFunc("GET /api/files/recent", fileHandler.Recent)
	mux.HandleFunc("POST /api/files/batch-delete", fileHandler.BatchDelete)
	mux.HandleFunc("POST /api/files/batch-move", fileHandler.BatchMove)
	mux.HandleFunc("GET /api/files/{id}", fileHandler.GetNode)
	mux.HandleFunc("PATCH /api/files/{id}", fileHandler.UpdateNode)
	mux.HandleFunc("DELETE /api/files/{id}", fileHandler.DeleteNode)
	mux.HandleFunc("GET /api/files/{id}/download", fileHandler.Download)

	// Folder routes
	mux.HandleFunc("POST /api/folders", fileHandler.CreateFolder)

	// Build middleware chain, applied in reverse order
	// Order: CORS -> Recovery -> Auth -> Routes
	var root http.Handler = mux
	root = middleware.Auth(jwtVerifier, logger)(root)
	root = middleware.Recovery(logger)(root)

	// CORS must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
