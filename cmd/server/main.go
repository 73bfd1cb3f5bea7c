package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"convtree/internal/auth"
	"convtree/internal/config"
	"convtree/internal/domain/repositories"
	"convtree/internal/events"
	"convtree/internal/handler"
	"convtree/internal/handler/sse"
	"convtree/internal/metrics"
	"convtree/internal/middleware"
	"convtree/internal/repository"
	redisrepo "convtree/internal/repository/redis"
	"convtree/internal/service/sidebar"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logger, closeLog, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"storage_driver", cfg.StorageDriver,
	)

	emptyPolicy, err := sidebar.ParseEmptyFolderPolicy(cfg.EmptyFolderPolicy)
	if err != nil {
		log.Fatalf("Invalid EMPTY_FOLDER_POLICY: %v", err)
	}
	deletePolicy, err := sidebar.ParseFolderDeletePolicy(cfg.FolderDeletePolicy)
	if err != nil {
		log.Fatalf("Invalid FOLDER_DELETE_POLICY: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, closeStorage, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer closeStorage()

	// Session view state survives restarts only with redis
	var viewStates repositories.ViewStateStore
	if cfg.RedisURL != "" {
		store, err := redisrepo.NewViewStateStore(ctx, cfg.RedisURL, cfg.TablePrefix)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer store.Close()
		viewStates = store
		logger.Info("redis connected", "view_state_ttl", cfg.ViewStateTTL)
	}

	// Without a JWKS URL every request acts as the dev user
	var verifier auth.Verifier
	if cfg.JWKSURL != "" {
		jwks, err := auth.NewJWKSVerifier(cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwks.Close()
		verifier = jwks
	} else {
		if cfg.IsProduction() {
			log.Fatal("JWKS_URL is required in production")
		}
		logger.Warn("authentication disabled", "dev_user_id", cfg.DevUserID)
	}

	bridge := events.NewWatermillBridge(logger)
	defer bridge.Close()

	registry := sidebar.NewRegistry(sidebar.RegistryConfig{
		Provider:     provider,
		ViewStates:   viewStates,
		ViewStateTTL: cfg.ViewStateTTL,
		Timeout:      cfg.PersistenceTimeout,
		Renderer:     sidebar.NewTreeRenderer(sidebar.NewEngineForLocale(cfg.CollationLanguage), emptyPolicy),
		DeletePolicy: deletePolicy,
		Observer:     metrics.SidebarObserver{},
		Bridge:       bridge,
		Logger:       logger,
	})

	conversationHandler := handler.NewConversationHandler(registry, logger)
	folderHandler := handler.NewFolderHandler(registry, logger)
	treeHandler := handler.NewTreeHandler(registry, logger)
	dragHandler := handler.NewDragHandler(registry, logger)
	eventsHandler := handler.NewEventsHandler(registry, bridge, &sse.Config{KeepAliveInterval: cfg.SSEKeepAlive}, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Tree and view
	mux.HandleFunc("GET /api/tree", treeHandler.GetTree)
	mux.HandleFunc("GET /api/view", treeHandler.GetView)
	mux.HandleFunc("PATCH /api/view", treeHandler.UpdateView)
	mux.HandleFunc("GET /api/tags", treeHandler.GetTags)

	// Conversation routes
	mux.HandleFunc("GET /api/conversations", conversationHandler.ListConversations)
	mux.HandleFunc("POST /api/conversations", conversationHandler.CreateConversation)
	mux.HandleFunc("GET /api/conversations/{id}", conversationHandler.GetConversation)
	mux.HandleFunc("PATCH /api/conversations/{id}", conversationHandler.UpdateConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", conversationHandler.DeleteConversation)
	mux.HandleFunc("POST /api/conversations/{id}/select", conversationHandler.SelectConversation)
	mux.HandleFunc("POST /api/conversations/{id}/star", conversationHandler.ToggleStar)
	mux.HandleFunc("PUT /api/conversations/{id}/tags", conversationHandler.UpdateTags)
	mux.HandleFunc("POST /api/conversations/{id}/messages", conversationHandler.AddMessage)

	// Folder routes
	mux.HandleFunc("GET /api/folders", folderHandler.ListFolders)
	mux.HandleFunc("POST /api/folders", folderHandler.CreateFolder)
	mux.HandleFunc("PATCH /api/folders/{id}", folderHandler.UpdateFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", folderHandler.DeleteFolder)
	mux.HandleFunc("POST /api/folders/{id}/toggle", folderHandler.ToggleFolder)

	// Drag and drop
	mux.HandleFunc("POST /api/drag/start", dragHandler.StartDrag)
	mux.HandleFunc("POST /api/drag/end", dragHandler.EndDrag)
	mux.HandleFunc("POST /api/drop", dragHandler.Drop)

	// Streaming
	mux.HandleFunc("GET /api/events", eventsHandler.Stream)

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Metrics → Routes
	// Metrics sits next to the mux so it sees the matched route pattern
	var h http.Handler = mux
	h = middleware.Metrics(h)
	h = middleware.Auth(verifier, cfg.DevUserID, logger, "/health", "/metrics")(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Closing the bridge ends open SSE streams so Shutdown can drain
	if err := bridge.Close(); err != nil {
		logger.Warn("failed to close event bridge", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped", "workspaces", registry.Len())
}
