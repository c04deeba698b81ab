package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"

	chatapi "docqa/features/chat"
	"docqa/features/document"
	"docqa/features/stats"
	"docqa/internal/adapter/gemini"
	"docqa/internal/app"
	"docqa/internal/chat"
	"docqa/internal/config"
	"docqa/internal/extract"
	"docqa/internal/logger"
	"docqa/internal/memory"
	"docqa/internal/middleware"
	"docqa/internal/vector"
	"docqa/internal/worker"
)

type extractor struct{}

func (extractor) Pages(path string) ([]extract.Page, error) { return extract.Pages(path) }

func main() {
	// Structured logger with correlation ids from context
	slogger := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(slogger)

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Infrastructure: database, migrations, task queue
	deps, err := app.Bootstrap(cfg)
	if err != nil {
		slog.Error("failed to bootstrap", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()

	// 3. Gemini adapters
	ctx := context.Background()
	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	if err != nil {
		slog.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	generator, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GenModel, cfg.Temperature)
	if err != nil {
		slog.Error("failed to create generator", "error", err)
		os.Exit(1)
	}
	defer generator.Close()

	// 4. Index store and conversation memory
	indexStore := vector.NewStore(cfg.IndexDir)
	sessions := memory.NewInMemoryStore()

	// Feature: Document
	docRepo := document.NewPostgresRepo(deps.DB)
	var publisher document.EventPublisher
	if deps.NSQProducer != nil {
		publisher = deps.NSQProducer
	}
	docService := document.NewService(docRepo, extractor{}, embedder, indexStore, publisher, cfg.EnableAsyncIngest, cfg.ChunkSize, cfg.ChunkOverlap)
	docHandler := document.NewHandler(docService, cfg.UploadDir, cfg.MaxUploadSizeMB<<20)

	// Feature: Chat
	queryLogger, err := chat.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = chat.NewQueryLogger(os.Stdout)
	}
	chatService := chat.NewService(embedder, indexStore, generator, sessions, queryLogger, cfg.SearchTopK, cfg.HistoryWindow)
	chatHandler := chatapi.NewHandler(chatService, sessions, cfg.MemoryWindow)

	// Feature: Stats
	statsHandler := stats.NewHandler(docRepo, indexStore)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	http.Handle("POST /documents/ingest", middleware.CorrelationID(enableCORS(docHandler.Ingest)))
	http.Handle("GET /documents", middleware.CorrelationID(enableCORS(docHandler.List)))
	http.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Get)))

	http.Handle("POST /chat", middleware.CorrelationID(enableCORS(chatHandler.Ask)))
	http.Handle("POST /session/reset", middleware.CorrelationID(enableCORS(chatHandler.ResetSession)))
	http.Handle("GET /sessions/{id}/history", middleware.CorrelationID(enableCORS(chatHandler.History)))

	http.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	// Worker (Ingest Consumer)
	if cfg.EnableAsyncIngest {
		ingestConsumer := worker.NewIngestConsumer(docService, 5*time.Minute)
		consumer, err := app.StartIngestConsumer(cfg, nsq.HandlerFunc(func(m *nsq.Message) error {
			return ingestConsumer.HandleMessage(m)
		}))
		if err != nil {
			slog.Error("failed to start ingest consumer", "error", err)
		} else {
			defer consumer.Stop()
			slog.Info("NSQ ingest consumer connected")
		}
	}

	// 5. Start Server
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	slog.Info("server starting", "port", cfg.ServerPort)
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
