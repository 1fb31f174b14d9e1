package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-backend/internal/authz"
	"github.com/tbourn/go-mentor-backend/internal/config"
	"github.com/tbourn/go-mentor-backend/internal/events"
	"github.com/tbourn/go-mentor-backend/internal/ingest"
	"github.com/tbourn/go-mentor-backend/internal/llm"
	"github.com/tbourn/go-mentor-backend/internal/queue"
	"github.com/tbourn/go-mentor-backend/internal/repo"
	"github.com/tbourn/go-mentor-backend/internal/services"
	"github.com/tbourn/go-mentor-backend/internal/storage"
	"github.com/tbourn/go-mentor-backend/internal/sysutil"
	"github.com/tbourn/go-mentor-backend/internal/tokens"
)

// app is the wired object graph shared by the subcommands.
type app struct {
	cfg config.Config
	log zerolog.Logger
	db  *gorm.DB

	provider llm.Provider
	tokens   *tokens.Accountant

	pipeline *ingest.Pipeline
	queue    *queue.Queue
	outbox   *events.Dispatcher

	threads   *services.ThreadService
	judge     *services.JudgeService
	messages  *services.MessageService
	documents *services.DocumentService

	closers []func() error
}

// openDB connects, instruments and migrates the configured database.
func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.Open(repo.Options{
		Driver:  cfg.DB.Driver,
		Path:    cfg.DB.Path,
		DSN:     cfg.DB.URL,
		Tracing: cfg.OTEL.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// newProvider returns Gemini when an API key is configured and the offline
// model otherwise.
func newProvider(ctx context.Context, cfg config.Config, log zerolog.Logger) (llm.Provider, func() error, error) {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		log.Warn().Msg("GEMINI_API_KEY not set; using the offline model")
		return struct {
			llm.OfflineModel
			llm.HashEmbedder
		}{}, func() error { return nil }, nil
	}
	g, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.ChatModel, cfg.LLM.EmbedModel)
	if err != nil {
		return nil, nil, fmt.Errorf("gemini: %w", err)
	}
	return llm.WithTimeout(g, cfg.LLM.Timeout), g.Close, nil
}

func newStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "local":
		return storage.NewLocalStore(cfg.Dir)
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			PathStyle: cfg.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// newApp builds every component. Nothing is started.
func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	a.db = db
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	provider, closeProvider, err := newProvider(ctx, cfg, sysutil.Component(log, "llm"))
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.provider = provider
	a.closers = append(a.closers, closeProvider)

	store, err := newStore(ctx, cfg.Storage)
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	az, err := authz.NewOPA(ctx, authz.Options{
		PolicyFile:          cfg.Authz.PolicyFile,
		EnforceLessonAccess: cfg.Authz.EnforceLessonAccess,
	})
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("authz: %w", err)
	}

	a.tokens = tokens.New(tokens.WithLogger(sysutil.Component(log, "tokens")))

	a.pipeline = &ingest.Pipeline{
		DB:        db,
		Store:     store,
		Extractor: ingest.NewDocconvExtractor(cfg.Ingest.Readability),
		Embedder:  provider,
		Tokens:    a.tokens,
		Model:     cfg.LLM.ChatModel,
		Log:       sysutil.Component(log, "ingest"),
	}
	a.queue = queue.New("ingest", cfg.Ingest.QueueSize, cfg.Ingest.Workers, a.pipeline.Process, sysutil.Component(log, "queue"))

	a.outbox = events.NewDispatcher(db, sysutil.Component(log, "outbox"))
	a.outbox.Handle(events.AnyType, events.ActivityLogHandler(db, sysutil.Component(log, "activity")))

	limits := ingest.DefaultLimits()
	limits.MaxFiles = cfg.Ingest.MaxFiles
	limits.MaxFileBytes = cfg.Ingest.MaxFileBytes

	a.threads = &services.ThreadService{DB: db, Authz: az}
	a.judge = &services.JudgeService{
		DB:           db,
		Model:        provider,
		Threads:      a.threads,
		Log:          sysutil.Component(log, "judge"),
		DefaultModel: cfg.LLM.ChatModel,
	}
	a.messages = &services.MessageService{
		DB:              db,
		Model:           provider,
		Embedder:        provider,
		Tokens:          a.tokens,
		Judge:           a.judge,
		Log:             sysutil.Component(log, "messages"),
		DefaultModel:    cfg.LLM.ChatModel,
		MaxContentRunes: cfg.Mentor.MaxContentRunes,
		ContextTokens:   cfg.Mentor.ContextTokens,
		RetrievalK:      cfg.Mentor.RetrievalK,
		MinScore:        cfg.Mentor.MinScore,
		MaxToolRounds:   cfg.Mentor.MaxToolRounds,
		IdempotencyTTL:  cfg.IdempotencyTTL,
	}
	a.documents = &services.DocumentService{
		DB:     db,
		Store:  store,
		Queue:  a.queue,
		Authz:  az,
		Limits: limits,
		Log:    sysutil.Component(log, "documents"),
	}
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
