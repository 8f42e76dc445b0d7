// Package bootstrap wires configuration to concrete infrastructure and
// hands the cmd binaries a ready set of use cases.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/config"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/usecase"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/embed/local"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/enrich"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/extractor"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/images/noop"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/images/poppler"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/markdown"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/storage/s3"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/vector/memory"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	QueryUC   ports.CorpusQueryService
	ReaderUC  ports.DocumentReader

	closeFn func()
}

// Options carries per-binary wiring that config alone cannot decide.
type Options struct {
	Logger *slog.Logger

	// Observer receives pipeline stage events; nil means no metrics.
	Observer usecase.PipelineObserver
}

func New(ctx context.Context, cfg config.Config, options Options) (*App, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := newObjectStorage(cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(ollama.Options{
		BaseURL:     cfg.OllamaURL,
		GenModel:    cfg.OllamaGenModel,
		VisionModel: cfg.OllamaVisionModel,
		EmbedModel:  cfg.OllamaEmbedModel,
		Timeout:     time.Duration(cfg.OllamaTimeoutSecs) * time.Second,
		Executor:    executor,
	})
	generator := ollama.NewGenerator(ollamaClient)
	describer := ollama.NewDescriber(ollamaClient, storage, cfg.DescribeRPS, cfg.DescribeBurst)

	embedder := newEmbedder(cfg, ollamaClient)
	vectorDB := newVectorStore(cfg, logger)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	enricher := enrich.New()
	mdCache := markdown.NewCache(storage)
	pageExtractor := extractor.NewDispatcher(storage)
	imageExtractor := newImageExtractor(cfg, storage)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue, pageExtractor.SupportedExtensions())
	processUC := usecase.NewProcessDocumentUseCase(
		repo,
		pageExtractor,
		imageExtractor,
		describer,
		enricher,
		mdCache,
		chunker,
		embedder,
		vectorDB,
		usecase.ProcessOptions{
			DescribePoolSize: cfg.DescribePoolSize,
			DescribeTimeout:  time.Duration(cfg.DescribeTimeout) * time.Second,
			Observer:         options.Observer,
		},
	)
	queryUC := usecase.NewQueryUseCase(embedder, vectorDB, repo, generator, cfg.RAGTopK)
	readerUC := usecase.NewDocumentReadUseCase(repo, mdCache, enricher, vectorDB)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		QueryUC:   queryUC,
		ReaderUC:  readerUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// NewReadOnly wires only the query and read paths. The MCP binary uses
// it so serving tools does not require NATS or Ollama generation-side
// processing infrastructure beyond the client itself.
func NewReadOnly(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := newObjectStorage(cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	ollamaClient := ollama.New(ollama.Options{
		BaseURL:     cfg.OllamaURL,
		GenModel:    cfg.OllamaGenModel,
		VisionModel: cfg.OllamaVisionModel,
		EmbedModel:  cfg.OllamaEmbedModel,
		Timeout:     time.Duration(cfg.OllamaTimeoutSecs) * time.Second,
		Executor:    executor,
	})
	generator := ollama.NewGenerator(ollamaClient)

	embedder := newEmbedder(cfg, ollamaClient)
	vectorDB := newVectorStore(cfg, slog.Default())
	mdCache := markdown.NewCache(storage)
	enricher := enrich.New()

	queryUC := usecase.NewQueryUseCase(embedder, vectorDB, repo, generator, cfg.RAGTopK)
	readerUC := usecase.NewDocumentReadUseCase(repo, mdCache, enricher, vectorDB)

	return &App{
		Config:   cfg,
		Repo:     repo,
		QueryUC:  queryUC,
		ReaderUC: readerUC,

		closeFn: func() { _ = db.Close() },
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newObjectStorage(cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "s3":
		return s3.New(s3.Config{
			Endpoint:        cfg.S3Endpoint,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			UseSSL:          cfg.S3UseSSL,
		})
	default:
		return localfs.New(cfg.StoragePath)
	}
}

func newVectorStore(cfg config.Config, logger *slog.Logger) ports.VectorStore {
	switch cfg.VectorBackend {
	case "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	default:
		// The in-process store is not shared between binaries: chunks
		// indexed by the worker are invisible to the api and mcp
		// processes. Single-process and test setups only.
		logger.Warn("using in-memory vector store, index is not shared across processes",
			"vector_backend", cfg.VectorBackend)
		return memory.NewStore()
	}
}

func newEmbedder(cfg config.Config, client *ollama.Client) ports.Embedder {
	switch cfg.EmbedBackend {
	case "ollama":
		return ollama.NewEmbedder(client)
	default:
		return local.New(cfg.EmbedDimension)
	}
}

func newImageExtractor(cfg config.Config, storage ports.ObjectStorage) ports.ImageExtractor {
	if !cfg.ImagesEnabled {
		return noop.NewExtractor()
	}
	return poppler.NewExtractor(storage, poppler.DefaultRunner())
}
