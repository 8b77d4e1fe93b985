package engram

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/config"
	"github.com/parchmentco/engram/pkg/dotdir"
	"github.com/parchmentco/engram/pkg/embeddings"
	embedcached "github.com/parchmentco/engram/pkg/embeddings/cached"
	embedollama "github.com/parchmentco/engram/pkg/embeddings/ollama"
	"github.com/parchmentco/engram/pkg/graph"
	"github.com/parchmentco/engram/pkg/graph/memgraph"
	"github.com/parchmentco/engram/pkg/history"
	historynop "github.com/parchmentco/engram/pkg/history/nop"
	historypostgres "github.com/parchmentco/engram/pkg/history/postgres"
	historysqlite "github.com/parchmentco/engram/pkg/history/sqlite"
	"github.com/parchmentco/engram/pkg/pulse"
	pulsekafka "github.com/parchmentco/engram/pkg/pulse/kafka"
	pulsenop "github.com/parchmentco/engram/pkg/pulse/nop"
	"github.com/parchmentco/engram/pkg/reasoner"
	reasoneranthropic "github.com/parchmentco/engram/pkg/reasoner/anthropic"
	reasonerollama "github.com/parchmentco/engram/pkg/reasoner/ollama"
	"github.com/parchmentco/engram/pkg/recollect"
	"github.com/parchmentco/engram/pkg/vector"
	"github.com/parchmentco/engram/pkg/vector/chromemvec"
	"github.com/parchmentco/engram/pkg/vector/memvec"
	"github.com/parchmentco/engram/pkg/vector/qdrantvec"
	"github.com/parchmentco/engram/pkg/vector/sqlitevec"
)

// Open assembles a Memory from the persistent configuration, constructing
// each collaborator from its configured provider.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Memory, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ddm := dotdir.NewManager()
	dataDir, err := ddm.Target("")
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}

	embedder, err := openEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, dataDir, logger)
	if err != nil {
		return nil, err
	}

	rsn, err := openReasoner(cfg)
	if err != nil {
		return nil, err
	}

	log, err := openHistory(ctx, cfg, dataDir, logger)
	if err != nil {
		return nil, err
	}

	publisher, err := openPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}

	graphStore := openGraph(cfg, logger)

	weights := recollect.Weights{
		Similarity: cfg.Recall.SimilarityWeight,
		Importance: cfg.Recall.ImportanceWeight,
		Recency:    cfg.Recall.RecencyWeight,
	}

	return NewMemory(Config{
		Store:              store,
		Embedder:           embedder,
		Reasoner:           rsn,
		Graph:              graphStore,
		GraphEnabled:       cfg.GraphStore.Enabled && graphStore != nil,
		History:            log,
		Publisher:          publisher,
		SurpriseThreshold:  cfg.Surprise.SurpriseThreshold,
		FlashbulbThreshold: cfg.Surprise.FlashbulbThreshold,
		Weights:            &weights,
		PersonaEnabled:     cfg.Persona.Enabled,
		Snapshots:          ddm,
		Logger:             logger,
	})
}

func openEmbedder(cfg *config.Config, logger *zap.Logger) (embeddings.Embedder, error) {
	var (
		embedder embeddings.Embedder
		err      error
	)

	switch cfg.Embedding.Provider {
	case "ollama", "":
		embedder, err = embedollama.NewEmbedder(embedollama.EmbedderConfig{
			BaseURL:      cfg.Embedding.Target,
			Model:        cfg.Embedding.Model,
			TaskPrefixes: true,
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("constructing embedder: %w", err)
	}

	if cfg.Embedding.CacheEnabled {
		embedder, err = embedcached.NewEmbedder(embedder, embedcached.Config{}, logger)
		if err != nil {
			return nil, fmt.Errorf("constructing embedding cache: %w", err)
		}
	}

	return embedder, nil
}

func openStore(ctx context.Context, cfg *config.Config, dataDir string, logger *zap.Logger) (vector.Store, error) {
	switch cfg.VectorStore.Provider {
	case "memory":
		return memvec.NewStore(logger), nil

	case "sqlite", "":
		path := cfg.VectorStore.Target
		if path == "" {
			path = cfg.Storage.SQLitePath
		}
		if path == "" {
			path = filepath.Join(dataDir, "engram.db")
		}
		return sqlitevec.NewStore(sqlitevec.Config{
			DBPath:     path,
			Dimensions: cfg.Embedding.Dimensions,
		}, logger)

	case "chromem":
		return chromemvec.NewStore(chromemvec.Config{
			Path:           cfg.VectorStore.Target,
			CollectionName: cfg.VectorStore.Collection,
		}, logger)

	case "qdrant":
		host, port, err := splitHostPort(cfg.VectorStore.Target)
		if err != nil {
			return nil, fmt.Errorf("%w: qdrant target must be host:port, got %q", ErrInvalidConfig, cfg.VectorStore.Target)
		}
		return qdrantvec.NewStore(ctx, qdrantvec.Config{
			Host:           host,
			Port:           port,
			CollectionName: cfg.VectorStore.Collection,
			Dimensions:     cfg.Embedding.Dimensions,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unknown vector store provider %q", ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}

func openReasoner(cfg *config.Config) (reasoner.Reasoner, error) {
	switch cfg.Reasoner.Provider {
	case "ollama", "":
		return reasonerollama.NewReasoner(reasonerollama.Config{
			BaseURL: cfg.Reasoner.Target,
			Model:   cfg.Reasoner.Model,
		})
	case "anthropic":
		return reasoneranthropic.NewReasoner(reasoneranthropic.Config{
			Model: cfg.Reasoner.Model,
		})
	default:
		return nil, fmt.Errorf("%w: unknown reasoner provider %q", ErrInvalidConfig, cfg.Reasoner.Provider)
	}
}

func openHistory(ctx context.Context, cfg *config.Config, dataDir string, logger *zap.Logger) (history.Log, error) {
	switch cfg.History.Provider {
	case "sqlite", "":
		path := cfg.History.Target
		if path == "" {
			path = filepath.Join(dataDir, "history.db")
		}
		return historysqlite.NewLog(path, logger)
	case "postgres":
		return historypostgres.NewLog(ctx, cfg.History.Target, logger)
	case "none":
		return historynop.NewLog(), nil
	default:
		return nil, fmt.Errorf("%w: unknown history provider %q", ErrInvalidConfig, cfg.History.Provider)
	}
}

func openPublisher(cfg *config.Config, logger *zap.Logger) (pulse.Publisher, error) {
	switch cfg.Pulse.Provider {
	case "kafka":
		return pulsekafka.NewPublisher(pulsekafka.Config{
			Brokers: cfg.Pulse.Brokers,
			Topic:   cfg.Pulse.Topic,
		}, logger)
	case "none", "":
		return pulsenop.NewPublisher(), nil
	default:
		return nil, fmt.Errorf("%w: unknown pulse provider %q", ErrInvalidConfig, cfg.Pulse.Provider)
	}
}

func openGraph(cfg *config.Config, logger *zap.Logger) graph.Store {
	if !cfg.GraphStore.Enabled || cfg.GraphStore.Provider == "none" {
		return nil
	}
	return memgraph.NewStore(logger)
}

func splitHostPort(target string) (string, int, error) {
	host, portText, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
