package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent engram configuration stored as
// config.toml in the .engram/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	GraphStore  GraphStoreConfig  `toml:"graph_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Reasoner    ReasonerConfig    `toml:"reasoner"`
	History     HistoryConfig     `toml:"history"`
	Pulse       PulseConfig       `toml:"pulse"`
	Recall      RecallConfig      `toml:"recall"`
	Surprise    SurpriseConfig    `toml:"surprise"`
	Persona     PersonaConfig     `toml:"persona"`
}

// StorageConfig holds shared local storage settings.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	// Provider is one of "memory", "sqlite", "qdrant", "chromem".
	Provider string `toml:"provider,omitempty"`

	// Target is the provider-specific location: a file path for sqlite
	// and chromem, host:port for qdrant.
	Target string `toml:"target,omitempty"`

	Collection string `toml:"collection,omitempty"`
}

// GraphStoreConfig holds associative graph settings.
type GraphStoreConfig struct {
	// Provider is one of "memory", "none".
	Provider string `toml:"provider,omitempty"`
	Enabled  bool   `toml:"enabled,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is one of "ollama", "mock".
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`

	// CacheEnabled wraps the embedder with an in-process cache.
	CacheEnabled bool `toml:"cache_enabled,omitempty"`
}

// ReasonerConfig holds reasoning model settings.
type ReasonerConfig struct {
	// Provider is one of "anthropic", "ollama", "mock".
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// HistoryConfig holds audit trail settings.
type HistoryConfig struct {
	// Provider is one of "sqlite", "postgres", "none".
	Provider string `toml:"provider,omitempty"`

	// Target is the sqlite path or postgres connection string.
	Target string `toml:"target,omitempty"`
}

// PulseConfig holds lifecycle event stream settings.
type PulseConfig struct {
	// Provider is one of "kafka", "none".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// RecallConfig holds ranking blend settings. Weights must sum to 1.0.
type RecallConfig struct {
	SimilarityWeight float64 `toml:"similarity_weight,omitempty"`
	ImportanceWeight float64 `toml:"importance_weight,omitempty"`
	RecencyWeight    float64 `toml:"recency_weight,omitempty"`
}

// SurpriseConfig holds novelty thresholds. The flashbulb threshold must
// stay below the surprise threshold.
type SurpriseConfig struct {
	SurpriseThreshold  float64 `toml:"surprise_threshold,omitempty"`
	FlashbulbThreshold float64 `toml:"flashbulb_threshold,omitempty"`
}

// PersonaConfig holds identity synthesis settings.
type PersonaConfig struct {
	Enabled bool `toml:"enabled,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"vector_store.collection": {
		get: func(c *Config) string { return c.VectorStore.Collection },
		set: func(c *Config, v string) error { c.VectorStore.Collection = v; return nil },
	},
	"graph_store.provider": {
		get: func(c *Config) string { return c.GraphStore.Provider },
		set: func(c *Config, v string) error { c.GraphStore.Provider = v; return nil },
	},
	"graph_store.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.GraphStore.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for graph_store.enabled: %w", err)
			}
			c.GraphStore.Enabled = b
			return nil
		},
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"reasoner.provider": {
		get: func(c *Config) string { return c.Reasoner.Provider },
		set: func(c *Config, v string) error { c.Reasoner.Provider = v; return nil },
	},
	"reasoner.target": {
		get: func(c *Config) string { return c.Reasoner.Target },
		set: func(c *Config, v string) error { c.Reasoner.Target = v; return nil },
	},
	"reasoner.model": {
		get: func(c *Config) string { return c.Reasoner.Model },
		set: func(c *Config, v string) error { c.Reasoner.Model = v; return nil },
	},
	"history.provider": {
		get: func(c *Config) string { return c.History.Provider },
		set: func(c *Config, v string) error { c.History.Provider = v; return nil },
	},
	"history.target": {
		get: func(c *Config) string { return c.History.Target },
		set: func(c *Config, v string) error { c.History.Target = v; return nil },
	},
	"pulse.provider": {
		get: func(c *Config) string { return c.Pulse.Provider },
		set: func(c *Config, v string) error { c.Pulse.Provider = v; return nil },
	},
	"pulse.topic": {
		get: func(c *Config) string { return c.Pulse.Topic },
		set: func(c *Config, v string) error { c.Pulse.Topic = v; return nil },
	},
	"persona.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Persona.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for persona.enabled: %w", err)
			}
			c.Persona.Enabled = b
			return nil
		},
	},
}
