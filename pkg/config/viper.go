package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/parchmentco/engram/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the ENGRAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. Environment variables (ENGRAM_VECTOR_STORE_PROVIDER, ENGRAM_REASONER_MODEL, etc.)
//  2. config.toml file values
//  3. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: ENGRAM_VECTOR_STORE_TARGET, ENGRAM_PULSE_PROVIDER, etc.
	v.SetEnvPrefix("ENGRAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)

	// Graph store
	v.SetDefault("graph_store.provider", d.GraphStore.Provider)
	v.SetDefault("graph_store.enabled", d.GraphStore.Enabled)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.cache_enabled", d.Embedding.CacheEnabled)

	// Reasoner
	v.SetDefault("reasoner.provider", d.Reasoner.Provider)
	v.SetDefault("reasoner.target", d.Reasoner.Target)
	v.SetDefault("reasoner.model", d.Reasoner.Model)

	// History
	v.SetDefault("history.provider", d.History.Provider)
	v.SetDefault("history.target", d.History.Target)

	// Pulse
	v.SetDefault("pulse.provider", d.Pulse.Provider)
	v.SetDefault("pulse.brokers", d.Pulse.Brokers)
	v.SetDefault("pulse.topic", d.Pulse.Topic)

	// Recall
	v.SetDefault("recall.similarity_weight", d.Recall.SimilarityWeight)
	v.SetDefault("recall.importance_weight", d.Recall.ImportanceWeight)
	v.SetDefault("recall.recency_weight", d.Recall.RecencyWeight)

	// Surprise
	v.SetDefault("surprise.surprise_threshold", d.Surprise.SurpriseThreshold)
	v.SetDefault("surprise.flashbulb_threshold", d.Surprise.FlashbulbThreshold)

	// Persona
	v.SetDefault("persona.enabled", d.Persona.Enabled)
}
