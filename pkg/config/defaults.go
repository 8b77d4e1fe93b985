package config

const (
	defaultVectorProvider = "sqlite"
	defaultGraphProvider  = "memory"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultReasonerProvider = "ollama"
	defaultReasonerTarget   = "http://localhost:11434"
	defaultReasonerModel    = "llama3.1"

	defaultHistoryProvider = "sqlite"

	defaultPulseProvider = "none"
	defaultPulseTopic    = "engram.memory.events"

	defaultSimilarityWeight = 0.5
	defaultImportanceWeight = 0.3
	defaultRecencyWeight    = 0.2

	defaultSurpriseThreshold  = 0.92
	defaultFlashbulbThreshold = 0.60
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: "engram",
		},
		GraphStore: GraphStoreConfig{
			Provider: defaultGraphProvider,
			Enabled:  true,
		},
		Embedding: EmbeddingConfig{
			Provider:     defaultEmbeddingProvider,
			Target:       defaultEmbeddingTarget,
			Model:        defaultEmbeddingModel,
			Dimensions:   defaultEmbeddingDimensions,
			CacheEnabled: true,
		},
		Reasoner: ReasonerConfig{
			Provider: defaultReasonerProvider,
			Target:   defaultReasonerTarget,
			Model:    defaultReasonerModel,
		},
		History: HistoryConfig{
			Provider: defaultHistoryProvider,
		},
		Pulse: PulseConfig{
			Provider: defaultPulseProvider,
			Topic:    defaultPulseTopic,
		},
		Recall: RecallConfig{
			SimilarityWeight: defaultSimilarityWeight,
			ImportanceWeight: defaultImportanceWeight,
			RecencyWeight:    defaultRecencyWeight,
		},
		Surprise: SurpriseConfig{
			SurpriseThreshold:  defaultSurpriseThreshold,
			FlashbulbThreshold: defaultFlashbulbThreshold,
		},
		Persona: PersonaConfig{
			Enabled: true,
		},
	}
}
