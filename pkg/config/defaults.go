package config

const (
	defaultAPIListen = ":8787"

	defaultStoreProvider = "jsonfile"
	defaultStorePath     = "data/memory.json"

	defaultEmbeddingDimensions = 512

	defaultQueryMaxResults = 8

	defaultEventStreamProvider = "none"
	defaultEventStreamTopic    = "engram.memory"

	defaultClientAPITarget = "http://localhost:8787"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Store: StoreConfig{
			Provider: defaultStoreProvider,
			Path:     defaultStorePath,
		},
		Embedding: EmbeddingConfig{
			Dimensions: defaultEmbeddingDimensions,
		},
		Query: QueryConfig{
			MaxResults: defaultQueryMaxResults,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
	}
}
