package catalog

// Config locates catalog files under the input root.
type Config struct {
	Pattern string
}

func DefaultConfig() Config {
	return Config{Pattern: "song_data/*/*/*/*.json"}
}

func (c Config) withDefaults() Config {
	if c.Pattern == "" {
		c.Pattern = DefaultConfig().Pattern
	}
	return c
}
