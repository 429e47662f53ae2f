package activity

// Config locates activity logs under the input root.
type Config struct {
	Pattern string
}

func DefaultConfig() Config {
	return Config{Pattern: "log_data/*/*/*-events.json"}
}

func (c Config) withDefaults() Config {
	if c.Pattern == "" {
		c.Pattern = DefaultConfig().Pattern
	}
	return c
}
