package pipeline

import "strings"

type Config struct {
	Input  string
	Output string
	// Job is the Pushgateway job name.
	Job string
}

func (c Config) withDefaults() Config {
	c.Job = strings.TrimSpace(c.Job)
	if c.Job == "" {
		c.Job = "songlake"
	}
	return c
}
