package config

import "go.uber.org/fx"

// Module supplies a Config that was already loaded, so .env and the
// credentials file are read once per process.
func Module(cfg Config) fx.Option {
	return fx.Module("config", fx.Supply(cfg))
}
