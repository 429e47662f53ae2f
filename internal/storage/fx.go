package storage

import (
	"fmt"

	"github.com/smallbiznis/songlake/internal/config"
	"go.uber.org/fx"
)

// Stores exposes the input and output roots under fx names.
type Stores struct {
	fx.Out

	Input  Store `name:"input"`
	Output Store `name:"output"`
}

func NewStores(cfg config.Config) (Stores, error) {
	s3cfg := S3Config{
		Region:          cfg.AWS.Region,
		Endpoint:        cfg.AWS.Endpoint,
		ForcePathStyle:  cfg.AWS.ForcePathStyle,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
	}
	input, err := Open(cfg.Input, s3cfg)
	if err != nil {
		return Stores{}, fmt.Errorf("input: %w", err)
	}
	output, err := Open(cfg.Output, s3cfg)
	if err != nil {
		return Stores{}, fmt.Errorf("output: %w", err)
	}
	return Stores{Input: input, Output: output}, nil
}

var Module = fx.Module("storage",
	fx.Provide(NewStores),
)
