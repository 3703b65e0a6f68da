package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// WriteSample writes a config file populated with defaults to path.
func WriteSample(path string) error {
	cfg := Default()
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode sample config: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
