package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LoadProfile reads a configuration profile from a TOML file. The profile is
// not validated; callers decide whether it is about to be written out.
func LoadProfile(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return cfg, nil
}

// SaveProfile writes the record to path as a TOML profile.
func SaveProfile(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("save profile: %w", err)
	}
	return f.Close()
}
