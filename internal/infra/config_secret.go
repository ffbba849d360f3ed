package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SecretConfig matches the structure of secrets/paper.yaml and live.yaml.
// The exchange password never lives in the main config file.
type SecretConfig struct {
	Exchange struct {
		Password string `yaml:"password"`
	} `yaml:"exchange"`
}

// LoadSecretConfig loads credentials from a separate yaml file, with
// the CAPM_PASSWORD environment variable taking precedence. A missing
// file is an error unless the variable covers it (Fail Fast).
func LoadSecretConfig(path string) (*SecretConfig, error) {
	var cfg SecretConfig

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse secret config: %w", err)
		}
	}

	if pw := os.Getenv("CAPM_PASSWORD"); pw != "" {
		cfg.Exchange.Password = pw
	}

	if cfg.Exchange.Password == "" {
		if err != nil {
			return nil, fmt.Errorf("failed to read secret config: %w", err)
		}
		return nil, fmt.Errorf("secret config %s has no exchange password", path)
	}

	return &cfg, nil
}
