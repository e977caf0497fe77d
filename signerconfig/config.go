// Package signerconfig reads the per-repository signer settings file.
package signerconfig

import (
	"errors"
	"fmt"
	"os"

	"github.com/ruteri/trustroot-signer/interfaces"
	"gopkg.in/yaml.v3"
)

// FileName is the settings file name at the repository root.
const FileName = ".trustroot-sign.yaml"

const defaultRemote = "origin"

// Config is the signer's local configuration.
type Config struct {
	UserName   string `yaml:"user-name"`
	PullRemote string `yaml:"pull-remote,omitempty"`
	PushRemote string `yaml:"push-remote,omitempty"`
	// SigningKey is the path of the signer's private key file.
	SigningKey   string `yaml:"signing-key,omitempty"`
	AWSRegion    string `yaml:"aws-region,omitempty"`
	VaultAddress string `yaml:"vault-address,omitempty"`
}

// Load reads and validates the settings file. Remotes default to origin, the
// push remote to the pull remote.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("signer settings %s not found, create it with at least user-name", path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read signer settings: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse signer settings %s: %w", path, err)
	}

	if cfg.UserName == "" {
		return nil, fmt.Errorf("signer settings %s: user-name is required", path)
	}
	if cfg.UserName, err = interfaces.NormalizeSignerHandle(cfg.UserName); err != nil {
		return nil, fmt.Errorf("signer settings %s: %w", path, err)
	}

	if cfg.PullRemote == "" {
		cfg.PullRemote = defaultRemote
	}
	if cfg.PushRemote == "" {
		cfg.PushRemote = cfg.PullRemote
	}
	return cfg, nil
}
