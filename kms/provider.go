package kms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruteri/trustroot-signer/interfaces"
)

// ProviderConfig holds the signer settings the key provider needs.
type ProviderConfig struct {
	// SigningKey is the path of the acting signer's private key file.
	SigningKey   string
	AWSRegion    string
	VaultAddress string
}

// Provider implements interfaces.KeyProvider. Cloud clients are created on
// first use so that signers without cloud credentials are not affected.
type Provider struct {
	config ProviderConfig
	prompt interfaces.Prompt
	log    *slog.Logger

	aws   *AWSImporter
	vault *VaultImporter
}

func NewProvider(config ProviderConfig, prompt interfaces.Prompt, log *slog.Logger) *Provider {
	return &Provider{
		config: config,
		prompt: prompt,
		log:    log,
	}
}

// WithAWSImporter replaces the AWS KMS importer.
func (p *Provider) WithAWSImporter(importer *AWSImporter) *Provider {
	p.aws = importer
	return p
}

// WithVaultImporter replaces the Vault transit importer.
func (p *Provider) WithVaultImporter(importer *VaultImporter) *Provider {
	p.vault = importer
	return p
}

func (p *Provider) ImportCloudKey(ctx context.Context, provider interfaces.CloudProvider, identifiers ...string) (string, interfaces.KeyDescriptor, error) {
	locator, key, err := p.importCloudKey(ctx, provider, identifiers)
	if err != nil {
		return "", interfaces.KeyDescriptor{}, fmt.Errorf("%w: %s: %v", interfaces.ErrKeyResolution, provider, err)
	}
	return locator, key, nil
}

func (p *Provider) importCloudKey(ctx context.Context, provider interfaces.CloudProvider, identifiers []string) (string, interfaces.KeyDescriptor, error) {
	switch provider {
	case interfaces.AWSKMS:
		if len(identifiers) != 1 {
			return "", interfaces.KeyDescriptor{}, errors.New("expected a key id")
		}
		if p.aws == nil {
			importer, err := NewAWSImporter(p.config.AWSRegion, p.log)
			if err != nil {
				return "", interfaces.KeyDescriptor{}, err
			}
			p.aws = importer
		}
		return p.aws.ImportKey(ctx, identifiers[0])

	case interfaces.VaultTransit:
		if len(identifiers) != 2 {
			return "", interfaces.KeyDescriptor{}, errors.New("expected a mount path and a key name")
		}
		if p.vault == nil {
			importer, err := NewVaultImporter(p.config.VaultAddress, p.log)
			if err != nil {
				return "", interfaces.KeyDescriptor{}, err
			}
			p.vault = importer
		}
		return p.vault.ImportKey(ctx, identifiers[0], identifiers[1])

	default:
		return "", interfaces.KeyDescriptor{}, fmt.Errorf("unsupported provider %d", provider)
	}
}

func (p *Provider) DeriveKeylessDescriptors(remoteURL string) ([]interfaces.KeyDescriptor, error) {
	return KeylessDescriptors(remoteURL)
}

// RequestSigningCapability loads the configured signing key. Without a
// configured key the operator is asked for the key file path.
func (p *Provider) RequestSigningCapability(ctx context.Context) (interfaces.SigningCapability, error) {
	path := p.config.SigningKey
	if path == "" {
		answer, err := p.prompt.Ask("Enter path to your signing key", "")
		if err != nil {
			return nil, err
		}
		if answer == "" {
			return nil, interfaces.ErrNoSigningKey
		}
		path = answer
	}

	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	signer, err := LoadSigningKey(path)
	if err != nil {
		return nil, err
	}

	id, _ := signer.Public().ID()
	p.log.Debug("Loaded signing key", slog.String("path", path), slog.String("keyid", id))
	return signer, nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", path, err)
	}
	return filepath.Join(home, path[2:]), nil
}

var _ interfaces.KeyProvider = (*Provider)(nil)
