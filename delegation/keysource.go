package delegation

import (
	"context"
	"fmt"

	"github.com/ruteri/trustroot-signer/interfaces"
	"github.com/ruteri/trustroot-signer/kms"
	"github.com/ruteri/trustroot-signer/prompt"
)

type keySource int

const (
	keylessSource keySource = iota + 1
	awsKMSSource
	vaultSource
	testKeySource
)

// KeySourceSelector lets the operator pick where the online keys come from.
type KeySourceSelector struct {
	prompt     interfaces.Prompt
	provider   interfaces.KeyProvider
	vcs        interfaces.VCS
	pullRemote string
}

func NewKeySourceSelector(p interfaces.Prompt, provider interfaces.KeyProvider, vcs interfaces.VCS, pullRemote string) *KeySourceSelector {
	return &KeySourceSelector{
		prompt:     p,
		provider:   provider,
		vcs:        vcs,
		pullRemote: pullRemote,
	}
}

// defaultSource offers the source of the current online key first.
func defaultSource(current string) keySource {
	locator, err := interfaces.NewKeyLocator(current)
	if err != nil {
		return keylessSource
	}
	switch {
	case locator.IsKeyless():
		return keylessSource
	case locator.IsAWSKMS():
		return awsKMSSource
	case locator.IsVault():
		return vaultSource
	case locator.IsEnvVar():
		return testKeySource
	default:
		return keylessSource
	}
}

// Select returns the keys of the chosen source, defaulting to the source of
// the current locator. Resolution failures are returned as is and end the run.
func (s *KeySourceSelector) Select(ctx context.Context, current string) ([]interfaces.KeyDescriptor, error) {
	s.prompt.Echo(" 1. Keyless automation identity (Sigstore)")
	s.prompt.Echo(" 2. AWS KMS")
	s.prompt.Echo(" 3. HashiCorp Vault transit")
	s.prompt.Echo(" 4. Local test key (testing only)")

	choice, err := prompt.AskInt(s.prompt, "Please select online key type", int(defaultSource(current)), int(keylessSource), int(testKeySource))
	if err != nil {
		return nil, err
	}

	switch keySource(choice) {
	case keylessSource:
		return s.Keyless(ctx)

	case awsKMSSource:
		keyID, err := s.askString("Enter an AWS KMS key id, ARN or alias")
		if err != nil {
			return nil, err
		}
		_, key, err := s.provider.ImportCloudKey(ctx, interfaces.AWSKMS, keyID)
		if err != nil {
			return nil, fmt.Errorf("failed to read AWS KMS key: %w", err)
		}
		return []interfaces.KeyDescriptor{key}, nil

	case vaultSource:
		mount, err := s.askString("Enter Vault transit mount path")
		if err != nil {
			return nil, err
		}
		name, err := s.askString("Enter key name")
		if err != nil {
			return nil, err
		}
		_, key, err := s.provider.ImportCloudKey(ctx, interfaces.VaultTransit, mount, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read Vault transit key: %w", err)
		}
		return []interfaces.KeyDescriptor{key}, nil

	default:
		s.prompt.Echo("Warning: the test key is public, do not use it for production repositories")
		return []interfaces.KeyDescriptor{kms.TestKeyDescriptor()}, nil
	}
}

// Keyless derives the automation identities of the pull remote repository.
func (s *KeySourceSelector) Keyless(ctx context.Context) ([]interfaces.KeyDescriptor, error) {
	remoteURL, err := s.vcs.CurrentRemoteURL(ctx, s.pullRemote)
	if err != nil {
		return nil, err
	}
	keys, err := s.provider.DeriveKeylessDescriptors(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to derive keyless identities: %w", err)
	}
	return keys, nil
}

func (s *KeySourceSelector) askString(message string) (string, error) {
	for {
		answer, err := s.prompt.Ask(message, "")
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
	}
}
