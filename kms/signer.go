package kms

import (
	"context"
	"fmt"
	"os"

	"github.com/ruteri/trustroot-signer/cryptoutils"
	"github.com/ruteri/trustroot-signer/interfaces"
	"github.com/secure-systems-lab/go-securesystemslib/signerverifier"
)

// KeySigner is a signing capability backed by a private key held in memory.
type KeySigner struct {
	public interfaces.KeyDescriptor
	sv     cryptoutils.SignerVerifier
}

// NewKeySigner creates a signer from a key with its private part populated.
func NewKeySigner(key *signerverifier.SSLibKey) (*KeySigner, error) {
	if key.KeyVal.Private == "" {
		return nil, fmt.Errorf("%w: key has no private part", interfaces.ErrNoSigningKey)
	}

	sv, err := cryptoutils.NewSignerVerifier(key)
	if err != nil {
		return nil, err
	}

	return &KeySigner{
		public: interfaces.KeyDescriptor{
			KeyType: key.KeyType,
			Scheme:  key.Scheme,
			KeyVal:  signerverifier.KeyVal{Public: key.KeyVal.Public},
		},
		sv: sv,
	}, nil
}

// LoadSigningKey reads a private key file.
func LoadSigningKey(path string) (*KeySigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrNoSigningKey, err)
	}

	key, err := cryptoutils.LoadPrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key %s: %w", path, err)
	}
	return NewKeySigner(key)
}

func (s *KeySigner) Public() interfaces.KeyDescriptor {
	return s.public
}

func (s *KeySigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	return s.sv.Sign(ctx, payload)
}

var _ interfaces.SigningCapability = (*KeySigner)(nil)
