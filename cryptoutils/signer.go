package cryptoutils

import (
	"context"
	"fmt"

	"github.com/secure-systems-lab/go-securesystemslib/signerverifier"
)

// SignerVerifier signs and verifies payloads with a single key.
type SignerVerifier interface {
	Sign(ctx context.Context, data []byte) ([]byte, error)
	Verify(ctx context.Context, data []byte, sig []byte) error
}

// NewSignerVerifier returns the signer implementation for the key type.
// Keys without private material can only verify.
func NewSignerVerifier(key *signerverifier.SSLibKey) (SignerVerifier, error) {
	switch key.KeyType {
	case ED25519KeyType:
		return signerverifier.NewED25519SignerVerifierFromSSLibKey(key)
	case ECDSAKeyType:
		return signerverifier.NewECDSASignerVerifierFromSSLibKey(key)
	case RSAKeyType:
		return signerverifier.NewRSAPSSSignerVerifierFromSSLibKey(key)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, key.KeyType)
	}
}
