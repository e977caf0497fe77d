package interfaces

import (
	"fmt"
	"strings"
)

// Online key locator schemes.
const (
	SigstoreScheme   = "sigstore"
	AWSKMSScheme     = "awskms"
	HashiVaultScheme = "hashivault"
	EnvVarScheme     = "envvar"
)

// KeyLocator is the URI recorded with an online key telling the online signer
// how to reach the key.
type KeyLocator struct {
	Raw    string // Original URI
	Scheme string // Provider scheme
	Path   string // Provider specific key reference
}

// NewKeyLocator parses and validates a locator URI of the form scheme:path.
func NewKeyLocator(uri string) (KeyLocator, error) {
	scheme, path, found := strings.Cut(uri, ":")
	if !found {
		return KeyLocator{}, fmt.Errorf("%w: missing scheme in %q", ErrInvalidLocator, uri)
	}

	switch scheme {
	case SigstoreScheme:
		// Keyless locators carry no key reference
	case AWSKMSScheme, HashiVaultScheme, EnvVarScheme:
		if path == "" {
			return KeyLocator{}, fmt.Errorf("%w: empty key reference in %q", ErrInvalidLocator, uri)
		}
	default:
		return KeyLocator{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocator, scheme)
	}

	return KeyLocator{
		Raw:    uri,
		Scheme: scheme,
		Path:   path,
	}, nil
}

// String returns the original URI string.
func (loc KeyLocator) String() string {
	return loc.Raw
}

// IsKeyless checks if the key is an identity bound to an automation workflow.
func (loc KeyLocator) IsKeyless() bool {
	return loc.Scheme == SigstoreScheme
}

// IsAWSKMS checks if the key lives in AWS KMS.
func (loc KeyLocator) IsAWSKMS() bool {
	return loc.Scheme == AWSKMSScheme
}

// IsVault checks if the key lives in a HashiCorp Vault transit engine.
func (loc KeyLocator) IsVault() bool {
	return loc.Scheme == HashiVaultScheme
}

// IsEnvVar checks if the private key is read from an environment variable.
func (loc KeyLocator) IsEnvVar() bool {
	return loc.Scheme == EnvVarScheme
}
