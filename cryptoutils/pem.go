package cryptoutils

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"
)

// EncodePublicKeyPEM encodes a public key as a PEM PKIX block.
func EncodePublicKeyPEM(pub crypto.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: publicKeyPEMType, Bytes: der}), nil
}

// ParsePublicKeyDER parses a DER encoded PKIX public key, the format returned
// by cloud key management services.
func ParsePublicKeyDER(der []byte) (crypto.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return pub, nil
}

// ParsePublicKeyPEM parses a PEM encoded PKIX public key.
func ParsePublicKeyPEM(pemBytes []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != publicKeyPEMType {
		return nil, errors.New("failed to decode public key PEM block")
	}
	return ParsePublicKeyDER(block.Bytes)
}

// CanonicalJSON returns the canonical JSON encoding of v, the byte string
// signatures are computed over.
func CanonicalJSON(v any) ([]byte, error) {
	return cjson.EncodeCanonical(v)
}
