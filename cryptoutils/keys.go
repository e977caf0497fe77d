package cryptoutils

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"
	"github.com/secure-systems-lab/go-securesystemslib/signerverifier"
	"golang.org/x/crypto/ssh"
)

// Key types and schemes recorded in role metadata.
const (
	ED25519KeyType   = "ed25519"
	ED25519Scheme    = "ed25519"
	ECDSAKeyType     = "ecdsa"
	ECDSAScheme      = "ecdsa-sha2-nistp256"
	RSAKeyType       = "rsa"
	RSAScheme        = "rsassa-pss-sha256"
	KeylessKeyType   = "sigstore-oidc"
	KeylessScheme    = "Fulcio"
	publicKeyPEMType = "PUBLIC KEY"
)

var ErrUnsupportedKey = errors.New("unsupported key type")

// KeyID returns the hex encoded SHA-256 of the canonical JSON encoding of the
// public parts of a key.
func KeyID(keyType, scheme string, keyVal signerverifier.KeyVal) (string, error) {
	public := map[string]any{}
	if keyVal.Public != "" {
		public["public"] = keyVal.Public
	}
	if keyVal.Certificate != "" {
		public["certificate"] = keyVal.Certificate
	}
	if keyVal.Identity != "" {
		public["identity"] = keyVal.Identity
	}
	if keyVal.Issuer != "" {
		public["issuer"] = keyVal.Issuer
	}
	if len(public) == 0 {
		return "", fmt.Errorf("%w: key has no public material", ErrUnsupportedKey)
	}

	encoded, err := cjson.EncodeCanonical(map[string]any{
		"keytype": keyType,
		"scheme":  scheme,
		"keyval":  public,
	})
	if err != nil {
		return "", fmt.Errorf("could not encode key: %w", err)
	}

	digest := sha256.Sum256(encoded)
	return hex.EncodeToString(digest[:]), nil
}

// SSLibKeyFromPublicKey converts a public key into the metadata key format.
func SSLibKeyFromPublicKey(pub crypto.PublicKey) (*signerverifier.SSLibKey, error) {
	key := &signerverifier.SSLibKey{}

	switch k := pub.(type) {
	case ed25519.PublicKey:
		key.KeyType = ED25519KeyType
		key.Scheme = ED25519Scheme
		key.KeyVal.Public = hex.EncodeToString(k)
	case *ecdsa.PublicKey:
		pemBytes, err := EncodePublicKeyPEM(k)
		if err != nil {
			return nil, err
		}
		key.KeyType = ECDSAKeyType
		key.Scheme = ECDSAScheme
		key.KeyVal.Public = string(pemBytes)
	case *rsa.PublicKey:
		pemBytes, err := EncodePublicKeyPEM(k)
		if err != nil {
			return nil, err
		}
		key.KeyType = RSAKeyType
		key.Scheme = RSAScheme
		key.KeyVal.Public = string(pemBytes)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	}

	keyID, err := KeyID(key.KeyType, key.Scheme, key.KeyVal)
	if err != nil {
		return nil, err
	}
	key.KeyID = keyID
	return key, nil
}

// LoadPrivateKey parses a PEM encoded private key, either PKCS#8 or OpenSSH,
// into the metadata key format with the private part populated.
func LoadPrivateKey(pemBytes []byte) (*signerverifier.SSLibKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("failed to decode private key PEM block")
	}

	var (
		parsed any
		err    error
	)
	switch block.Type {
	case "OPENSSH PRIVATE KEY":
		parsed, err = ssh.ParseRawPrivateKey(pemBytes)
	case "EC PRIVATE KEY":
		parsed, err = x509.ParseECPrivateKey(block.Bytes)
	default:
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	switch k := parsed.(type) {
	case *ed25519.PrivateKey:
		// ssh returns a pointer for ed25519 keys
		return ed25519Key(*k)
	case ed25519.PrivateKey:
		return ed25519Key(k)
	case *ecdsa.PrivateKey:
		return pkcs8Key(k, k.Public())
	case *rsa.PrivateKey:
		return pkcs8Key(k, k.Public())
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, parsed)
	}
}

func ed25519Key(priv ed25519.PrivateKey) (*signerverifier.SSLibKey, error) {
	key, err := SSLibKeyFromPublicKey(priv.Public())
	if err != nil {
		return nil, err
	}
	key.KeyVal.Private = hex.EncodeToString(priv)
	return key, nil
}

func pkcs8Key(priv any, pub crypto.PublicKey) (*signerverifier.SSLibKey, error) {
	key, err := SSLibKeyFromPublicKey(pub)
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	key.KeyVal.Private = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	return key, nil
}
