package kms

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/trustroot-signer/cryptoutils"
	"github.com/ruteri/trustroot-signer/interfaces"
)

// VaultImporter reads public keys of HashiCorp Vault transit keys.
type VaultImporter struct {
	client *api.Client
	log    *slog.Logger
}

// NewVaultImporter creates an importer for the Vault server at address. The
// token is taken from the environment (VAULT_TOKEN). An empty address falls
// back to VAULT_ADDR.
func NewVaultImporter(address string, log *slog.Logger) (*VaultImporter, error) {
	config := api.DefaultConfig()
	if address != "" {
		config.Address = address
	}
	config.HttpClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	return NewVaultImporterWithClient(client, log), nil
}

func NewVaultImporterWithClient(client *api.Client, log *slog.Logger) *VaultImporter {
	return &VaultImporter{client: client, log: log}
}

// ImportKey reads the latest version of the transit key name mounted at mount.
func (i *VaultImporter) ImportKey(ctx context.Context, mount, name string) (string, interfaces.KeyDescriptor, error) {
	mount = strings.Trim(mount, "/")
	name = strings.Trim(name, "/")
	path := fmt.Sprintf("%s/keys/%s", mount, name)

	secret, err := i.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", interfaces.KeyDescriptor{}, fmt.Errorf("failed to read Vault key %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", interfaces.KeyDescriptor{}, fmt.Errorf("vault key %s not found", path)
	}

	keyType, _ := secret.Data["type"].(string)
	version, err := latestVersion(secret.Data["latest_version"])
	if err != nil {
		return "", interfaces.KeyDescriptor{}, fmt.Errorf("vault key %s: %w", path, err)
	}

	versions, _ := secret.Data["keys"].(map[string]interface{})
	entry, _ := versions[version].(map[string]interface{})
	publicKey, _ := entry["public_key"].(string)
	if publicKey == "" {
		return "", interfaces.KeyDescriptor{}, fmt.Errorf("vault key %s has no public key, is it a signing key?", path)
	}

	desc, err := vaultDescriptor(keyType, publicKey)
	if err != nil {
		return "", interfaces.KeyDescriptor{}, fmt.Errorf("vault key %s: %w", path, err)
	}

	locator := fmt.Sprintf("%s:%s/%s", interfaces.HashiVaultScheme, mount, name)
	desc.OnlineURI = locator

	i.log.Debug("Imported Vault transit key",
		slog.String("locator", locator),
		slog.String("type", keyType),
		slog.String("version", version))

	return locator, desc, nil
}

func latestVersion(value interface{}) (string, error) {
	switch v := value.(type) {
	case json.Number:
		return v.String(), nil
	case float64:
		return fmt.Sprintf("%d", int64(v)), nil
	case int:
		return fmt.Sprintf("%d", v), nil
	default:
		return "", fmt.Errorf("unexpected latest_version %v", value)
	}
}

func vaultDescriptor(keyType, publicKey string) (interfaces.KeyDescriptor, error) {
	switch keyType {
	case "ed25519":
		raw, err := base64.StdEncoding.DecodeString(publicKey)
		if err != nil {
			return interfaces.KeyDescriptor{}, fmt.Errorf("invalid ed25519 public key: %w", err)
		}
		desc := interfaces.KeyDescriptor{KeyType: cryptoutils.ED25519KeyType, Scheme: cryptoutils.ED25519Scheme}
		desc.KeyVal.Public = hex.EncodeToString(raw)
		return desc, nil
	case "ecdsa-p256", "rsa-2048", "rsa-3072", "rsa-4096":
		pub, err := cryptoutils.ParsePublicKeyPEM([]byte(publicKey))
		if err != nil {
			return interfaces.KeyDescriptor{}, err
		}
		key, err := cryptoutils.SSLibKeyFromPublicKey(pub)
		if err != nil {
			return interfaces.KeyDescriptor{}, err
		}
		return interfaces.KeyDescriptor{KeyType: key.KeyType, Scheme: key.Scheme, KeyVal: key.KeyVal}, nil
	default:
		return interfaces.KeyDescriptor{}, fmt.Errorf("unsupported transit key type %q", keyType)
	}
}
