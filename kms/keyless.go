package kms

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ruteri/trustroot-signer/cryptoutils"
	"github.com/ruteri/trustroot-signer/interfaces"
	"github.com/secure-systems-lab/go-securesystemslib/signerverifier"
)

// KeylessIssuer is the OIDC issuer of automation workflow identities.
const KeylessIssuer = "https://token.actions.githubusercontent.com"

// KeylessWorkflows are the automation workflows that sign online roles.
var KeylessWorkflows = []string{"snapshot.yml", "version-bumps.yml"}

// RepoNameFromRemote extracts "owner/repo" from an https or ssh remote URL.
func RepoNameFromRemote(remoteURL string) (string, error) {
	path := remoteURL
	if u, err := url.Parse(remoteURL); err == nil && u.Scheme != "" {
		path = u.Path
	}
	path = strings.TrimSuffix(path, ".git")

	// scp-like ssh urls carry the host before a colon
	if idx := strings.LastIndex(path, ":"); idx >= 0 {
		path = path[idx+1:]
	}
	path = strings.TrimLeft(path, "/")

	if path == "" {
		return "", fmt.Errorf("cannot derive repository name from %q", remoteURL)
	}
	return path, nil
}

// KeylessDescriptors returns one keyless identity per automation workflow of
// the repository.
func KeylessDescriptors(remoteURL string) ([]interfaces.KeyDescriptor, error) {
	repo, err := RepoNameFromRemote(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrKeyResolution, err)
	}

	keys := make([]interfaces.KeyDescriptor, 0, len(KeylessWorkflows))
	for _, workflow := range KeylessWorkflows {
		keys = append(keys, interfaces.KeyDescriptor{
			KeyType: cryptoutils.KeylessKeyType,
			Scheme:  cryptoutils.KeylessScheme,
			KeyVal: signerverifier.KeyVal{
				Identity: fmt.Sprintf("https://github.com/%s/.github/workflows/%s@refs/heads/main", repo, workflow),
				Issuer:   KeylessIssuer,
			},
			OnlineURI: interfaces.SigstoreScheme + ":",
		})
	}
	return keys, nil
}

// TestKeyLocator points the online signer at a private key in the environment.
const TestKeyLocator = interfaces.EnvVarScheme + ":LOCAL_TESTING_KEY"

const testKeyPublic = "fa472895c9756c2b9bcd1440bf867d0fa5c4edee79e9792fa9822be3dd6fcbb3"

// TestKeyDescriptor returns the fixed ed25519 test key. It allows exercising
// the whole pipeline without cloud credentials and must not be used for
// production repositories.
func TestKeyDescriptor() interfaces.KeyDescriptor {
	return interfaces.KeyDescriptor{
		KeyType:   cryptoutils.ED25519KeyType,
		Scheme:    cryptoutils.ED25519Scheme,
		KeyVal:    signerverifier.KeyVal{Public: testKeyPublic},
		OnlineURI: TestKeyLocator,
	}
}
