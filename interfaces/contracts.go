package interfaces

import "context"

// SigningCapability is the acting user's ability to produce signatures, for
// example a key file or hardware token.
type SigningCapability interface {
	// Public returns the public key. KeyOwner is left empty.
	Public() KeyDescriptor

	// Sign signs payload and returns the raw signature.
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}

// MetadataStore owns the durable role metadata in the repository checkout.
type MetadataStore interface {
	// State reports whether the trust root has been created.
	State() RepositoryState

	// UserIdentity returns the acting signer's handle.
	UserIdentity() string

	// GetRoleConfig returns the configuration of an offline role, or
	// ErrRoleNotFound when the role does not exist.
	GetRoleConfig(role string) (OfflineRoleConfig, error)

	// SetRoleConfig replaces the configuration of an offline role. The signer,
	// when not nil, provides the acting user's key for the delegation.
	SetRoleConfig(ctx context.Context, role string, config OfflineRoleConfig, signer SigningCapability) error

	// GetOnlineConfig returns the online key configuration.
	GetOnlineConfig() (OnlineKeySet, error)

	// SetOnlineConfig replaces the online key configuration.
	SetOnlineConfig(ctx context.Context, config OnlineKeySet) error

	// UnsignedRoles returns the modified roles that still need the acting
	// user's signature, computed from the persisted metadata.
	UnsignedRoles() ([]string, error)

	// Invites returns the roles the acting user has been invited to sign.
	Invites() ([]string, error)

	// Sign adds the acting user's signature to the role metadata.
	Sign(ctx context.Context, role string, signer SigningCapability) error

	// Status returns a human readable signing status of the role.
	Status(role string) (string, error)
}

// CloudProvider selects a cloud key management service for online key import.
type CloudProvider int

const (
	// AWSKMS imports an asymmetric AWS KMS key by key id, ARN or alias.
	AWSKMS CloudProvider = iota
	// VaultTransit imports a HashiCorp Vault transit key by mount and key name.
	VaultTransit
)

// String returns the provider name.
func (p CloudProvider) String() string {
	switch p {
	case AWSKMS:
		return "AWS KMS"
	case VaultTransit:
		return "HashiCorp Vault"
	default:
		return "unknown"
	}
}

// KeyProvider resolves key material.
type KeyProvider interface {
	// ImportCloudKey resolves a cloud key and returns its locator URI and public key.
	ImportCloudKey(ctx context.Context, provider CloudProvider, identifiers ...string) (string, KeyDescriptor, error)

	// DeriveKeylessDescriptors returns one keyless identity per automation
	// workflow of the repository identified by its remote URL.
	DeriveKeylessDescriptors(remoteURL string) ([]KeyDescriptor, error)

	// RequestSigningCapability asks the acting user for their signing key.
	RequestSigningCapability(ctx context.Context) (SigningCapability, error)
}

// VCS is the version control checkout holding the metadata.
type VCS interface {
	// RepositoryRoot returns the top level directory of the checkout.
	RepositoryRoot(ctx context.Context) (string, error)

	// CurrentRemoteURL returns the URL configured for a remote.
	CurrentRemoteURL(ctx context.Context, remote string) (string, error)

	// StageAndCommit stages paths and commits them with message.
	StageAndCommit(ctx context.Context, paths []string, message string) error

	// PushRef pushes localRef to remoteRef on remote.
	PushRef(ctx context.Context, remote, localRef, remoteRef string) error

	// CreateLocalBranch creates a branch at the current commit.
	CreateLocalBranch(ctx context.Context, name string) error
}

// Prompt is the line oriented terminal the operator answers.
type Prompt interface {
	// Echo prints a line.
	Echo(format string, args ...any)

	// Ask prints message and returns the entered line, or defaultValue when the
	// line is empty. It returns ErrAborted when input ends.
	Ask(message, defaultValue string) (string, error)
}
