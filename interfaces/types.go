package interfaces

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/ruteri/trustroot-signer/cryptoutils"
	"github.com/secure-systems-lab/go-securesystemslib/signerverifier"
)

// Top-level role names.
const (
	RootRole      = "root"
	TargetsRole   = "targets"
	TimestampRole = "timestamp"
	SnapshotRole  = "snapshot"
)

// Defaults for a newly created offline role.
const (
	DefaultExpiryPeriod  = 365
	DefaultSigningPeriod = 60
)

// Defaults for the timestamp role of a new repository. The snapshot role
// inherits the root periods.
const (
	DefaultTimestampExpiry  = 2
	DefaultTimestampSigning = 1
)

// IsOnlineRole reports whether role is signed by the online key set.
func IsOnlineRole(role string) bool {
	return role == TimestampRole || role == SnapshotRole
}

var signerHandleRegex = regexp.MustCompile(`^@[0-9a-zA-Z\-]+$`)

// NormalizeSignerHandle prefixes "@" when missing and validates the result.
func NormalizeSignerHandle(handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if !strings.HasPrefix(handle, "@") {
		handle = "@" + handle
	}
	if !signerHandleRegex.MatchString(handle) {
		return "", fmt.Errorf("invalid username %s", handle)
	}
	return handle, nil
}

// ParseSigners parses a comma separated list of signer handles. Surrounding
// brackets are ignored so that the list can be echoed back as displayed.
func ParseSigners(input string) ([]string, error) {
	input = strings.Trim(strings.TrimSpace(input), "[]")
	if strings.TrimSpace(input) == "" {
		return nil, errors.New("must have at least one signer")
	}

	signers := []string{}
	for _, entry := range strings.Split(input, ",") {
		handle, err := NormalizeSignerHandle(entry)
		if err != nil {
			return nil, err
		}
		if slices.Contains(signers, handle) {
			return nil, fmt.Errorf("duplicate signer %s", handle)
		}
		signers = append(signers, handle)
	}
	return signers, nil
}

// OfflineRoleConfig is the quorum specification of a role signed by humans.
type OfflineRoleConfig struct {
	Signers       []string
	Threshold     int
	ExpiryPeriod  int
	SigningPeriod int
}

// DefaultOfflineRoleConfig returns the configuration offered for a role that
// does not exist yet: the acting user as the only signer.
func DefaultOfflineRoleConfig(user string) OfflineRoleConfig {
	return OfflineRoleConfig{
		Signers:       []string{user},
		Threshold:     1,
		ExpiryPeriod:  DefaultExpiryPeriod,
		SigningPeriod: DefaultSigningPeriod,
	}
}

// Clone returns a deep copy.
func (c OfflineRoleConfig) Clone() OfflineRoleConfig {
	c.Signers = slices.Clone(c.Signers)
	return c
}

// Equal compares two configurations field by field. Signers compare as a set.
func (c OfflineRoleConfig) Equal(other OfflineRoleConfig) bool {
	return slices.Equal(sortedSigners(c.Signers), sortedSigners(other.Signers)) &&
		c.Threshold == other.Threshold &&
		c.ExpiryPeriod == other.ExpiryPeriod &&
		c.SigningPeriod == other.SigningPeriod
}

func sortedSigners(signers []string) []string {
	sorted := slices.Clone(signers)
	slices.Sort(sorted)
	return sorted
}

// HasSigner reports whether handle is one of the configured signers.
func (c OfflineRoleConfig) HasSigner(handle string) bool {
	return slices.Contains(c.Signers, handle)
}

// Validate checks the quorum invariants. The relation between signing and
// expiry period is deliberately not checked.
func (c OfflineRoleConfig) Validate() error {
	if len(c.Signers) == 0 {
		return errors.New("must have at least one signer")
	}
	sorted := sortedSigners(c.Signers)
	if len(slices.Compact(sorted)) != len(c.Signers) {
		return errors.New("signers must be unique")
	}
	if c.Threshold < 1 || c.Threshold > len(c.Signers) {
		return fmt.Errorf("threshold %d out of range [1, %d]", c.Threshold, len(c.Signers))
	}
	if c.ExpiryPeriod < 1 || c.SigningPeriod < 1 {
		return errors.New("expiry and signing periods must be positive")
	}
	return nil
}

// KeyDescriptor is a public key as recorded in role metadata.
type KeyDescriptor struct {
	KeyType string                `json:"keytype"`
	Scheme  string                `json:"scheme"`
	KeyVal  signerverifier.KeyVal `json:"keyval"`

	// OnlineURI tells the online signer how to reach the key at signing time.
	OnlineURI string `json:"x-trustroot-online-uri,omitempty"`
	// KeyOwner is the signer handle owning an offline key.
	KeyOwner string `json:"x-trustroot-keyowner,omitempty"`
}

// ID returns the key identifier derived from the public key material.
func (k KeyDescriptor) ID() (string, error) {
	return cryptoutils.KeyID(k.KeyType, k.Scheme, k.KeyVal)
}

// SSLibKey converts the descriptor to the securesystemslib key representation.
func (k KeyDescriptor) SSLibKey() (*signerverifier.SSLibKey, error) {
	keyID, err := k.ID()
	if err != nil {
		return nil, err
	}
	return &signerverifier.SSLibKey{
		KeyID:   keyID,
		KeyType: k.KeyType,
		Scheme:  k.Scheme,
		KeyVal:  k.KeyVal,
	}, nil
}

// OnlineKeySet is the key configuration shared by the timestamp and snapshot roles.
type OnlineKeySet struct {
	Keys             []KeyDescriptor
	Threshold        int
	TimestampExpiry  int
	TimestampSigning int
	SnapshotExpiry   int
	SnapshotSigning  int
}

// DefaultOnlineKeySet returns the online configuration offered for a new
// repository: timestamp uses short fixed periods, snapshot inherits the root periods.
func DefaultOnlineKeySet(keys []KeyDescriptor, root OfflineRoleConfig) OnlineKeySet {
	return OnlineKeySet{
		Keys:             slices.Clone(keys),
		Threshold:        1,
		TimestampExpiry:  DefaultTimestampExpiry,
		TimestampSigning: DefaultTimestampSigning,
		SnapshotExpiry:   root.ExpiryPeriod,
		SnapshotSigning:  root.SigningPeriod,
	}
}

// Clone returns a deep copy.
func (s OnlineKeySet) Clone() OnlineKeySet {
	s.Keys = slices.Clone(s.Keys)
	return s
}

// Equal compares two online configurations field by field.
func (s OnlineKeySet) Equal(other OnlineKeySet) bool {
	return slices.Equal(s.Keys, other.Keys) &&
		s.Threshold == other.Threshold &&
		s.TimestampExpiry == other.TimestampExpiry &&
		s.TimestampSigning == other.TimestampSigning &&
		s.SnapshotExpiry == other.SnapshotExpiry &&
		s.SnapshotSigning == other.SnapshotSigning
}

// Locator returns the locator of the first key, used for display.
func (s OnlineKeySet) Locator() string {
	if len(s.Keys) == 0 {
		return ""
	}
	return s.Keys[0].OnlineURI
}

// Periods returns the (expiry, signing) periods for an online role.
func (s OnlineKeySet) Periods(role string) (int, int) {
	if role == TimestampRole {
		return s.TimestampExpiry, s.TimestampSigning
	}
	return s.SnapshotExpiry, s.SnapshotSigning
}

// RepositoryState describes whether the trust root exists yet.
type RepositoryState int

const (
	// Uninitialized means no root and targets metadata exist.
	Uninitialized RepositoryState = iota
	// Active means root and targets exist and roles may be modified individually.
	Active
)

// String returns the state name.
func (s RepositoryState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}
