package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"github.com/ruteri/trustroot-signer/cryptoutils"
	"github.com/ruteri/trustroot-signer/interfaces"
)

var roleNameRegex = regexp.MustCompile(`^[0-9a-zA-Z][0-9a-zA-Z\-_.]*$`)

// Repository is the file backed metadata store of one signing event.
type Repository struct {
	files     *FileBackend
	knownGood *FileBackend
	user      string
	now       func() time.Time
	log       *slog.Logger
}

// NewRepository opens the metadata in files for the acting user. knownGood is
// the baseline the signing event is compared against and may be nil when no
// baseline exists.
func NewRepository(files, knownGood *FileBackend, user string, log *slog.Logger) *Repository {
	return &Repository{
		files:     files,
		knownGood: knownGood,
		user:      user,
		now:       time.Now,
		log:       log,
	}
}

// WithClock replaces the clock used for expiry dates.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

func (r *Repository) State() interfaces.RepositoryState {
	if r.files.Exists(fileName(interfaces.RootRole)) && r.files.Exists(fileName(interfaces.TargetsRole)) {
		return interfaces.Active
	}
	return interfaces.Uninitialized
}

func (r *Repository) UserIdentity() string {
	return r.user
}

func (r *Repository) GetRoleConfig(role string) (interfaces.OfflineRoleConfig, error) {
	if interfaces.IsOnlineRole(role) {
		return interfaces.OfflineRoleConfig{}, fmt.Errorf("%s is an online role", role)
	}

	delegator, err := r.open(delegatorOf(role))
	if errors.Is(err, ErrMetadataNotFound) {
		return interfaces.OfflineRoleConfig{}, fmt.Errorf("%w: %s", interfaces.ErrRoleNotFound, role)
	} else if err != nil {
		return interfaces.OfflineRoleConfig{}, err
	}

	entry := roleEntry(&delegator.Signed, role)
	if entry == nil {
		return interfaces.OfflineRoleConfig{}, fmt.Errorf("%w: %s", interfaces.ErrRoleNotFound, role)
	}

	state, err := loadSigningEventState(r.files)
	if err != nil {
		return interfaces.OfflineRoleConfig{}, err
	}

	keys := delegator.Signed.keyStore()
	signers := []string{}
	for _, id := range entry.KeyIDs {
		if owner := keys[id].KeyOwner; owner != "" && !slices.Contains(signers, owner) {
			signers = append(signers, owner)
		}
	}
	for _, invited := range state.InvitedSigners(role) {
		if !slices.Contains(signers, invited) {
			signers = append(signers, invited)
		}
	}

	return interfaces.OfflineRoleConfig{
		Signers:       signers,
		Threshold:     entry.Threshold,
		ExpiryPeriod:  entry.ExpiryPeriod,
		SigningPeriod: entry.SigningPeriod,
	}, nil
}

func (r *Repository) SetRoleConfig(ctx context.Context, role string, config interfaces.OfflineRoleConfig, signer interfaces.SigningCapability) error {
	if interfaces.IsOnlineRole(role) {
		return fmt.Errorf("%s is an online role", role)
	}
	if !roleNameRegex.MatchString(role) {
		return fmt.Errorf("invalid role name %q", role)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration for %s: %w", role, err)
	}

	root, err := r.openOrCreate(interfaces.RootRole)
	if err != nil {
		return err
	}
	delegator := root
	if delegatorOf(role) == interfaces.TargetsRole {
		if delegator, err = r.open(interfaces.TargetsRole); err != nil {
			return err
		}
	}

	before, err := delegator.Payload()
	if err != nil {
		return err
	}

	state, err := loadSigningEventState(r.files)
	if err != nil {
		return err
	}

	keyIDs, err := r.resolveSignerKeys(&delegator.Signed, role, config.Signers, signer, state)
	if err != nil {
		return err
	}

	entry := ensureRoleEntry(&delegator.Signed, role)
	entry.KeyIDs = keyIDs
	entry.Threshold = config.Threshold
	entry.ExpiryPeriod = config.ExpiryPeriod
	entry.SigningPeriod = config.SigningPeriod
	delegator.Signed.pruneKeys()

	// Delegator first, markModified of the delegated role reads its entry.
	// An untouched delegator keeps its signatures.
	after, err := delegator.Payload()
	if err != nil {
		return err
	}
	if !bytes.Equal(before, after) || role == interfaces.RootRole {
		if err := r.markModified(delegatorOf(role), delegator, root); err != nil {
			return err
		}
		if err := r.write(delegatorOf(role), delegator); err != nil {
			return err
		}
	}

	if role != interfaces.RootRole {
		md, err := r.openOrCreate(role)
		if err != nil {
			return err
		}
		if err := r.markModified(role, md, root); err != nil {
			return err
		}
		if err := r.write(role, md); err != nil {
			return err
		}
	}

	if err := state.save(r.files); err != nil {
		return err
	}

	r.log.Debug("Updated role configuration",
		slog.String("role", role),
		slog.Any("signers", config.Signers),
		slog.Int("threshold", config.Threshold))
	return nil
}

// resolveSignerKeys maps signer handles to key ids of the delegator, adding
// the acting user's key when a signing capability is given and recording
// invites for signers without a known key.
func (r *Repository) resolveSignerKeys(delegator *Signed, role string, signers []string, signer interfaces.SigningCapability, state *SigningEventState) ([]string, error) {
	keys := delegator.keyStore()
	keyIDs := []string{}

	for _, handle := range signers {
		keyID := ""
		if handle == r.user && signer != nil {
			desc := signer.Public()
			desc.KeyOwner = r.user
			id, err := desc.ID()
			if err != nil {
				return nil, fmt.Errorf("invalid signing key: %w", err)
			}
			if owner := keys[id].KeyOwner; owner != "" && owner != r.user {
				return nil, fmt.Errorf("signing key %s already belongs to %s", id, owner)
			}
			keys[id] = desc
			keyID = id
		} else {
			keyID = keyOwnedBy(keys, handle)
		}

		if keyID == "" {
			state.addInvite(handle, role)
			continue
		}
		state.removeInvite(handle, role)
		if !slices.Contains(keyIDs, keyID) {
			keyIDs = append(keyIDs, keyID)
		}
	}

	for _, invited := range state.InvitedSigners(role) {
		if !slices.Contains(signers, invited) {
			state.removeInvite(invited, role)
		}
	}
	return keyIDs, nil
}

func (r *Repository) GetOnlineConfig() (interfaces.OnlineKeySet, error) {
	root, err := r.open(interfaces.RootRole)
	if errors.Is(err, ErrMetadataNotFound) {
		return interfaces.OnlineKeySet{}, fmt.Errorf("%w: %s", interfaces.ErrRoleNotFound, interfaces.TimestampRole)
	} else if err != nil {
		return interfaces.OnlineKeySet{}, err
	}

	timestamp := root.Signed.Roles[interfaces.TimestampRole]
	snapshot := root.Signed.Roles[interfaces.SnapshotRole]
	if timestamp == nil || snapshot == nil {
		return interfaces.OnlineKeySet{}, fmt.Errorf("%w: %s", interfaces.ErrRoleNotFound, interfaces.TimestampRole)
	}

	keys := []interfaces.KeyDescriptor{}
	for _, id := range timestamp.KeyIDs {
		key, ok := root.Signed.Keys[id]
		if !ok {
			return interfaces.OnlineKeySet{}, fmt.Errorf("online key %s missing from root", id)
		}
		keys = append(keys, key)
	}

	return interfaces.OnlineKeySet{
		Keys:             keys,
		Threshold:        timestamp.Threshold,
		TimestampExpiry:  timestamp.ExpiryPeriod,
		TimestampSigning: timestamp.SigningPeriod,
		SnapshotExpiry:   snapshot.ExpiryPeriod,
		SnapshotSigning:  snapshot.SigningPeriod,
	}, nil
}

func (r *Repository) SetOnlineConfig(ctx context.Context, config interfaces.OnlineKeySet) error {
	if len(config.Keys) == 0 {
		return errors.New("online configuration must have at least one key")
	}
	if config.Threshold < 1 || config.Threshold > len(config.Keys) {
		return fmt.Errorf("online threshold %d out of range [1, %d]", config.Threshold, len(config.Keys))
	}

	root, err := r.openOrCreate(interfaces.RootRole)
	if err != nil {
		return err
	}

	keyIDs := []string{}
	for _, key := range config.Keys {
		locator, err := interfaces.NewKeyLocator(key.OnlineURI)
		if err != nil {
			return err
		}
		if locator.IsEnvVar() {
			r.log.Warn("Online key is read from an environment variable, use for testing only", slog.String("locator", locator.String()))
		}
		id, err := key.ID()
		if err != nil {
			return fmt.Errorf("invalid online key: %w", err)
		}
		root.Signed.Keys[id] = key
		keyIDs = append(keyIDs, id)
	}

	for _, role := range []string{interfaces.TimestampRole, interfaces.SnapshotRole} {
		entry := ensureRoleEntry(&root.Signed, role)
		entry.KeyIDs = slices.Clone(keyIDs)
		entry.Threshold = config.Threshold
		entry.ExpiryPeriod, entry.SigningPeriod = config.Periods(role)
	}
	root.Signed.pruneKeys()

	if err := r.markModified(interfaces.RootRole, root, root); err != nil {
		return err
	}
	if err := r.write(interfaces.RootRole, root); err != nil {
		return err
	}

	r.log.Debug("Updated online configuration",
		slog.String("locator", config.Locator()),
		slog.Int("keys", len(config.Keys)))
	return nil
}

func (r *Repository) UnsignedRoles() ([]string, error) {
	if !r.files.Exists(fileName(interfaces.RootRole)) {
		return []string{}, nil
	}

	names, err := r.offlineRoles()
	if err != nil {
		return nil, err
	}

	unsigned := []string{}
	for _, name := range names {
		md, err := r.open(name)
		if err != nil {
			return nil, err
		}
		modified, err := r.isModified(name, md)
		if err != nil {
			return nil, err
		}
		if !modified {
			continue
		}

		keys, err := r.signingKeys(name)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if key.KeyOwner != r.user {
				continue
			}
			if !r.verify(md, key) {
				unsigned = append(unsigned, name)
				break
			}
		}
	}
	return unsigned, nil
}

func (r *Repository) Invites() ([]string, error) {
	state, err := loadSigningEventState(r.files)
	if err != nil {
		return nil, err
	}
	return state.InvitedRoles(r.user), nil
}

func (r *Repository) Sign(ctx context.Context, role string, signer interfaces.SigningCapability) error {
	if signer == nil {
		return interfaces.ErrNoSigningKey
	}

	md, err := r.open(role)
	if err != nil {
		return err
	}

	id, err := signer.Public().ID()
	if err != nil {
		return fmt.Errorf("invalid signing key: %w", err)
	}

	keys, err := r.signingKeys(role)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(keys, func(k keyWithID) bool { return k.id == id }) {
		return fmt.Errorf("%w: key %s is not trusted for %s", interfaces.ErrNoSigningKey, id, role)
	}

	payload, err := md.Payload()
	if err != nil {
		return err
	}
	sig, err := signer.Sign(ctx, payload)
	if err != nil {
		return fmt.Errorf("failed to sign %s: %w", role, err)
	}
	md.setSignature(id, hex.EncodeToString(sig))

	if err := r.write(role, md); err != nil {
		return err
	}

	r.log.Debug("Signed role", slog.String("role", role), slog.String("keyid", id))
	return nil
}

// open reads role metadata from the signing event.
func (r *Repository) open(role string) (*Metadata, error) {
	data, err := r.files.Fetch(fileName(role))
	if err != nil {
		return nil, err
	}
	return parseMetadata(data)
}

// openKnownGood reads role metadata from the baseline, or returns nil.
func (r *Repository) openKnownGood(role string) (*Metadata, error) {
	if r.knownGood == nil {
		return nil, nil
	}
	data, err := r.knownGood.Fetch(fileName(role))
	if errors.Is(err, ErrMetadataNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return parseMetadata(data)
}

func (r *Repository) openOrCreate(role string) (*Metadata, error) {
	md, err := r.open(role)
	if !errors.Is(err, ErrMetadataNotFound) {
		return md, err
	}
	if role == interfaces.RootRole {
		return newRootMetadata(), nil
	}
	return newTargetsMetadata(), nil
}

func (r *Repository) write(role string, md *Metadata) error {
	data, err := md.encode()
	if err != nil {
		return err
	}
	return r.files.Store(fileName(role), data)
}

// markModified bumps the version once relative to the baseline, resets the
// expiry and replaces signatures with placeholders for the current signers.
func (r *Repository) markModified(role string, md *Metadata, root *Metadata) error {
	knownGood, err := r.openKnownGood(role)
	if err != nil {
		return err
	}
	if knownGood != nil && md.Signed.Version <= knownGood.Signed.Version {
		md.Signed.Version = knownGood.Signed.Version + 1
	}

	var entry *Role
	if role == interfaces.RootRole {
		entry = md.Signed.Roles[role]
	} else if delegatorOf(role) == interfaces.RootRole {
		entry = root.Signed.Roles[role]
	} else {
		targets := md
		if role != interfaces.TargetsRole {
			if targets, err = r.open(interfaces.TargetsRole); err != nil {
				return err
			}
		}
		if dr := targets.Signed.delegatedRole(role); dr != nil {
			entry = &dr.Role
		}
	}
	if entry == nil {
		// Delegation not written yet, the next write of this role fixes it up
		return nil
	}
	md.setExpiry(r.now(), entry.ExpiryPeriod)

	keyIDs := slices.Clone(entry.KeyIDs)
	if role == interfaces.RootRole && knownGood != nil {
		if prev := knownGood.Signed.Roles[interfaces.RootRole]; prev != nil {
			for _, id := range prev.KeyIDs {
				if !slices.Contains(keyIDs, id) {
					keyIDs = append(keyIDs, id)
				}
			}
		}
	}
	md.resetSignatures(keyIDs)
	return nil
}

func (r *Repository) isModified(role string, md *Metadata) (bool, error) {
	knownGood, err := r.openKnownGood(role)
	if err != nil {
		return false, err
	}
	if knownGood == nil {
		return true, nil
	}

	current, err := md.Payload()
	if err != nil {
		return false, err
	}
	previous, err := knownGood.Payload()
	if err != nil {
		return false, err
	}
	return !bytes.Equal(current, previous), nil
}

type keyWithID struct {
	interfaces.KeyDescriptor
	id string
}

// signingKeys returns the keys whose signatures count for role. Root
// additionally accepts the keys of the known-good root.
func (r *Repository) signingKeys(role string) ([]keyWithID, error) {
	delegator, err := r.open(delegatorOf(role))
	if err != nil {
		return nil, err
	}
	keys := delegatedKeys(&delegator.Signed, role)

	if role == interfaces.RootRole {
		knownGood, err := r.openKnownGood(interfaces.RootRole)
		if err != nil {
			return nil, err
		}
		if knownGood != nil {
			for _, key := range delegatedKeys(&knownGood.Signed, role) {
				if !slices.ContainsFunc(keys, func(k keyWithID) bool { return k.id == key.id }) {
					keys = append(keys, key)
				}
			}
		}
	}
	return keys, nil
}

func delegatedKeys(delegator *Signed, role string) []keyWithID {
	entry := roleEntry(delegator, role)
	if entry == nil {
		return nil
	}
	store := delegator.keyStore()
	keys := []keyWithID{}
	for _, id := range entry.KeyIDs {
		if key, ok := store[id]; ok {
			keys = append(keys, keyWithID{KeyDescriptor: key, id: id})
		}
	}
	return keys
}

// verify checks that md carries a valid signature by key.
func (r *Repository) verify(md *Metadata, key keyWithID) bool {
	sig := md.signature(key.id)
	if sig == nil || sig.Sig == "" {
		return false
	}
	raw, err := hex.DecodeString(sig.Sig)
	if err != nil {
		return false
	}

	sslibKey, err := key.SSLibKey()
	if err != nil {
		return false
	}
	verifier, err := cryptoutils.NewSignerVerifier(sslibKey)
	if err != nil {
		r.log.Debug("Cannot verify signature", slog.String("keyid", key.id), "err", err)
		return false
	}

	payload, err := md.Payload()
	if err != nil {
		return false
	}
	return verifier.Verify(context.Background(), payload, raw) == nil
}

// offlineRoles lists root, targets and the delegated roles in delegation order.
func (r *Repository) offlineRoles() ([]string, error) {
	names := []string{interfaces.RootRole}
	targets, err := r.open(interfaces.TargetsRole)
	if errors.Is(err, ErrMetadataNotFound) {
		return names, nil
	} else if err != nil {
		return nil, err
	}

	names = append(names, interfaces.TargetsRole)
	if targets.Signed.Delegations != nil {
		for _, dr := range targets.Signed.Delegations.Roles {
			names = append(names, dr.Name)
		}
	}
	return names, nil
}

func delegatorOf(role string) string {
	switch role {
	case interfaces.RootRole, interfaces.TargetsRole, interfaces.TimestampRole, interfaces.SnapshotRole:
		return interfaces.RootRole
	default:
		return interfaces.TargetsRole
	}
}

func roleEntry(delegator *Signed, role string) *Role {
	if delegator.Type == interfaces.RootRole {
		return delegator.Roles[role]
	}
	if dr := delegator.delegatedRole(role); dr != nil {
		return &dr.Role
	}
	return nil
}

func ensureRoleEntry(delegator *Signed, role string) *Role {
	if entry := roleEntry(delegator, role); entry != nil {
		return entry
	}
	if delegator.Type == interfaces.RootRole {
		if delegator.Roles == nil {
			delegator.Roles = map[string]*Role{}
		}
		delegator.Roles[role] = &Role{}
		return delegator.Roles[role]
	}
	delegator.keyStore()
	dr := &DelegatedRole{Name: role, Paths: []string{role + "/*"}, Terminating: true}
	delegator.Delegations.Roles = append(delegator.Delegations.Roles, dr)
	return &dr.Role
}

func keyOwnedBy(keys map[string]interfaces.KeyDescriptor, owner string) string {
	ids := make([]string, 0, len(keys))
	for id, key := range keys {
		if key.KeyOwner == owner {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	slices.Sort(ids)
	return ids[0]
}

func fileName(role string) string {
	return role + ".json"
}

var _ interfaces.MetadataStore = (*Repository)(nil)
