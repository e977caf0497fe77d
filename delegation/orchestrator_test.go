package delegation

import (
	"context"
	"fmt"
	"testing"

	"github.com/ruteri/trustroot-signer/interfaces"
	"github.com/ruteri/trustroot-signer/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var metadataPaths = []string{"metadata"}

type orchestratorFixture struct {
	store    *MockMetadataStore
	provider *MockKeyProvider
	vcs      *MockVCS
	prompt   *prompt.Scripted
	events   []string
}

func newFixture(answers ...string) *orchestratorFixture {
	return &orchestratorFixture{
		store:    &MockMetadataStore{},
		provider: &MockKeyProvider{},
		vcs:      &MockVCS{},
		prompt:   prompt.NewScripted(answers...),
	}
}

func (f *orchestratorFixture) orchestrator() *Orchestrator {
	config := Config{PullRemote: "origin", PushRemote: "upstream"}
	return NewOrchestrator(config, f.store, f.provider, f.vcs, f.prompt, testLogger())
}

// record returns a Run hook appending name to the observed call order.
func (f *orchestratorFixture) record(name string) func(mock.Arguments) {
	return func(mock.Arguments) { f.events = append(f.events, name) }
}

func (f *orchestratorFixture) assertExpectations(t *testing.T) {
	f.store.AssertExpectations(t)
	f.provider.AssertExpectations(t)
	f.vcs.AssertExpectations(t)
}

func activeTargets(f *orchestratorFixture, config interfaces.OfflineRoleConfig) {
	f.store.On("State").Return(interfaces.Active)
	f.store.On("UserIdentity").Return("@alice")
	f.store.On("GetRoleConfig", "targets").Return(config, nil)
}

func TestDelegateOfflineNoChange(t *testing.T) {
	f := newFixture("", "targets", "")
	activeTargets(f, twoSigners(1))

	err := f.orchestrator().Delegate(context.Background(), Options{Event: "sign/x"})
	require.NoError(t, err)

	assert.Contains(t, f.prompt.Transcript, "Nothing to do")
	assert.Contains(t, f.prompt.Transcript, "Modifying delegation for targets")
	f.vcs.AssertNotCalled(t, "StageAndCommit", mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "SetRoleConfig", mock.Anything, mock.Anything, mock.Anything)
	f.provider.AssertNotCalled(t, "RequestSigningCapability")
	f.assertExpectations(t)
}

func TestDelegateOfflineChangeSignedByUser(t *testing.T) {
	f := newFixture("1", "alice, bob", "2", "")
	activeTargets(f, interfaces.DefaultOfflineRoleConfig("@alice"))

	expected := interfaces.OfflineRoleConfig{Signers: []string{"@alice", "@bob"}, Threshold: 2, ExpiryPeriod: 365, SigningPeriod: 60}
	signer := stubSigner{}

	f.provider.On("RequestSigningCapability").Return(signer, nil).Once().Run(f.record("key"))
	f.store.On("SetRoleConfig", "targets", expected, signer).Return(nil).Run(f.record("set"))
	f.vcs.On("StageAndCommit", metadataPaths, "'targets' role/delegation change").Return(nil).Run(f.record("commit config"))
	f.store.On("UnsignedRoles").Return([]string{"targets"}, nil).Run(f.record("unsigned"))
	f.store.On("Status", "targets").Return("targets v2", nil)
	f.store.On("Sign", "targets", signer).Return(nil).Run(f.record("sign"))
	f.vcs.On("StageAndCommit", metadataPaths, "Signed by @alice").Return(nil).Run(f.record("commit signatures"))
	f.vcs.On("CreateLocalBranch", "sign/x").Return(nil).Run(f.record("branch"))

	err := f.orchestrator().Delegate(context.Background(), Options{Event: "sign/x", Role: "targets"})
	require.NoError(t, err)

	assert.Equal(t, []string{"key", "set", "commit config", "unsigned", "sign", "commit signatures", "branch"}, f.events)
	assert.Contains(t, f.prompt.Transcript, "Your signature is required for role(s) targets.")
	assert.Contains(t, f.prompt.Transcript, "targets v2")
	assert.Contains(t, f.prompt.Transcript, "Creating local branch sign/x")
	f.assertExpectations(t)
}

func TestDelegateOfflineChangeWithoutUserPushes(t *testing.T) {
	f := newFixture("1", "bob", "", "")
	activeTargets(f, interfaces.DefaultOfflineRoleConfig("@alice"))

	expected := interfaces.DefaultOfflineRoleConfig("@bob")
	f.store.On("SetRoleConfig", "targets", expected, nil).Return(nil)
	f.vcs.On("StageAndCommit", metadataPaths, "'targets' role/delegation change").Return(nil).Once()
	f.store.On("UnsignedRoles").Return([]string{}, nil)
	f.vcs.On("PushRef", "upstream", "HEAD", "refs/heads/sign/x").Return(nil)

	err := f.orchestrator().Delegate(context.Background(), Options{Event: "sign/x", Role: "targets", Push: true})
	require.NoError(t, err)

	assert.Contains(t, f.prompt.Transcript, "? Press enter to push changes to upstream/sign/x")
	f.provider.AssertNotCalled(t, "RequestSigningCapability")
	f.vcs.AssertNotCalled(t, "CreateLocalBranch", mock.Anything)
	f.assertExpectations(t)
}

func TestDelegateNewDelegation(t *testing.T) {
	f := newFixture("")
	f.store.On("State").Return(interfaces.Active)
	f.store.On("UserIdentity").Return("@alice")
	f.store.On("GetRoleConfig", "packages").Return(interfaces.OfflineRoleConfig{}, fmt.Errorf("%w: packages", interfaces.ErrRoleNotFound))

	signer := stubSigner{}
	f.provider.On("RequestSigningCapability").Return(signer, nil).Once()
	f.store.On("SetRoleConfig", "packages", interfaces.DefaultOfflineRoleConfig("@alice"), signer).Return(nil)
	f.vcs.On("StageAndCommit", metadataPaths, "'packages' role/delegation change").Return(nil)
	f.store.On("UnsignedRoles").Return([]string{"targets", "packages"}, nil)
	f.store.On("Status", mock.Anything).Return("status", nil)
	f.store.On("Sign", "targets", signer).Return(nil).Run(f.record("targets"))
	f.store.On("Sign", "packages", signer).Return(nil).Run(f.record("packages"))
	f.vcs.On("StageAndCommit", metadataPaths, "Signed by @alice").Return(nil)
	f.vcs.On("CreateLocalBranch", "sign/x").Return(nil)

	err := f.orchestrator().Delegate(context.Background(), Options{Event: "sign/x", Role: "packages"})
	require.NoError(t, err)

	assert.Contains(t, f.prompt.Transcript, "Creating a new delegation for packages")
	assert.Equal(t, []string{"targets", "packages"}, f.events)
	f.assertExpectations(t)
}

func TestDelegateKeyResolutionFailureAborts(t *testing.T) {
	f := newFixture("1", "2", "alias/missing")
	f.store.On("State").Return(interfaces.Active)
	f.store.On("GetOnlineConfig").Return(onlineConfig(), nil)
	f.provider.On("ImportCloudKey", interfaces.AWSKMS, []string{"alias/missing"}).
		Return("", interfaces.KeyDescriptor{}, fmt.Errorf("%w: not found", interfaces.ErrKeyResolution))

	err := f.orchestrator().Delegate(context.Background(), Options{Event: "sign/x", Role: "timestamp"})
	assert.ErrorIs(t, err, interfaces.ErrKeyResolution)

	f.store.AssertNotCalled(t, "SetOnlineConfig", mock.Anything)
	f.vcs.AssertNotCalled(t, "StageAndCommit", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestDelegateOnlineNoChange(t *testing.T) {
	f := newFixture("")
	f.store.On("State").Return(interfaces.Active)
	f.store.On("GetOnlineConfig").Return(onlineConfig(), nil)

	err := f.orchestrator().Delegate(context.Background(), Options{Event: "sign/x", Role: "snapshot"})
	require.NoError(t, err)

	assert.Contains(t, f.prompt.Transcript, "Modifying online roles")
	assert.Contains(t, f.prompt.Transcript, "Nothing to do")
	f.store.AssertNotCalled(t, "SetOnlineConfig", mock.Anything)
	f.vcs.AssertNotCalled(t, "StageAndCommit", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestDelegateOnlineChangeRequestsKeyLazily(t *testing.T) {
	f := newFixture("2", "5", "", "")
	f.store.On("State").Return(interfaces.Active)
	f.store.On("UserIdentity").Return("@alice")
	current := onlineConfig()
	f.store.On("GetOnlineConfig").Return(current, nil)

	expected := current.Clone()
	expected.TimestampExpiry = 5
	signer := stubSigner{}
	f.store.On("SetOnlineConfig", expected).Return(nil)
	f.vcs.On("StageAndCommit", metadataPaths, "'timestamp' role/delegation change").Return(nil)
	f.store.On("UnsignedRoles").Return([]string{"root"}, nil)
	f.provider.On("RequestSigningCapability").Return(signer, nil).Once()
	f.store.On("Status", "root").Return("root v2", nil)
	f.store.On("Sign", "root", signer).Return(nil)
	f.vcs.On("StageAndCommit", metadataPaths, "Signed by @alice").Return(nil)
	f.vcs.On("CreateLocalBranch", "sign/x").Return(nil)

	err := f.orchestrator().Delegate(context.Background(), Options{Event: "sign/x", Role: "timestamp"})
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestDelegateVCSFailureIsFatal(t *testing.T) {
	f := newFixture("1", "bob", "")
	activeTargets(f, interfaces.DefaultOfflineRoleConfig("@alice"))

	f.store.On("SetRoleConfig", "targets", interfaces.DefaultOfflineRoleConfig("@bob"), nil).Return(nil)
	f.vcs.On("StageAndCommit", metadataPaths, mock.Anything).Return(fmt.Errorf("%w: git commit: exit status 1", interfaces.ErrVCS))

	err := f.orchestrator().Delegate(context.Background(), Options{Event: "sign/x", Role: "targets"})
	assert.ErrorIs(t, err, interfaces.ErrVCS)

	f.store.AssertNotCalled(t, "UnsignedRoles")
	f.vcs.AssertNotCalled(t, "CreateLocalBranch", mock.Anything)
	f.assertExpectations(t)
}

func TestDelegateBootstrap(t *testing.T) {
	keyless := []interfaces.KeyDescriptor{{KeyType: "sigstore-oidc", Scheme: "Fulcio", OnlineURI: "sigstore:"}}
	root := interfaces.DefaultOfflineRoleConfig("@alice")

	f := newFixture("", "", "")
	f.store.On("State").Return(interfaces.Uninitialized)
	f.store.On("UserIdentity").Return("@alice")
	f.vcs.On("CurrentRemoteURL", "origin").Return("https://github.com/org/repo.git", nil)
	f.provider.On("DeriveKeylessDescriptors", "https://github.com/org/repo.git").Return(keyless, nil)

	signer := stubSigner{}
	f.provider.On("RequestSigningCapability").Return(signer, nil).Once()
	f.store.On("SetRoleConfig", "root", root, signer).Return(nil).Run(f.record("set root"))
	f.store.On("SetRoleConfig", "targets", root, signer).Return(nil).Run(f.record("set targets"))
	f.store.On("SetOnlineConfig", interfaces.DefaultOnlineKeySet(keyless, root)).Return(nil).Run(f.record("set online"))
	f.vcs.On("StageAndCommit", metadataPaths, "Initial root and targets").Return(nil).Run(f.record("commit"))
	f.store.On("UnsignedRoles").Return([]string{"root", "targets"}, nil)
	f.store.On("Status", mock.Anything).Return("status", nil)
	f.store.On("Sign", "root", signer).Return(nil).Run(f.record("sign root"))
	f.store.On("Sign", "targets", signer).Return(nil).Run(f.record("sign targets"))
	f.vcs.On("StageAndCommit", metadataPaths, "Signed by @alice").Return(nil).Run(f.record("commit signatures"))
	f.vcs.On("CreateLocalBranch", "sign/init").Return(nil)

	err := f.orchestrator().Delegate(context.Background(), Options{Event: "sign/init"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"set root", "set targets", "set online", "commit",
		"sign root", "sign targets", "commit signatures",
	}, f.events)
	assert.Contains(t, f.prompt.Transcript, "Creating a new trust root repository")
	assert.Contains(t, f.prompt.Transcript, "\nConfiguring role root")
	assert.Contains(t, f.prompt.Transcript, "\nConfiguring role targets")
	f.assertExpectations(t)
}

func TestDelegateBootstrapWithoutActingUser(t *testing.T) {
	keyless := []interfaces.KeyDescriptor{{KeyType: "sigstore-oidc", Scheme: "Fulcio", OnlineURI: "sigstore:"}}
	root := interfaces.DefaultOfflineRoleConfig("@bob")

	f := newFixture("1", "bob", "", "", "")
	f.store.On("State").Return(interfaces.Uninitialized)
	f.store.On("UserIdentity").Return("@alice")
	f.vcs.On("CurrentRemoteURL", "origin").Return("https://github.com/org/repo.git", nil)
	f.provider.On("DeriveKeylessDescriptors", "https://github.com/org/repo.git").Return(keyless, nil)

	f.store.On("SetRoleConfig", "root", root, nil).Return(nil)
	f.store.On("SetRoleConfig", "targets", root, nil).Return(nil)
	f.store.On("SetOnlineConfig", interfaces.DefaultOnlineKeySet(keyless, root)).Return(nil)
	f.vcs.On("StageAndCommit", metadataPaths, "Initial root and targets").Return(nil)
	f.store.On("UnsignedRoles").Return([]string{}, nil)
	f.vcs.On("CreateLocalBranch", "sign/init").Return(nil)

	err := f.orchestrator().Delegate(context.Background(), Options{Event: "sign/init"})
	require.NoError(t, err)

	f.provider.AssertNotCalled(t, "RequestSigningCapability")
	f.vcs.AssertNumberOfCalls(t, "StageAndCommit", 1)
	f.store.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything)
	assert.Equal(t, 0, f.prompt.Remaining())
	f.assertExpectations(t)
}

func TestDelegateReorderedSignersIsNoChange(t *testing.T) {
	f := newFixture("1", "b, a", "", "")
	activeTargets(f, twoSigners(2))

	err := f.orchestrator().Delegate(context.Background(), Options{Event: "sign/x", Role: "targets"})
	require.NoError(t, err)

	assert.Contains(t, f.prompt.Transcript, "Nothing to do")
	f.store.AssertNotCalled(t, "SetRoleConfig", mock.Anything, mock.Anything, mock.Anything)
	f.vcs.AssertNotCalled(t, "StageAndCommit", mock.Anything, mock.Anything)
}

func TestDelegateBootstrapAbortWritesNothing(t *testing.T) {
	f := newFixture("")
	f.store.On("State").Return(interfaces.Uninitialized)
	f.store.On("UserIdentity").Return("@alice")

	err := f.orchestrator().Delegate(context.Background(), Options{Event: "sign/init"})
	assert.ErrorIs(t, err, interfaces.ErrAborted)

	f.store.AssertNotCalled(t, "SetRoleConfig", mock.Anything, mock.Anything, mock.Anything)
	f.vcs.AssertNotCalled(t, "StageAndCommit", mock.Anything, mock.Anything)
}

func TestSign(t *testing.T) {
	ctx := context.Background()

	t.Run("uninitialized repository", func(t *testing.T) {
		f := newFixture()
		f.store.On("State").Return(interfaces.Uninitialized)

		require.NoError(t, f.orchestrator().Sign(ctx, Options{Event: "sign/x"}))
		assert.Equal(t, []string{"No metadata repository found", "Nothing to do."}, f.prompt.Transcript)
	})

	t.Run("nothing to sign", func(t *testing.T) {
		f := newFixture()
		f.store.On("State").Return(interfaces.Active)
		f.store.On("Invites").Return([]string{}, nil)
		f.store.On("UnsignedRoles").Return([]string{}, nil)

		require.NoError(t, f.orchestrator().Sign(ctx, Options{Event: "sign/x"}))
		assert.Contains(t, f.prompt.Transcript, "Nothing to do.")
		f.vcs.AssertNotCalled(t, "StageAndCommit", mock.Anything, mock.Anything)
		f.provider.AssertNotCalled(t, "RequestSigningCapability")
	})

	t.Run("accepting an invite", func(t *testing.T) {
		f := newFixture("")
		config := twoSigners(2)
		signer := stubSigner{}

		f.store.On("State").Return(interfaces.Active)
		f.store.On("UserIdentity").Return("@b")
		f.store.On("Invites").Return([]string{"targets"}, nil)
		f.provider.On("RequestSigningCapability").Return(signer, nil).Once()
		f.store.On("GetRoleConfig", "targets").Return(config, nil)
		f.store.On("SetRoleConfig", "targets", config, signer).Return(nil)
		f.store.On("UnsignedRoles").Return([]string{"targets"}, nil)
		f.store.On("Status", "targets").Return("targets v2", nil)
		f.store.On("Sign", "targets", signer).Return(nil)
		f.vcs.On("StageAndCommit", metadataPaths, "Signed by @b").Return(nil).Once()
		f.vcs.On("PushRef", "upstream", "HEAD", "refs/heads/sign/x").Return(nil)

		require.NoError(t, f.orchestrator().Sign(ctx, Options{Event: "sign/x", Push: true}))
		assert.Contains(t, f.prompt.Transcript, "You have been invited to become a signer for role(s) targets.")
		assert.Contains(t, f.prompt.Transcript, "? Press enter to push signature(s) to upstream/sign/x")
		f.assertExpectations(t)
	})

	t.Run("missing signing key", func(t *testing.T) {
		f := newFixture()
		f.store.On("State").Return(interfaces.Active)
		f.store.On("Invites").Return([]string{}, nil)
		f.store.On("UnsignedRoles").Return([]string{"root"}, nil)
		f.provider.On("RequestSigningCapability").Return(nil, interfaces.ErrNoSigningKey)

		err := f.orchestrator().Sign(ctx, Options{Event: "sign/x"})
		assert.ErrorIs(t, err, interfaces.ErrNoSigningKey)
		f.store.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything)
		f.vcs.AssertNotCalled(t, "StageAndCommit", mock.Anything, mock.Anything)
	})
}
