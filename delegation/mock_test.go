package delegation

import (
	"context"
	"io"
	"log/slog"

	"github.com/ruteri/trustroot-signer/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockMetadataStore mocks interfaces.MetadataStore
type MockMetadataStore struct {
	mock.Mock
}

func (m *MockMetadataStore) State() interfaces.RepositoryState {
	return m.Called().Get(0).(interfaces.RepositoryState)
}

func (m *MockMetadataStore) UserIdentity() string {
	return m.Called().String(0)
}

func (m *MockMetadataStore) GetRoleConfig(role string) (interfaces.OfflineRoleConfig, error) {
	args := m.Called(role)
	return args.Get(0).(interfaces.OfflineRoleConfig), args.Error(1)
}

func (m *MockMetadataStore) SetRoleConfig(ctx context.Context, role string, config interfaces.OfflineRoleConfig, signer interfaces.SigningCapability) error {
	return m.Called(role, config, signer).Error(0)
}

func (m *MockMetadataStore) GetOnlineConfig() (interfaces.OnlineKeySet, error) {
	args := m.Called()
	return args.Get(0).(interfaces.OnlineKeySet), args.Error(1)
}

func (m *MockMetadataStore) SetOnlineConfig(ctx context.Context, config interfaces.OnlineKeySet) error {
	return m.Called(config).Error(0)
}

func (m *MockMetadataStore) UnsignedRoles() ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockMetadataStore) Invites() ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockMetadataStore) Sign(ctx context.Context, role string, signer interfaces.SigningCapability) error {
	return m.Called(role, signer).Error(0)
}

func (m *MockMetadataStore) Status(role string) (string, error) {
	args := m.Called(role)
	return args.String(0), args.Error(1)
}

// MockKeyProvider mocks interfaces.KeyProvider
type MockKeyProvider struct {
	mock.Mock
}

func (m *MockKeyProvider) ImportCloudKey(ctx context.Context, provider interfaces.CloudProvider, identifiers ...string) (string, interfaces.KeyDescriptor, error) {
	args := m.Called(provider, identifiers)
	return args.String(0), args.Get(1).(interfaces.KeyDescriptor), args.Error(2)
}

func (m *MockKeyProvider) DeriveKeylessDescriptors(remoteURL string) ([]interfaces.KeyDescriptor, error) {
	args := m.Called(remoteURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interfaces.KeyDescriptor), args.Error(1)
}

func (m *MockKeyProvider) RequestSigningCapability(ctx context.Context) (interfaces.SigningCapability, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(interfaces.SigningCapability), args.Error(1)
}

// MockVCS mocks interfaces.VCS
type MockVCS struct {
	mock.Mock
}

func (m *MockVCS) RepositoryRoot(ctx context.Context) (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockVCS) CurrentRemoteURL(ctx context.Context, remote string) (string, error) {
	args := m.Called(remote)
	return args.String(0), args.Error(1)
}

func (m *MockVCS) StageAndCommit(ctx context.Context, paths []string, message string) error {
	return m.Called(paths, message).Error(0)
}

func (m *MockVCS) PushRef(ctx context.Context, remote, localRef, remoteRef string) error {
	return m.Called(remote, localRef, remoteRef).Error(0)
}

func (m *MockVCS) CreateLocalBranch(ctx context.Context, name string) error {
	return m.Called(name).Error(0)
}

// stubSigner is a signing capability that is never asked to sign by mocked stores.
type stubSigner struct{}

func (stubSigner) Public() interfaces.KeyDescriptor {
	return interfaces.KeyDescriptor{KeyType: "ed25519", Scheme: "ed25519"}
}

func (stubSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	return []byte("sig"), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
