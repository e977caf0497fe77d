// Package interfaces defines the data model and collaborator contracts of the
// trust root signing tool, separating interface definitions from their
// implementations.
//
// # Configuration Types
//
//   - OfflineRoleConfig: quorum of human signers for a role, with expiry and
//     signing periods
//   - OnlineKeySet: automated keys and cadences for the timestamp and snapshot
//     roles
//   - KeyDescriptor: a public key as it appears in role metadata, including the
//     online locator and key owner annotations
//
// Configuration values have value semantics: editors return copies and callers
// detect changes with Equal.
//
// # Collaborator Interfaces
//
//   - MetadataStore: reads and writes role configuration and signatures
//   - KeyProvider: imports online keys and provides the signer's signing capability
//   - VCS: commits, pushes and creates branches in the repository checkout
//   - Prompt: line oriented terminal interaction
//
// # Error Types
//
//   - ErrRoleNotFound: the role has no configuration yet
//   - ErrKeyResolution: a key provider could not resolve key material
//   - ErrVCS: a version control command failed
//   - ErrAborted: the operator closed the input stream
//   - ErrInvalidLocator: an online key locator URI is malformed or unsupported
//   - ErrNoSigningKey: no signing key is configured for the acting user
package interfaces
