// Package storage implements the metadata store: a file backed repository of
// TUF style role metadata kept in the metadata directory of the checkout.
//
// # Layout
//
//	metadata/root.json                 root role, delegates root, targets, timestamp, snapshot
//	metadata/targets.json              targets role, delegates all other offline roles
//	metadata/<role>.json               delegated offline roles
//	metadata/.signing-event-state      open invitations of the signing event
//
// Each metadata file is a signed envelope:
//
//	{
//	  "signed": {"_type": "root", "version": 3, "expires": "...", ...},
//	  "signatures": [{"keyid": "...", "sig": "..."}]
//	}
//
// Signatures are computed over the canonical JSON encoding of "signed". A
// signature with an empty "sig" is a placeholder for a signer that has not
// signed the current version yet.
//
// # Extensions
//
// Offline keys carry the owning signer handle in x-trustroot-keyowner, online
// keys carry the signer locator in x-trustroot-online-uri. Role entries carry
// x-trustroot-expiry-period and x-trustroot-signing-period in days.
//
// # Known-good baseline
//
// The repository optionally compares against a known-good copy of the
// metadata directory, usually exported from the main branch of the pull
// remote. A role is modified in the signing event if its signed payload
// differs from the known-good one or it has no known-good version. Modified
// roles get their version bumped at most once per event and their expiry reset
// on every write.
//
// # Invitations
//
// A signer named in a role configuration whose key is unknown is recorded as
// invited in .signing-event-state until they accept by running the signing
// tool with their key:
//
//	{"invites": {"@bob": ["root", "targets"]}}
package storage
