package storage

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/ruteri/trustroot-signer/cryptoutils"
	"github.com/ruteri/trustroot-signer/interfaces"
)

const (
	specVersion  = "1.0.31"
	expiryLayout = "2006-01-02T15:04:05Z"
)

// Metadata is the signed envelope stored in each role file.
type Metadata struct {
	Signed     Signed      `json:"signed"`
	Signatures []Signature `json:"signatures"`
}

// Signed is the union of the root and targets payloads.
type Signed struct {
	Type        string `json:"_type"`
	SpecVersion string `json:"spec_version"`
	Version     int    `json:"version"`
	Expires     string `json:"expires"`

	// root only
	Keys               map[string]interfaces.KeyDescriptor `json:"keys,omitempty"`
	Roles              map[string]*Role                    `json:"roles,omitempty"`
	ConsistentSnapshot *bool                               `json:"consistent_snapshot,omitempty"`

	// targets only
	Targets     map[string]TargetFile `json:"targets,omitempty"`
	Delegations *Delegations          `json:"delegations,omitempty"`
}

// Role is a delegation entry: the keys trusted for a role and how many of
// them must sign.
type Role struct {
	KeyIDs        []string `json:"keyids"`
	Threshold     int      `json:"threshold"`
	ExpiryPeriod  int      `json:"x-trustroot-expiry-period,omitempty"`
	SigningPeriod int      `json:"x-trustroot-signing-period,omitempty"`
}

// Delegations holds the roles delegated by targets.
type Delegations struct {
	Keys  map[string]interfaces.KeyDescriptor `json:"keys"`
	Roles []*DelegatedRole                    `json:"roles"`
}

// DelegatedRole is a delegation entry of targets.
type DelegatedRole struct {
	Name string `json:"name"`
	Role
	Terminating bool     `json:"terminating"`
	Paths       []string `json:"paths"`
}

type TargetFile struct {
	Length int64             `json:"length"`
	Hashes map[string]string `json:"hashes"`
}

// Signature is a single signature. An empty Sig is a placeholder.
type Signature struct {
	KeyID string `json:"keyid"`
	Sig   string `json:"sig"`
}

func newRootMetadata() *Metadata {
	consistent := true
	return &Metadata{
		Signed: Signed{
			Type:               interfaces.RootRole,
			SpecVersion:        specVersion,
			Version:            1,
			Keys:               map[string]interfaces.KeyDescriptor{},
			Roles:              map[string]*Role{},
			ConsistentSnapshot: &consistent,
		},
		Signatures: []Signature{},
	}
}

func newTargetsMetadata() *Metadata {
	return &Metadata{
		Signed: Signed{
			Type:        interfaces.TargetsRole,
			SpecVersion: specVersion,
			Version:     1,
			Targets:     map[string]TargetFile{},
		},
		Signatures: []Signature{},
	}
}

func parseMetadata(data []byte) (*Metadata, error) {
	md := &Metadata{}
	if err := json.Unmarshal(data, md); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return md, nil
}

func (md *Metadata) encode() ([]byte, error) {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Payload returns the bytes signatures are computed over.
func (md *Metadata) Payload() ([]byte, error) {
	return cryptoutils.CanonicalJSON(md.Signed)
}

// signature returns the signature for keyID, or nil.
func (md *Metadata) signature(keyID string) *Signature {
	for i := range md.Signatures {
		if md.Signatures[i].KeyID == keyID {
			return &md.Signatures[i]
		}
	}
	return nil
}

func (md *Metadata) setSignature(keyID, sig string) {
	if existing := md.signature(keyID); existing != nil {
		existing.Sig = sig
		return
	}
	md.Signatures = append(md.Signatures, Signature{KeyID: keyID, Sig: sig})
}

// resetSignatures replaces all signatures with placeholders for keyIDs.
func (md *Metadata) resetSignatures(keyIDs []string) {
	md.Signatures = make([]Signature, 0, len(keyIDs))
	for _, id := range keyIDs {
		if md.signature(id) == nil {
			md.Signatures = append(md.Signatures, Signature{KeyID: id})
		}
	}
}

func (md *Metadata) setExpiry(now time.Time, days int) {
	md.Signed.Expires = now.UTC().Truncate(time.Second).AddDate(0, 0, days).Format(expiryLayout)
}

// delegatedRole returns the delegation entry of a role delegated by targets.
func (s *Signed) delegatedRole(name string) *DelegatedRole {
	if s.Delegations == nil {
		return nil
	}
	for _, r := range s.Delegations.Roles {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// keyStore returns the key map the delegation entries of s refer to.
func (s *Signed) keyStore() map[string]interfaces.KeyDescriptor {
	if s.Type == interfaces.RootRole {
		if s.Keys == nil {
			s.Keys = map[string]interfaces.KeyDescriptor{}
		}
		return s.Keys
	}
	if s.Delegations == nil {
		s.Delegations = &Delegations{}
	}
	if s.Delegations.Keys == nil {
		s.Delegations.Keys = map[string]interfaces.KeyDescriptor{}
	}
	return s.Delegations.Keys
}

// pruneKeys removes keys no delegation entry refers to.
func (s *Signed) pruneKeys() {
	var used []string
	if s.Type == interfaces.RootRole {
		for _, r := range s.Roles {
			used = append(used, r.KeyIDs...)
		}
	} else if s.Delegations != nil {
		for _, r := range s.Delegations.Roles {
			used = append(used, r.KeyIDs...)
		}
	}

	keys := s.keyStore()
	for id := range keys {
		if !slices.Contains(used, id) {
			delete(keys, id)
		}
	}
}
