package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
)

const signingEventStateFile = ".signing-event-state"

// SigningEventState tracks signers invited during the signing event.
type SigningEventState struct {
	// Invites maps a signer handle to the roles they are invited to.
	Invites map[string][]string `json:"invites"`
}

func loadSigningEventState(files *FileBackend) (*SigningEventState, error) {
	state := &SigningEventState{Invites: map[string][]string{}}

	data, err := files.Fetch(signingEventStateFile)
	if errors.Is(err, ErrMetadataNotFound) {
		return state, nil
	} else if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to parse signing event state: %w", err)
	}
	if state.Invites == nil {
		state.Invites = map[string][]string{}
	}
	return state, nil
}

func (s *SigningEventState) save(files *FileBackend) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return files.Store(signingEventStateFile, append(data, '\n'))
}

// InvitedSigners returns the signers invited to role, sorted.
func (s *SigningEventState) InvitedSigners(role string) []string {
	signers := []string{}
	for signer, roles := range s.Invites {
		if slices.Contains(roles, role) {
			signers = append(signers, signer)
		}
	}
	sort.Strings(signers)
	return signers
}

// InvitedRoles returns the roles signer is invited to.
func (s *SigningEventState) InvitedRoles(signer string) []string {
	return slices.Clone(s.Invites[signer])
}

func (s *SigningEventState) addInvite(signer, role string) {
	if !slices.Contains(s.Invites[signer], role) {
		s.Invites[signer] = append(s.Invites[signer], role)
	}
}

func (s *SigningEventState) removeInvite(signer, role string) {
	roles := slices.DeleteFunc(s.Invites[signer], func(r string) bool { return r == role })
	if len(roles) == 0 {
		delete(s.Invites, signer)
		return
	}
	s.Invites[signer] = roles
}
