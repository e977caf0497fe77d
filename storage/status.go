package storage

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ruteri/trustroot-signer/interfaces"
)

// SigningStatus summarizes the signatures collected for one role version.
type SigningStatus struct {
	Role      string
	Version   int
	Expires   string
	Invites   []string
	Signed    []string
	Missing   []string
	Threshold int
	Valid     bool
	Message   string
}

func (s SigningStatus) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%d (expires %s)\n", s.Role, s.Version, s.Expires)
	fmt.Fprintf(&b, "  signed:  %s\n", listOrNone(s.Signed))
	fmt.Fprintf(&b, "  missing: %s\n", listOrNone(s.Missing))
	if len(s.Invites) > 0 {
		fmt.Fprintf(&b, "  invited: %s\n", listOrNone(s.Invites))
	}
	state := "threshold reached"
	if !s.Valid {
		state = "threshold not reached"
	}
	fmt.Fprintf(&b, "  threshold %d: %s", s.Threshold, state)
	if s.Message != "" {
		fmt.Fprintf(&b, " (%s)", s.Message)
	}
	return b.String()
}

func listOrNone(list []string) string {
	if len(list) == 0 {
		return "-"
	}
	return strings.Join(list, ", ")
}

// SigningStatus computes the status of role in the signing event. For root a
// second status against the known-good root is returned when a baseline exists.
func (r *Repository) SigningStatus(role string) (SigningStatus, *SigningStatus, error) {
	if interfaces.IsOnlineRole(role) {
		return SigningStatus{}, nil, fmt.Errorf("status not supported for online role %s", role)
	}

	md, err := r.open(role)
	if err != nil {
		return SigningStatus{}, nil, err
	}
	delegator, err := r.open(delegatorOf(role))
	if err != nil {
		return SigningStatus{}, nil, err
	}

	state, err := loadSigningEventState(r.files)
	if err != nil {
		return SigningStatus{}, nil, err
	}
	invites := []string{}
	for _, delegated := range delegatedBy(role, md) {
		for _, signer := range state.InvitedSigners(delegated) {
			if !slices.Contains(invites, signer) {
				invites = append(invites, signer)
			}
		}
	}

	current := r.signingStatus(role, md, &delegator.Signed, invites)

	if role != interfaces.RootRole {
		return current, nil, nil
	}
	knownGood, err := r.openKnownGood(interfaces.RootRole)
	if err != nil || knownGood == nil {
		return current, nil, err
	}
	previous := r.signingStatus(role, md, &knownGood.Signed, nil)
	return current, &previous, nil
}

func (r *Repository) signingStatus(role string, md *Metadata, delegator *Signed, invites []string) SigningStatus {
	status := SigningStatus{
		Role:    role,
		Version: md.Signed.Version,
		Expires: md.Signed.Expires,
		Invites: invites,
		Signed:  []string{},
		Missing: []string{},
	}
	if entry := roleEntry(delegator, role); entry != nil {
		status.Threshold = entry.Threshold
	}

	for _, key := range delegatedKeys(delegator, role) {
		owner := key.KeyOwner
		if owner == "" {
			owner = key.id
		}
		if r.verify(md, key) {
			status.Signed = append(status.Signed, owner)
		} else {
			status.Missing = append(status.Missing, owner)
		}
	}

	switch {
	case len(invites) > 0:
		status.Message = "open invites"
	case len(status.Signed) < status.Threshold:
		status.Message = fmt.Sprintf("%d of %d signatures", len(status.Signed), status.Threshold)
	default:
		status.Valid = true
	}
	return status
}

func (r *Repository) Status(role string) (string, error) {
	current, previous, err := r.SigningStatus(role)
	if err != nil {
		return "", err
	}
	if previous == nil {
		return current.String(), nil
	}
	return fmt.Sprintf("%s\nknown-good root quorum:\n%s", current, previous), nil
}

// delegatedBy lists the delegations whose invites are reported with role:
// root reports root and targets, targets reports its delegated roles.
func delegatedBy(role string, md *Metadata) []string {
	switch role {
	case interfaces.RootRole:
		return []string{interfaces.RootRole, interfaces.TargetsRole}
	case interfaces.TargetsRole:
		names := []string{}
		if md.Signed.Delegations != nil {
			for _, dr := range md.Signed.Delegations.Roles {
				names = append(names, dr.Name)
			}
		}
		return names
	default:
		return nil
	}
}
