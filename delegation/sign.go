package delegation

import (
	"context"
	"fmt"

	"github.com/ruteri/trustroot-signer/interfaces"
)

// Sign takes part in a signing event without editing configuration: it
// accepts pending invitations and signs every role waiting for the acting
// user's signature.
func (o *Orchestrator) Sign(ctx context.Context, opts Options) error {
	if o.store.State() == interfaces.Uninitialized {
		o.prompt.Echo("No metadata repository found")
		o.prompt.Echo("Nothing to do.")
		return nil
	}

	invites, err := o.store.Invites()
	if err != nil {
		return err
	}

	var signer interfaces.SigningCapability
	if len(invites) > 0 {
		o.prompt.Echo("You have been invited to become a signer for role(s) %s.", formatRoles(invites))
		if signer, err = o.keys.RequestSigningCapability(ctx); err != nil {
			return err
		}
		for _, role := range invites {
			config, err := o.store.GetRoleConfig(role)
			if err != nil {
				return fmt.Errorf("failed to accept invite for %s: %w", role, err)
			}
			if err := o.store.SetRoleConfig(ctx, role, config, signer); err != nil {
				return fmt.Errorf("failed to accept invite for %s: %w", role, err)
			}
		}
	}

	unsigned, err := o.tracker.Unsigned()
	if err != nil {
		return err
	}
	if len(invites) == 0 && len(unsigned) == 0 {
		o.prompt.Echo("Nothing to do.")
		return nil
	}

	if len(unsigned) > 0 {
		o.prompt.Echo("Your signature is requested for role(s) %s.", formatRoles(unsigned))
		if err := o.signAndCommit(ctx, unsigned, signer); err != nil {
			return err
		}
	} else if err := o.vcs.StageAndCommit(ctx, []string{o.config.MetadataPath}, fmt.Sprintf("Signed by %s", o.store.UserIdentity())); err != nil {
		return err
	}

	return o.publish(ctx, opts, "Press enter to push signature(s) to %s")
}
