package delegation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruteri/trustroot-signer/interfaces"
)

// ObligationTracker resolves the roles the acting user has to sign. It keeps
// no state of its own and always asks the metadata store.
type ObligationTracker struct {
	store  interfaces.MetadataStore
	prompt interfaces.Prompt
	log    *slog.Logger
}

func NewObligationTracker(store interfaces.MetadataStore, p interfaces.Prompt, log *slog.Logger) *ObligationTracker {
	return &ObligationTracker{store: store, prompt: p, log: log}
}

// Unsigned returns the roles that need the acting user's signature.
func (t *ObligationTracker) Unsigned() ([]string, error) {
	roles, err := t.store.UnsignedRoles()
	if err != nil {
		return nil, fmt.Errorf("failed to compute unsigned roles: %w", err)
	}
	t.log.Debug("Computed signature obligations", slog.Any("roles", roles))
	return roles, nil
}

// SignAll signs roles one at a time in the given order.
func (t *ObligationTracker) SignAll(ctx context.Context, roles []string, signer interfaces.SigningCapability) error {
	for _, role := range roles {
		status, err := t.store.Status(role)
		if err != nil {
			return err
		}
		t.prompt.Echo("%s", status)

		if err := t.store.Sign(ctx, role, signer); err != nil {
			return fmt.Errorf("failed to sign %s: %w", role, err)
		}
	}
	return nil
}
