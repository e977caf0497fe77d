package delegation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/trustroot-signer/interfaces"
	"github.com/ruteri/trustroot-signer/prompt"
)

// Config holds the repository settings of a run.
type Config struct {
	PullRemote string
	PushRemote string
	// MetadataPath is the directory committed after each step, relative to
	// the repository root.
	MetadataPath string
}

// Options are the arguments of a single run.
type Options struct {
	Event string
	// Role to modify. The operator is asked when empty.
	Role string
	Push bool
}

// Orchestrator sequences editing, persisting, signing and committing.
type Orchestrator struct {
	config  Config
	store   interfaces.MetadataStore
	keys    interfaces.KeyProvider
	vcs     interfaces.VCS
	prompt  interfaces.Prompt
	log     *slog.Logger
	offline *OfflineEditor
	online  *OnlineEditor
	sources *KeySourceSelector
	tracker *ObligationTracker
}

func NewOrchestrator(config Config, store interfaces.MetadataStore, keys interfaces.KeyProvider, vcs interfaces.VCS, p interfaces.Prompt, log *slog.Logger) *Orchestrator {
	if config.MetadataPath == "" {
		config.MetadataPath = "metadata"
	}
	sources := NewKeySourceSelector(p, keys, vcs, config.PullRemote)
	return &Orchestrator{
		config:  config,
		store:   store,
		keys:    keys,
		vcs:     vcs,
		prompt:  p,
		log:     log,
		offline: NewOfflineEditor(p),
		online:  NewOnlineEditor(p, sources),
		sources: sources,
		tracker: NewObligationTracker(store, p, log),
	}
}

// Delegate creates the trust root or modifies one role configuration, then
// commits, signs and publishes the change.
func (o *Orchestrator) Delegate(ctx context.Context, opts Options) error {
	var (
		changed bool
		signer  interfaces.SigningCapability
		message string
		err     error
	)

	if o.store.State() == interfaces.Uninitialized {
		changed, signer, err = o.bootstrap(ctx)
		message = "Initial root and targets"
	} else {
		role := opts.Role
		if role == "" {
			if role, err = o.askRole(); err != nil {
				return err
			}
		}

		if interfaces.IsOnlineRole(role) {
			changed, err = o.updateOnlineRoles(ctx)
		} else {
			changed, signer, err = o.updateOfflineRole(ctx, role)
		}
		message = fmt.Sprintf("'%s' role/delegation change", role)
	}
	if err != nil {
		return err
	}

	if !changed {
		o.prompt.Echo("Nothing to do")
		return nil
	}

	if err := o.vcs.StageAndCommit(ctx, []string{o.config.MetadataPath}, message); err != nil {
		return err
	}
	o.log.Info("Committed configuration change", slog.String("message", message))

	unsigned, err := o.tracker.Unsigned()
	if err != nil {
		return err
	}
	if len(unsigned) > 0 {
		o.prompt.Echo("Your signature is required for role(s) %s.", formatRoles(unsigned))
		if err := o.signAndCommit(ctx, unsigned, signer); err != nil {
			return err
		}
	}

	return o.publish(ctx, opts, "Press enter to push changes to %s")
}

func (o *Orchestrator) bootstrap(ctx context.Context) (bool, interfaces.SigningCapability, error) {
	o.prompt.Echo("Creating a new trust root repository")
	user := o.store.UserIdentity()

	root, err := o.offline.Edit(interfaces.RootRole, interfaces.DefaultOfflineRoleConfig(user))
	if err != nil {
		return false, nil, err
	}
	targets, err := o.offline.Edit(interfaces.TargetsRole, root.Clone())
	if err != nil {
		return false, nil, err
	}

	keys, err := o.sources.Keyless(ctx)
	if err != nil {
		return false, nil, err
	}
	online, err := o.online.Edit(ctx, interfaces.DefaultOnlineKeySet(keys, root))
	if err != nil {
		return false, nil, err
	}

	var signer interfaces.SigningCapability
	if root.HasSigner(user) || targets.HasSigner(user) {
		if signer, err = o.keys.RequestSigningCapability(ctx); err != nil {
			return false, nil, err
		}
	}

	if err := o.store.SetRoleConfig(ctx, interfaces.RootRole, root, signer); err != nil {
		return false, nil, err
	}
	if err := o.store.SetRoleConfig(ctx, interfaces.TargetsRole, targets, signer); err != nil {
		return false, nil, err
	}
	if err := o.store.SetOnlineConfig(ctx, online); err != nil {
		return false, nil, err
	}
	return true, signer, nil
}

func (o *Orchestrator) updateOnlineRoles(ctx context.Context) (bool, error) {
	o.prompt.Echo("Modifying online roles")

	current, err := o.store.GetOnlineConfig()
	if err != nil {
		return false, err
	}
	config, err := o.online.Edit(ctx, current)
	if err != nil {
		return false, err
	}
	if config.Equal(current) {
		return false, nil
	}

	if err := o.store.SetOnlineConfig(ctx, config); err != nil {
		return false, err
	}
	return true, nil
}

func (o *Orchestrator) updateOfflineRole(ctx context.Context, role string) (bool, interfaces.SigningCapability, error) {
	user := o.store.UserIdentity()

	var config interfaces.OfflineRoleConfig
	current, err := o.store.GetRoleConfig(role)
	switch {
	case errors.Is(err, interfaces.ErrRoleNotFound):
		o.prompt.Echo("Creating a new delegation for %s", role)
		if config, err = o.offline.Edit(role, interfaces.DefaultOfflineRoleConfig(user)); err != nil {
			return false, nil, err
		}
	case err != nil:
		return false, nil, err
	default:
		o.prompt.Echo("Modifying delegation for %s", role)
		if config, err = o.offline.Edit(role, current); err != nil {
			return false, nil, err
		}
		if config.Equal(current) {
			return false, nil, nil
		}
	}

	var signer interfaces.SigningCapability
	if config.HasSigner(user) {
		if signer, err = o.keys.RequestSigningCapability(ctx); err != nil {
			return false, nil, err
		}
	}

	if err := o.store.SetRoleConfig(ctx, role, config, signer); err != nil {
		return false, nil, err
	}
	return true, signer, nil
}

// signAndCommit signs roles and commits the signatures. The signing
// capability is requested when none was obtained earlier in the run.
func (o *Orchestrator) signAndCommit(ctx context.Context, roles []string, signer interfaces.SigningCapability) error {
	if signer == nil {
		var err error
		if signer, err = o.keys.RequestSigningCapability(ctx); err != nil {
			return err
		}
	}

	if err := o.tracker.SignAll(ctx, roles, signer); err != nil {
		return err
	}

	message := fmt.Sprintf("Signed by %s", o.store.UserIdentity())
	if err := o.vcs.StageAndCommit(ctx, []string{o.config.MetadataPath}, message); err != nil {
		return err
	}
	o.log.Info("Committed signatures", slog.Any("roles", roles))
	return nil
}

// publish pushes the event branch after confirmation, or creates a local
// branch when pushing is disabled.
func (o *Orchestrator) publish(ctx context.Context, opts Options, confirmation string) error {
	if !opts.Push {
		o.prompt.Echo("Creating local branch %s", opts.Event)
		return o.vcs.CreateLocalBranch(ctx, opts.Event)
	}

	branch := fmt.Sprintf("%s/%s", o.config.PushRemote, opts.Event)
	if err := prompt.Confirm(o.prompt, fmt.Sprintf(confirmation, branch)); err != nil {
		return err
	}
	return o.vcs.PushRef(ctx, o.config.PushRemote, "HEAD", "refs/heads/"+opts.Event)
}

func (o *Orchestrator) askRole() (string, error) {
	for {
		role, err := o.prompt.Ask("Enter name of role to modify", "")
		if err != nil {
			return "", err
		}
		if role != "" {
			return role, nil
		}
	}
}

func formatRoles(roles []string) string {
	return strings.Join(roles, ", ")
}
