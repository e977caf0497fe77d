package delegation

import (
	"fmt"
	"strings"

	"github.com/ruteri/trustroot-signer/interfaces"
	"github.com/ruteri/trustroot-signer/prompt"
)

type offlineChoice int

const (
	offlineContinue offlineChoice = iota
	offlineSigners
	offlineExpiry
)

// OfflineEditor edits the quorum of a role signed by humans.
type OfflineEditor struct {
	prompt interfaces.Prompt
}

func NewOfflineEditor(p interfaces.Prompt) *OfflineEditor {
	return &OfflineEditor{prompt: p}
}

// Edit returns the edited copy of current. current is never modified.
func (e *OfflineEditor) Edit(role string, current interfaces.OfflineRoleConfig) (interfaces.OfflineRoleConfig, error) {
	config := current.Clone()
	e.prompt.Echo("\nConfiguring role %s", role)

	for {
		e.prompt.Echo(" 1. Configure signers: [%s], requiring %d signatures", strings.Join(config.Signers, ", "), config.Threshold)
		e.prompt.Echo(" 2. Configure expiry: Role expires in %d days, re-signing starts %d days before expiry", config.ExpiryPeriod, config.SigningPeriod)

		choice, err := prompt.AskInt(e.prompt, "Please choose an option or press enter to continue", int(offlineContinue), int(offlineContinue), int(offlineExpiry))
		if err != nil {
			return interfaces.OfflineRoleConfig{}, err
		}

		switch offlineChoice(choice) {
		case offlineContinue:
			return config, nil
		case offlineSigners:
			if err := e.editSigners(role, &config); err != nil {
				return interfaces.OfflineRoleConfig{}, err
			}
		case offlineExpiry:
			if err := e.editPeriods(role, &config); err != nil {
				return interfaces.OfflineRoleConfig{}, err
			}
		}
	}
}

func (e *OfflineEditor) editSigners(role string, config *interfaces.OfflineRoleConfig) error {
	for {
		answer, err := e.prompt.Ask(fmt.Sprintf("Please enter list of %s signers", role), strings.Join(config.Signers, ", "))
		if err != nil {
			return err
		}
		signers, err := interfaces.ParseSigners(answer)
		if err != nil {
			e.prompt.Echo("Error: %v", err)
			continue
		}
		config.Signers = signers
		break
	}

	if len(config.Signers) == 1 {
		config.Threshold = 1
		return nil
	}

	threshold, err := prompt.AskInt(e.prompt, fmt.Sprintf("Please enter %s threshold", role), config.Threshold, 1, len(config.Signers))
	if err != nil {
		return err
	}
	config.Threshold = threshold
	return nil
}

// editPeriods accepts any positive periods. The signing period is not checked
// against the expiry period.
func (e *OfflineEditor) editPeriods(role string, config *interfaces.OfflineRoleConfig) error {
	expiry, err := prompt.AskInt(e.prompt, fmt.Sprintf("Please enter %s expiry period in days", role), config.ExpiryPeriod, 1, 0)
	if err != nil {
		return err
	}
	signing, err := prompt.AskInt(e.prompt, fmt.Sprintf("Please enter %s signing period in days", role), config.SigningPeriod, 1, 0)
	if err != nil {
		return err
	}
	config.ExpiryPeriod = expiry
	config.SigningPeriod = signing
	return nil
}
