package delegation

import (
	"context"

	"github.com/ruteri/trustroot-signer/interfaces"
	"github.com/ruteri/trustroot-signer/prompt"
)

type onlineChoice int

const (
	onlineContinue onlineChoice = iota
	onlineKeys
	onlineTimestamp
	onlineSnapshot
)

// OnlineEditor edits the online key set and the cadence of the online roles.
type OnlineEditor struct {
	prompt  interfaces.Prompt
	sources *KeySourceSelector
}

func NewOnlineEditor(p interfaces.Prompt, sources *KeySourceSelector) *OnlineEditor {
	return &OnlineEditor{prompt: p, sources: sources}
}

// Edit returns the edited copy of current. Selecting a new key source
// replaces all keys.
func (e *OnlineEditor) Edit(ctx context.Context, current interfaces.OnlineKeySet) (interfaces.OnlineKeySet, error) {
	config := current.Clone()
	e.prompt.Echo("\nConfiguring online roles")

	for {
		e.prompt.Echo(" 1. Configure online key: %s", config.Locator())
		e.prompt.Echo(" 2. Configure timestamp: Expires in %d days, re-signing starts %d days before expiry", config.TimestampExpiry, config.TimestampSigning)
		e.prompt.Echo(" 3. Configure snapshot: Expires in %d days, re-signing starts %d days before expiry", config.SnapshotExpiry, config.SnapshotSigning)

		choice, err := prompt.AskInt(e.prompt, "Please choose an option or press enter to continue", int(onlineContinue), int(onlineContinue), int(onlineSnapshot))
		if err != nil {
			return interfaces.OnlineKeySet{}, err
		}

		switch onlineChoice(choice) {
		case onlineContinue:
			return config, nil
		case onlineKeys:
			keys, err := e.sources.Select(ctx, config.Locator())
			if err != nil {
				return interfaces.OnlineKeySet{}, err
			}
			config.Keys = keys
			config.Threshold = min(max(config.Threshold, 1), len(keys))
		case onlineTimestamp:
			if config.TimestampExpiry, config.TimestampSigning, err = e.askPeriods(interfaces.TimestampRole, config.TimestampExpiry, config.TimestampSigning); err != nil {
				return interfaces.OnlineKeySet{}, err
			}
		case onlineSnapshot:
			if config.SnapshotExpiry, config.SnapshotSigning, err = e.askPeriods(interfaces.SnapshotRole, config.SnapshotExpiry, config.SnapshotSigning); err != nil {
				return interfaces.OnlineKeySet{}, err
			}
		}
	}
}

func (e *OnlineEditor) askPeriods(role string, expiry, signing int) (int, int, error) {
	expiry, err := prompt.AskInt(e.prompt, "Please enter "+role+" expiry in days", expiry, 1, 0)
	if err != nil {
		return 0, 0, err
	}
	signing, err = prompt.AskInt(e.prompt, "Please enter "+role+" signing period in days", signing, 1, 0)
	if err != nil {
		return 0, 0, err
	}
	return expiry, signing, nil
}
