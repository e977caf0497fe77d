// Package delegation implements the delegation configuration and signature
// obligation engine.
//
// The Orchestrator drives one run of the delegate or sign command against a
// checked out signing event:
//
//  1. Detect whether the trust root exists (bootstrap) or a role is modified.
//  2. Let the operator edit the configuration with OfflineEditor or
//     OnlineEditor. Editors work on copies and the result is compared with the
//     input to detect no-op edits.
//  3. Persist the change and commit it ("what changed").
//  4. Ask the metadata store which roles still need the acting user's
//     signature, sign them and commit again ("who signed it").
//  5. Push the event branch after confirmation, or create a local branch.
//
// Validation failures inside the editors are answered with a new prompt. Key
// resolution and version control failures abort the run.
package delegation
