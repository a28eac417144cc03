// Package audit records every privileged and balance-changing operation so
// compliance reviews can reconstruct what happened without replaying the
// ledger.
package audit

import (
	"time"

	"github.com/google/uuid"

	"smartcore/pkg/domain"
)

// Action names the audited operation.
type Action string

const (
	ActionMint            Action = "token.mint"
	ActionTransfer        Action = "token.transfer"
	ActionBurn            Action = "token.burn"
	ActionForcedTransfer  Action = "token.forced_transfer"
	ActionPause           Action = "token.pause"
	ActionUnpause         Action = "token.unpause"
	ActionAddressFrozen   Action = "custodian.address_frozen"
	ActionPartialFreeze   Action = "custodian.partial_freeze"
	ActionPartialUnfreeze Action = "custodian.partial_unfreeze"
	ActionRecovery        Action = "custodian.recovery"
	ActionYieldClaim      Action = "yield.claim"
	ActionYieldTopUp      Action = "yield.top_up"
	ActionYieldWithdraw   Action = "yield.withdraw"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID      uuid.UUID         `json:"id"`
	At      time.Time         `json:"at"`
	Action  Action            `json:"action"`
	Subject domain.Address    `json:"subject,omitempty"`
	Token   string            `json:"token"`
	Details map[string]string `json:"details,omitempty"`
}
