package types

import (
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
)

const (
	// SignatureWindowSeconds is the proposal signing window (24 hours).
	SignatureWindowSeconds = 86400

	// RotationTimelockSeconds is the mandatory delay between proposing and
	// accepting a pause-admin rotation (48 hours).
	RotationTimelockSeconds = 172800

	// SpendingPeriodSeconds is the rolling window for member spend
	// accounting (30 days).
	SpendingPeriodSeconds = 2592000

	// DefaultThreshold is applied at init until configure_multisig runs.
	DefaultThreshold = 2
)

type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleMember  Role = "member"
	RoleRevoked Role = "revoked"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleRevoked:
		return true
	}
	return false
}

type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusExecuted  ProposalStatus = "executed"
	ProposalStatusExpired   ProposalStatus = "expired"
	ProposalStatusCancelled ProposalStatus = "cancelled"
)

// Terminal reports whether no further transition out of the status is
// permitted.
func (s ProposalStatus) Terminal() bool {
	return s == ProposalStatusExecuted || s == ProposalStatusExpired || s == ProposalStatusCancelled
}

type ActionKind string

const (
	ActionTransfer          ActionKind = "transfer"
	ActionRoleChange        ActionKind = "role_change"
	ActionConfigChange      ActionKind = "config_change"
	ActionEmergencyTransfer ActionKind = "emergency_transfer"
)

// Action is the tagged payload a proposal carries. Only the fields
// relevant to Kind are set; execution switches exhaustively over Kind.
type Action struct {
	Kind      ActionKind `json:"kind"`
	Recipient string     `json:"recipient,omitempty"`
	Amount    string     `json:"amount,omitempty"`
	Member    string     `json:"member,omitempty"`
	Role      Role       `json:"role,omitempty"`
	Threshold int        `json:"threshold,omitempty"`
	Signers   []string   `json:"signers,omitempty"`
}

func (a Action) Validate() error {
	switch a.Kind {
	case ActionTransfer, ActionEmergencyTransfer:
		if strings.TrimSpace(a.Recipient) == "" {
			return fmt.Errorf("%s action requires a recipient", a.Kind)
		}
		amt, err := a.AmountInt()
		if err != nil {
			return err
		}
		if !amt.IsPositive() {
			return fmt.Errorf("%s action requires a positive amount", a.Kind)
		}
	case ActionRoleChange:
		if strings.TrimSpace(a.Member) == "" {
			return fmt.Errorf("role_change action requires a member")
		}
		if !a.Role.Valid() || a.Role == RoleOwner {
			return fmt.Errorf("role_change action has invalid target role %q", a.Role)
		}
	case ActionConfigChange:
		if a.Threshold <= 0 || a.Threshold > len(a.Signers) {
			return fmt.Errorf("config_change action has invalid threshold %d for %d signers", a.Threshold, len(a.Signers))
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}

// AmountInt parses the action amount into sdkmath.Int.
func (a Action) AmountInt() (sdkmath.Int, error) {
	amt, ok := sdkmath.NewIntFromString(a.Amount)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid action amount %q", a.Amount)
	}
	return amt, nil
}

// Member is a family wallet participant. Records are never deleted;
// revocation sets the role to RoleRevoked so the audit trail survives.
type Member struct {
	Address string `json:"address"`
	Role    Role   `json:"role"`
	// SpendingLimit is the per-period cap in minor units. "0" = unlimited.
	SpendingLimit   string `json:"spending_limit"`
	SpentInPeriod   string `json:"spent_in_period"`
	PeriodStartUnix int64  `json:"period_start_unix"`
	AddedAtUnix     int64  `json:"added_at_unix"`
}

func (m Member) Active() bool {
	return m.Role != RoleRevoked
}

func (m Member) LimitInt() sdkmath.Int {
	if v, ok := sdkmath.NewIntFromString(m.SpendingLimit); ok {
		return v
	}
	return sdkmath.ZeroInt()
}

func (m Member) SpentInt() sdkmath.Int {
	if v, ok := sdkmath.NewIntFromString(m.SpentInPeriod); ok {
		return v
	}
	return sdkmath.ZeroInt()
}

// MultisigConfig is the active signer policy. Replacing it never touches
// already-terminal proposals.
type MultisigConfig struct {
	Threshold int      `json:"threshold"`
	Signers   []string `json:"signers"`
	// ProposerSelfSigns controls whether propose_transaction seeds the
	// signature set with the proposer. Deployment policy; default true.
	ProposerSelfSigns bool `json:"proposer_self_signs"`
}

func (c MultisigConfig) Validate() error {
	if c.Threshold <= 0 || c.Threshold > len(c.Signers) {
		return fmt.Errorf("threshold %d invalid for %d signers", c.Threshold, len(c.Signers))
	}
	seen := make(map[string]struct{}, len(c.Signers))
	for _, signer := range c.Signers {
		signer = strings.TrimSpace(signer)
		if signer == "" {
			return fmt.Errorf("signer address cannot be empty")
		}
		if _, dup := seen[signer]; dup {
			return fmt.Errorf("duplicate signer address: %s", signer)
		}
		seen[signer] = struct{}{}
	}
	return nil
}

// HasSigner reports signer-set membership.
func (c MultisigConfig) HasSigner(addr string) bool {
	for _, signer := range c.Signers {
		if signer == addr {
			return true
		}
	}
	return false
}

// Proposal is a pending request to execute a privileged action. Ids are a
// per-wallet monotonic sequence starting at 1 and are never reused.
type Proposal struct {
	ID             uint64         `json:"id"`
	Proposer       string         `json:"proposer"`
	Action         Action         `json:"action"`
	Signatures     []string       `json:"signatures"`
	CreatedAtUnix  int64          `json:"created_at_unix"`
	ExpiresAtUnix  int64          `json:"expires_at_unix"`
	Status         ProposalStatus `json:"status"`
	ExecutedAtUnix int64          `json:"executed_at_unix,omitempty"`
	ResolvedAtUnix int64          `json:"resolved_at_unix,omitempty"`
}

// HasSigned reports whether addr already contributed a signature.
func (p Proposal) HasSigned(addr string) bool {
	for _, sig := range p.Signatures {
		if sig == addr {
			return true
		}
	}
	return false
}

// TerminalAtUnix is the timestamp the proposal left Pending, used as the
// archival cutoff reference.
func (p Proposal) TerminalAtUnix() int64 {
	if p.ExecutedAtUnix != 0 {
		return p.ExecutedAtUnix
	}
	return p.ResolvedAtUnix
}

// ArchivedProposal is the archive-tier projection of a terminal proposal.
// Content is unchanged; only index membership differs.
type ArchivedProposal struct {
	Proposal       Proposal `json:"proposal"`
	ArchivedAtUnix int64    `json:"archived_at_unix"`
}

// EmergencyConfig is the reduced-threshold transfer-only override policy.
type EmergencyConfig struct {
	Enabled   bool `json:"enabled"`
	Threshold int  `json:"threshold"`
}

// PauseState is the circuit breaker. While Paused, every mutating entry
// point except unpause and accept_admin fails closed.
type PauseState struct {
	Paused     bool   `json:"paused"`
	PauseAdmin string `json:"pause_admin"`
}

// AdminRotation is a pending two-phase pause-admin change. At most one
// rotation is in flight per wallet.
type AdminRotation struct {
	ProposedAdmin  string `json:"proposed_admin"`
	ProposedAtUnix int64  `json:"proposed_at_unix"`
}

// StorageStats reports active and archive tier sizes.
type StorageStats struct {
	PendingProposals  int   `json:"pending_proposals"`
	TerminalProposals int   `json:"terminal_proposals"`
	ArchivedProposals int   `json:"archived_proposals"`
	TotalMembers      int   `json:"total_members"`
	LastUpdatedUnix   int64 `json:"last_updated_unix"`
}
