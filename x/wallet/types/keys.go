package types

const (
	// ModuleName is the family wallet module namespace.
	ModuleName = "wallet"

	// StoreKey is the module KV store key.
	StoreKey = ModuleName
)

var (
	// OwnerKey stores the wallet owner address.
	OwnerKey = []byte{0x01}

	// MemberKeyPrefix stores family members keyed by address.
	MemberKeyPrefix = []byte{0x02}

	// MultisigConfigKey stores the active multisig configuration.
	MultisigConfigKey = []byte{0x03}

	// ProposalKeyPrefix stores pending and terminal proposals by sequence id.
	ProposalKeyPrefix = []byte{0x04}

	// ProposalSeqKey stores the last allocated proposal sequence.
	ProposalSeqKey = []byte{0x05}

	// ArchivedProposalKeyPrefix stores archived terminal proposals.
	ArchivedProposalKeyPrefix = []byte{0x06}

	// EmergencyConfigKey stores the emergency override policy.
	EmergencyConfigKey = []byte{0x07}

	// PauseStateKey stores the circuit-breaker state.
	PauseStateKey = []byte{0x08}

	// AdminRotationKey stores the pending pause-admin rotation, if any.
	AdminRotationKey = []byte{0x09}
)
