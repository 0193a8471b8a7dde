package types

const (
	// ModuleName is the micro-insurance module namespace.
	ModuleName = "insurance"

	// StoreKey is the module KV store key.
	StoreKey = ModuleName
)

var (
	// PolicyKeyPrefix stores active policies by sequence id.
	PolicyKeyPrefix = []byte{0x01}

	// PolicySeqKey stores the last allocated policy sequence.
	PolicySeqKey = []byte{0x02}

	// ArchivedPolicyKeyPrefix stores archived deactivated policies.
	ArchivedPolicyKeyPrefix = []byte{0x03}

	// ScheduleKeyPrefix stores premium schedules by sequence id.
	ScheduleKeyPrefix = []byte{0x04}

	// ScheduleSeqKey stores the last allocated schedule sequence.
	ScheduleSeqKey = []byte{0x05}
)
