package types

const (
	// ModuleName is the savings goals module namespace.
	ModuleName = "savings"

	// StoreKey is the module KV store key.
	StoreKey = ModuleName
)

var (
	// GoalKeyPrefix stores active goals by sequence id.
	GoalKeyPrefix = []byte{0x01}

	// GoalSeqKey stores the last allocated goal sequence.
	GoalSeqKey = []byte{0x02}

	// ArchivedGoalKeyPrefix stores archived goals by id.
	ArchivedGoalKeyPrefix = []byte{0x03}
)
