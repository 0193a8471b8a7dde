package types

const (
	// ModuleName is the recurring bills module namespace.
	ModuleName = "bills"

	// StoreKey is the module KV store key.
	StoreKey = ModuleName
)

var (
	// BillKeyPrefix stores active bills by sequence id.
	BillKeyPrefix = []byte{0x01}

	// BillSeqKey stores the last allocated bill sequence.
	BillSeqKey = []byte{0x02}

	// ArchivedBillKeyPrefix stores archived paid bills by id.
	ArchivedBillKeyPrefix = []byte{0x03}
)
