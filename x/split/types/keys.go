package types

const (
	// ModuleName is the allocation split module namespace.
	ModuleName = "split"

	// StoreKey is the module KV store key.
	StoreKey = ModuleName
)

var (
	// ConfigKeyPrefix stores split configurations keyed by owner address.
	ConfigKeyPrefix = []byte{0x01}
)
