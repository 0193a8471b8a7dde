package types

const (
	// ModuleName is the reporting module namespace.
	ModuleName = "reporting"

	// StoreKey is the module KV store key.
	StoreKey = ModuleName
)

var (
	// ReportKeyPrefix stores financial health reports by owner|period.
	ReportKeyPrefix = []byte{0x01}

	// ArchivedReportKeyPrefix stores compressed archived reports.
	ArchivedReportKeyPrefix = []byte{0x02}
)
