package model

import "time"

// UsageEntry is one append-only row in the GPU spend ledger. Entries are never
// mutated; the admission budget gate reads them only as a same-day aggregate.
type UsageEntry struct {
	ID        string
	JobID     string
	Purpose   JobPurpose
	Kind      JobKind
	CostUSD   float64
	CreatedAt time.Time
}
