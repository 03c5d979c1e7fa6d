package itemledger

import "time"

// Entry is one slot of the ledger.
type Entry struct {
	Timestamp           int64  `json:"timestamp"` // unix milliseconds
	Record              Record `json:"record"`
	PreviousFingerprint string `json:"previous_fingerprint"`
	Fingerprint         string `json:"fingerprint"`
}

// newEntry builds an entry and stamps its fingerprint.
func newEntry(ts time.Time, r Record, previous string) Entry {
	e := Entry{
		Timestamp:           ts.UnixMilli(),
		Record:              r,
		PreviousFingerprint: previous,
	}
	e.Fingerprint = e.Recompute()
	return e
}

// Time returns the entry timestamp as a UTC time.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// Recompute returns the fingerprint the entry should carry given its
// current record, previous fingerprint and timestamp.
func (e Entry) Recompute() string {
	return Fingerprint(e.Record, e.PreviousFingerprint, e.Timestamp)
}

// IsGenesis reports whether e looks like the genesis sentinel.
func IsGenesis(e Entry) bool {
	return e.PreviousFingerprint == "" && e.Record == GenesisRecord()
}
