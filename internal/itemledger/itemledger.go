// Package itemledger implements the hash-linked ledger of lost and found items.
//
// The ledger is an ordered sequence of entries. Each entry wraps one item
// record together with the fingerprint of the entry before it and its own
// fingerprint, computed over the record, the previous fingerprint and the
// entry timestamp. The first entry is a genesis sentinel seeded when no
// ledger has been persisted yet.
//
// Fingerprints detect accidental corruption and edits that do not respect
// the chain. They are not a tamper-proof seal: anyone with access to the
// storage medium can recompute them.
//
// The whole sequence is persisted as one JSON array under a single key of a
// kvstore.Store after every mutation.
package itemledger
