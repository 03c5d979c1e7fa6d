package itemledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint computes the deterministic digest of an entry from its record,
// the fingerprint of the previous entry and its timestamp (unix ms).
// It depends on nothing else; equal inputs always give equal output.
func Fingerprint(r Record, previous string, timestamp int64) string {
	h := sha256.New()
	// Record holds only strings, so Marshal cannot fail. Struct field order
	// makes the encoding canonical.
	payload, _ := json.Marshal(r)
	fmt.Fprintf(h, "%s|%s|%d", payload, previous, timestamp)
	return hex.EncodeToString(h.Sum(nil))
}
