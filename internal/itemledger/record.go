package itemledger

import (
	"fmt"
	"strings"
)

// Kind tells whether an item was lost or found.
type Kind string

const (
	KindLost  Kind = "lost"
	KindFound Kind = "found"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindLost || k == KindFound
}

// ParseKind parses a case-insensitive kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("kind must be %q or %q, got %q", KindLost, KindFound, s)
	}
	return k, nil
}

// Record is a single lost or found item as reported by a user.
type Record struct {
	ID           string `json:"id"`
	Kind         Kind   `json:"kind"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	Date         string `json:"date"`
	ImageURL     string `json:"image_url,omitempty"`
	OwnerID      string `json:"owner_id"`
	OwnerContact string `json:"owner_contact"`
}

// Validate checks the fields every stored item needs. The store does not
// call it; it is meant for the layers that accept user input.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("record id is required")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("record kind must be %q or %q", KindLost, KindFound)
	}
	return nil
}

// GenesisID is the record id carried by the genesis entry.
const GenesisID = "0"

// GenesisRecord returns the sentinel record of the first ledger entry.
func GenesisRecord() Record {
	return Record{
		ID:    GenesisID,
		Kind:  KindFound,
		Title: "Genesis Block",
	}
}
