package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmerrifield20/lostfound/internal/itemledger"
	"github.com/jmerrifield20/lostfound/internal/media"
	"go.uber.org/zap"
)

// ErrForbidden is returned when a session tries to change an item reported
// by another owner.
var ErrForbidden = errors.New("item belongs to another owner")

// ValidationError reports a single invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Owner identifies who is reporting or changing an item. The zero value is
// an anonymous caller.
type Owner struct {
	ID      string
	Contact string
}

// Anonymous reports whether no session identified the caller.
func (o Owner) Anonymous() bool { return strings.TrimSpace(o.ID) == "" }

// ItemInput is the user-editable part of an item.
type ItemInput struct {
	ID          string `json:"id,omitempty"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	ImageURL    string `json:"image_url,omitempty"`

	// Used only when the caller has no session.
	OwnerID      string `json:"owner_id,omitempty"`
	OwnerContact string `json:"owner_contact,omitempty"`
}

// itemLedger is the ledger interface consumed by ItemService.
// *itemledger.Store satisfies this interface.
type itemLedger interface {
	Append(ctx context.Context, r itemledger.Record) (itemledger.Entry, error)
	List(ctx context.Context) ([]itemledger.Entry, error)
	Get(ctx context.Context, id string) (itemledger.Entry, error)
	Update(ctx context.Context, id string, r itemledger.Record) (itemledger.Entry, error)
	Remove(ctx context.Context, id string) error
	Verify(ctx context.Context) error
	Rechain(ctx context.Context) (int, error)
}

// ItemService contains the business rules around the item ledger.
type ItemService struct {
	ledger           itemLedger
	enforceOwnership bool
	newID            func() string
	logger           *zap.Logger
}

// NewItemService creates a new ItemService. Ownership checks are on.
func NewItemService(ledger itemLedger, logger *zap.Logger) *ItemService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ItemService{
		ledger:           ledger,
		enforceOwnership: true,
		newID:            uuid.NewString,
		logger:           logger,
	}
}

// SetEnforceOwnership toggles the owner check on Edit and Withdraw.
func (s *ItemService) SetEnforceOwnership(enforce bool) {
	s.enforceOwnership = enforce
}

// Report validates in and appends it to the ledger as a new item.
func (s *ItemService) Report(ctx context.Context, owner Owner, in ItemInput) (itemledger.Entry, error) {
	id := strings.TrimSpace(in.ID)
	supplied := id != ""
	if !supplied {
		id = s.newID()
	}
	if id == itemledger.GenesisID {
		return itemledger.Entry{}, &ValidationError{Field: "id", Message: "id is reserved"}
	}

	if owner.Anonymous() {
		owner = Owner{ID: in.OwnerID, Contact: in.OwnerContact}
	}
	if owner.Anonymous() {
		return itemledger.Entry{}, &ValidationError{Field: "owner_id", Message: "a session or owner_id is required"}
	}

	// Edit and Withdraw act on every entry sharing an id, so an id may only
	// be reused by the owner who already holds it.
	if supplied {
		matches, err := s.matching(ctx, id)
		if err != nil {
			return itemledger.Entry{}, err
		}
		for _, e := range matches {
			if e.Record.OwnerID != owner.ID {
				return itemledger.Entry{}, fmt.Errorf("%w: %q is used by another owner", itemledger.ErrDuplicateID, id)
			}
		}
	}

	r, err := buildRecord(id, owner, in)
	if err != nil {
		return itemledger.Entry{}, err
	}

	entry, err := s.ledger.Append(ctx, r)
	if err != nil {
		return itemledger.Entry{}, fmt.Errorf("append item: %w", err)
	}
	s.logger.Info("item reported",
		zap.String("id", r.ID),
		zap.String("kind", string(r.Kind)),
		zap.String("owner_id", r.OwnerID),
	)
	return entry, nil
}

// Items returns every reported item in chain order, genesis excluded.
func (s *ItemService) Items(ctx context.Context) ([]itemledger.Entry, error) {
	entries, err := s.ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]itemledger.Entry, 0, len(entries))
	for i, e := range entries {
		if i == 0 && itemledger.IsGenesis(e) {
			continue
		}
		items = append(items, e)
	}
	return items, nil
}

// Chain returns the full ledger, genesis included.
func (s *ItemService) Chain(ctx context.Context) ([]itemledger.Entry, error) {
	return s.ledger.List(ctx)
}

// Edit replaces the editable fields of item id. The id and the owner of the
// stored item are kept.
func (s *ItemService) Edit(ctx context.Context, owner Owner, id string, in ItemInput) (itemledger.Entry, error) {
	current, err := s.authorize(ctx, owner, id)
	if err != nil {
		return itemledger.Entry{}, err
	}

	stored := Owner{ID: current.Record.OwnerID, Contact: current.Record.OwnerContact}
	if !owner.Anonymous() && owner.ID == stored.ID && owner.Contact != "" {
		stored.Contact = owner.Contact
	}
	r, err := buildRecord(id, stored, in)
	if err != nil {
		return itemledger.Entry{}, err
	}

	entry, err := s.ledger.Update(ctx, id, r)
	if err != nil {
		return itemledger.Entry{}, fmt.Errorf("update item: %w", err)
	}
	s.logger.Info("item edited", zap.String("id", id))
	return entry, nil
}

// Withdraw removes item id from the ledger.
func (s *ItemService) Withdraw(ctx context.Context, owner Owner, id string) error {
	if _, err := s.authorize(ctx, owner, id); err != nil {
		return err
	}
	if err := s.ledger.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	s.logger.Info("item withdrawn", zap.String("id", id))
	return nil
}

// Verify checks the integrity of the chain.
func (s *ItemService) Verify(ctx context.Context) error {
	return s.ledger.Verify(ctx)
}

// Rechain re-links the chain after removals or edits in the middle.
func (s *ItemService) Rechain(ctx context.Context) (int, error) {
	n, err := s.ledger.Rechain(ctx)
	if err != nil {
		return 0, fmt.Errorf("rechain: %w", err)
	}
	return n, nil
}

func (s *ItemService) authorize(ctx context.Context, owner Owner, id string) (itemledger.Entry, error) {
	if id == itemledger.GenesisID {
		return itemledger.Entry{}, fmt.Errorf("%w: %q", itemledger.ErrNotFound, id)
	}
	current, err := s.ledger.Get(ctx, id)
	if err != nil {
		return itemledger.Entry{}, err
	}
	if !s.enforceOwnership {
		return current, nil
	}

	// Remove drops every entry with the id, so the caller must own all of them.
	matches, err := s.matching(ctx, id)
	if err != nil {
		return itemledger.Entry{}, err
	}
	for _, e := range matches {
		if owner.Anonymous() || owner.ID != e.Record.OwnerID {
			s.logger.Warn("item change refused",
				zap.String("id", id),
				zap.String("owner_id", owner.ID),
				zap.String("held_by", e.Record.OwnerID),
			)
			return itemledger.Entry{}, ErrForbidden
		}
	}
	return current, nil
}

// matching returns the live entries whose record id is id.
func (s *ItemService) matching(ctx context.Context, id string) ([]itemledger.Entry, error) {
	entries, err := s.ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []itemledger.Entry
	for i, e := range entries {
		if i > 0 && e.Record.ID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func buildRecord(id string, owner Owner, in ItemInput) (itemledger.Record, error) {
	kind, err := itemledger.ParseKind(in.Kind)
	if err != nil {
		return itemledger.Record{}, &ValidationError{Field: "kind", Message: err.Error()}
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return itemledger.Record{}, &ValidationError{Field: "title", Message: "title is required"}
	}
	imageURL, err := media.NormalizeImageURL(in.ImageURL)
	if err != nil {
		return itemledger.Record{}, &ValidationError{Field: "image_url", Message: err.Error()}
	}

	r := itemledger.Record{
		ID:           id,
		Kind:         kind,
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Location:     strings.TrimSpace(in.Location),
		Date:         strings.TrimSpace(in.Date),
		ImageURL:     imageURL,
		OwnerID:      strings.TrimSpace(owner.ID),
		OwnerContact: strings.TrimSpace(owner.Contact),
	}
	if err := r.Validate(); err != nil {
		return itemledger.Record{}, &ValidationError{Field: "id", Message: err.Error()}
	}
	return r, nil
}
