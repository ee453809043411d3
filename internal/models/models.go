package models

import (
	"fmt"
	"strings"
)

// Participant represents a pre-registered guest
type Participant struct {
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
}

// DrinkRecord is the persisted voucher state for one phone number
type DrinkRecord struct {
	PhoneNumber   string `json:"phone_number"`
	Alcoholic     bool   `json:"alcoholic"`
	CocktailID    *int64 `json:"cocktail_id"` // Pointer allowing null (not assigned yet)
	FirstClaimed  bool   `json:"first_drink_claimed"`
	SecondClaimed bool   `json:"second_drink_claimed"`
	ThirdClaimed  bool   `json:"third_drink_claimed"`
}

// HasCocktail reports whether the record already carries an assignment
func (r DrinkRecord) HasCocktail() bool {
	return r.CocktailID != nil
}

// Claimed returns the flag stored for slot
func (r DrinkRecord) Claimed(slot ClaimSlot) bool {
	switch slot {
	case SlotFirst:
		return r.FirstClaimed
	case SlotSecond:
		return r.SecondClaimed
	case SlotThird:
		return r.ThirdClaimed
	}
	return false
}

// CocktailOption is one entry of the cocktail catalog
type CocktailOption struct {
	ID        int64  `json:"drink_id"`
	Name      string `json:"name"`
	Alcoholic bool   `json:"alcoholic"`
	Quantity  int    `json:"quantity"` // Read only, never decremented
}

// IdentityToken is handed from identification to the drinks page
type IdentityToken struct {
	PhoneNumber     string `json:"phone_number"`
	ParticipantName string `json:"participant_name"`
}

// ClaimSlot identifies one of the three drink allowances
type ClaimSlot int

const (
	SlotFirst ClaimSlot = iota + 1
	SlotSecond
	SlotThird
)

// AllSlots lists the slots in display order
var AllSlots = []ClaimSlot{SlotFirst, SlotSecond, SlotThird}

func (s ClaimSlot) String() string {
	switch s {
	case SlotFirst:
		return "first"
	case SlotSecond:
		return "second"
	case SlotThird:
		return "third"
	}
	return fmt.Sprintf("slot(%d)", int(s))
}

// Valid reports whether s is one of the three known slots
func (s ClaimSlot) Valid() bool {
	return s >= SlotFirst && s <= SlotThird
}

// ParseClaimSlot accepts "first", "second", "third" or their ordinal digits
func ParseClaimSlot(v string) (ClaimSlot, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "first", "1":
		return SlotFirst, nil
	case "second", "2":
		return SlotSecond, nil
	case "third", "3":
		return SlotThird, nil
	}
	return 0, fmt.Errorf("unknown claim slot %q", v)
}

// SessionState is what the drinks page renders. It is replaced wholesale
// after every successful operation.
type SessionState struct {
	Alcoholic     bool
	CocktailName  string // Empty until assigned or when the catalog lookup failed
	HasAssignment bool
	Claims        [3]bool
}

// StateFromRecord derives the session view of a stored record
func StateFromRecord(r DrinkRecord, cocktailName string) SessionState {
	return SessionState{
		Alcoholic:     r.Alcoholic,
		CocktailName:  cocktailName,
		HasAssignment: r.HasCocktail(),
		Claims:        [3]bool{r.FirstClaimed, r.SecondClaimed, r.ThirdClaimed},
	}
}

// Claimed returns the flag for slot
func (s SessionState) Claimed(slot ClaimSlot) bool {
	if !slot.Valid() {
		return false
	}
	return s.Claims[slot-1]
}

// WithClaim returns a copy with slot marked as claimed
func (s SessionState) WithClaim(slot ClaimSlot) SessionState {
	if slot.Valid() {
		s.Claims[slot-1] = true
	}
	return s
}

// WithAssignment returns a copy bound to the given cocktail
func (s SessionState) WithAssignment(alcoholic bool, cocktailName string) SessionState {
	s.Alcoholic = alcoholic
	s.CocktailName = cocktailName
	s.HasAssignment = true
	return s
}
