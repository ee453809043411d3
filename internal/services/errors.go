package services

import (
	"errors"
	"fmt"

	"cocktail-voucher/internal/models"
)

var (
	ErrNotFound          = errors.New("participant not found")
	ErrAlreadyAssigned   = errors.New("cocktail already assigned")
	ErrNoCandidates      = errors.New("no cocktails available")
	ErrAlreadyClaimed    = errors.New("drink already claimed")
	ErrAssignmentMissing = errors.New("no cocktail assigned yet")

	// Store failures. They wrap the underlying error.
	ErrPersist = errors.New("persist failed")
	ErrFetch   = errors.New("fetch failed")
	// ErrCatalog means the assigned cocktail's name could not be resolved.
	ErrCatalog = errors.New("catalog lookup failed")
)

// AlertMessage turns an operation error into the text shown to the guest.
// slot is only consulted for claim errors.
func AlertMessage(err error, slot models.ClaimSlot) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Participant not found."
	case errors.Is(err, ErrAlreadyAssigned):
		return "You have already been assigned a cocktail."
	case errors.Is(err, ErrNoCandidates):
		return "No cocktails available for your selection."
	case errors.Is(err, ErrAssignmentMissing):
		return "Please get your cocktail voucher first."
	case errors.Is(err, ErrAlreadyClaimed):
		return fmt.Sprintf("You have already claimed your %s drink.", slot)
	case errors.Is(err, ErrCatalog):
		return "Error fetching cocktail data."
	case errors.Is(err, ErrPersist) && slot.Valid():
		return fmt.Sprintf("Error updating %s drink.", slot)
	case errors.Is(err, ErrPersist):
		return "Error assigning cocktail."
	case errors.Is(err, ErrFetch) && slot.Valid():
		return fmt.Sprintf("Error updating %s drink.", slot)
	case errors.Is(err, ErrFetch):
		return "Error fetching drink data."
	}
	return "Something went wrong. Please try again."
}
