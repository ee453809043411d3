package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/google/logger"

	"cocktail-voucher/internal/db"
	"cocktail-voucher/internal/lock"
	"cocktail-voucher/internal/models"
)

// Store is the part of the repository the voucher flow reads and writes.
type Store interface {
	FindParticipant(ctx context.Context, phone string) (models.Participant, error)
	GetDrinkRecord(ctx context.Context, phone string) (models.DrinkRecord, error)
	GetCocktail(ctx context.Context, id int64) (models.CocktailOption, error)
	ListCandidates(ctx context.Context, alcoholic bool) ([]models.CocktailOption, error)
	InsertDrinkRecord(ctx context.Context, rec models.DrinkRecord) (bool, error)
	AssignCocktail(ctx context.Context, phone string, alcoholic bool, cocktailID int64) (bool, error)
	MarkClaimed(ctx context.Context, phone string, slot models.ClaimSlot, requireCocktail bool) (bool, error)
}

// VoucherService identifies participants, assigns one cocktail per phone
// number and records the three drink claims.
type VoucherService struct {
	store    Store
	locker   lock.Locker
	notifier Notifier
	intn     func(n int) int
}

func NewVoucherService(store Store, locker lock.Locker, notifier Notifier) *VoucherService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &VoucherService{
		store:    store,
		locker:   locker,
		notifier: notifier,
		intn:     rand.IntN,
	}
}

// Resolve maps a phone number to the registered participant. Lookup failures
// are reported as ErrNotFound as well.
func (s *VoucherService) Resolve(ctx context.Context, phone string) (models.IdentityToken, error) {
	p, err := s.store.FindParticipant(ctx, phone)
	if err != nil {
		if !errors.Is(err, db.ErrNoRows) {
			logger.Errorf("Participant lookup for %s failed: %v", phone, err)
		}
		return models.IdentityToken{}, ErrNotFound
	}

	return models.IdentityToken{PhoneNumber: p.PhoneNumber, ParticipantName: p.Name}, nil
}

// LoadState builds the session state from the stored drink record. A missing
// record yields the zero state. When the cocktail name cannot be resolved the
// state is still returned, without a name, together with ErrCatalog.
func (s *VoucherService) LoadState(ctx context.Context, token models.IdentityToken) (models.SessionState, error) {
	rec, err := s.store.GetDrinkRecord(ctx, token.PhoneNumber)
	if errors.Is(err, db.ErrNoRows) {
		return models.SessionState{}, nil
	}
	if err != nil {
		logger.Errorf("Drink record lookup for %s failed: %v", token.PhoneNumber, err)
		return models.SessionState{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	state := models.StateFromRecord(rec, "")
	if !rec.HasCocktail() {
		return state, nil
	}

	c, err := s.store.GetCocktail(ctx, *rec.CocktailID)
	if err != nil {
		logger.Errorf("Cocktail %d lookup for %s failed: %v", *rec.CocktailID, token.PhoneNumber, err)
		return state, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	state.CocktailName = c.Name
	return state, nil
}

// RequestVoucher picks a random cocktail matching the preference and binds it
// to the phone number once. Requests for the same number are serialized and
// every write is conditional, so a concurrent session cannot overwrite an
// existing assignment. On error the returned state is the one to keep.
func (s *VoucherService) RequestVoucher(ctx context.Context, token models.IdentityToken, current models.SessionState, alcoholic bool) (models.SessionState, error) {
	if current.HasAssignment {
		return current, ErrAlreadyAssigned
	}

	state, pick, err := s.assign(ctx, token, current, alcoholic)
	if err != nil {
		return state, err
	}

	logger.Infof("Cocktail %d (%s) assigned to %s", pick.ID, pick.Name, token.PhoneNumber)
	s.notifier.Notify(ctx, fmt.Sprintf("🍹 New voucher\n👤 %s (%s)\n🍸 %s", token.ParticipantName, token.PhoneNumber, pick.Name))
	return state, nil
}

// assign holds the per-phone lock from reading the stored record until the
// cocktail is written.
func (s *VoucherService) assign(ctx context.Context, token models.IdentityToken, current models.SessionState, alcoholic bool) (models.SessionState, models.CocktailOption, error) {
	phone := token.PhoneNumber
	release, err := s.locker.Acquire(ctx, "voucher:"+phone)
	if err != nil {
		logger.Errorf("Voucher lock for %s failed: %v", phone, err)
		return current, models.CocktailOption{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	defer release()

	rec, err := s.store.GetDrinkRecord(ctx, phone)
	exists := true
	switch {
	case errors.Is(err, db.ErrNoRows):
		exists = false
	case err != nil:
		logger.Errorf("Error checking existing drink data for %s: %v", phone, err)
		return current, models.CocktailOption{}, fmt.Errorf("%w: %w", ErrFetch, err)
	case rec.HasCocktail():
		return s.refresh(ctx, token, current), models.CocktailOption{}, ErrAlreadyAssigned
	}

	candidates, err := s.store.ListCandidates(ctx, alcoholic)
	if err != nil {
		logger.Errorf("Error fetching cocktails: %v", err)
		return current, models.CocktailOption{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if len(candidates) == 0 {
		return current, models.CocktailOption{}, ErrNoCandidates
	}
	pick := candidates[s.intn(len(candidates))]

	if !exists {
		written, err := s.store.InsertDrinkRecord(ctx, models.DrinkRecord{
			PhoneNumber: phone,
			Alcoholic:   alcoholic,
			CocktailID:  &pick.ID,
		})
		if err != nil {
			logger.Errorf("Error assigning cocktail to %s: %v", phone, err)
			return current, models.CocktailOption{}, fmt.Errorf("%w: %w", ErrPersist, err)
		}
		if written {
			return models.SessionState{}.WithAssignment(alcoholic, pick.Name), pick, nil
		}
		// Another session created the record between the read and the insert.
		if rec, err = s.store.GetDrinkRecord(ctx, phone); err != nil {
			logger.Errorf("Error checking existing drink data for %s: %v", phone, err)
			return current, models.CocktailOption{}, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		if rec.HasCocktail() {
			return s.refresh(ctx, token, current), models.CocktailOption{}, ErrAlreadyAssigned
		}
	}

	ok, err := s.store.AssignCocktail(ctx, phone, alcoholic, pick.ID)
	if err != nil {
		logger.Errorf("Error updating cocktail for %s: %v", phone, err)
		return current, models.CocktailOption{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if !ok {
		return s.refresh(ctx, token, current), models.CocktailOption{}, ErrAlreadyAssigned
	}

	return models.StateFromRecord(rec, "").WithAssignment(alcoholic, pick.Name), pick, nil
}

// ClaimDrink marks one drink allowance as consumed. The second and third
// claims require an assigned cocktail; the first does not, and creates the
// drink record when none exists yet.
func (s *VoucherService) ClaimDrink(ctx context.Context, token models.IdentityToken, current models.SessionState, slot models.ClaimSlot) (models.SessionState, error) {
	if !slot.Valid() {
		return current, fmt.Errorf("unknown claim slot %d", int(slot))
	}
	if slot != models.SlotFirst && !current.HasAssignment {
		return current, ErrAssignmentMissing
	}
	if current.Claimed(slot) {
		return current, ErrAlreadyClaimed
	}

	phone := token.PhoneNumber
	ok, err := s.markClaimed(ctx, phone, slot, current.Alcoholic)
	if err != nil {
		logger.Errorf("Error updating %s drink for %s: %v", slot, phone, err)
		return current, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if ok {
		logger.Infof("%s drink claimed by %s", slot, phone)
		msg := fmt.Sprintf("🥂 %s drink claimed\n👤 %s (%s)", slot, token.ParticipantName, phone)
		if current.CocktailName != "" {
			msg += "\n🍸 " + current.CocktailName
		}
		s.notifier.Notify(ctx, msg)
		return current.WithClaim(slot), nil
	}

	// Nothing was written: find out why from the stored record.
	rec, err := s.store.GetDrinkRecord(ctx, phone)
	switch {
	case errors.Is(err, db.ErrNoRows):
		return current, ErrAssignmentMissing
	case err != nil:
		logger.Errorf("Error reloading drink data for %s: %v", phone, err)
		return current, fmt.Errorf("%w: %w", ErrFetch, err)
	case rec.Claimed(slot):
		return current.WithClaim(slot), ErrAlreadyClaimed
	case slot != models.SlotFirst && !rec.HasCocktail():
		return current, ErrAssignmentMissing
	}
	return current, fmt.Errorf("%w: %s drink for %s was not updated", ErrPersist, slot, phone)
}

func (s *VoucherService) markClaimed(ctx context.Context, phone string, slot models.ClaimSlot, alcoholic bool) (bool, error) {
	ok, err := s.store.MarkClaimed(ctx, phone, slot, slot != models.SlotFirst)
	if err != nil || ok || slot != models.SlotFirst {
		return ok, err
	}
	// A first claim may come before any voucher, so the record may not exist yet.
	return s.store.InsertDrinkRecord(ctx, models.DrinkRecord{
		PhoneNumber:  phone,
		Alcoholic:    alcoholic,
		FirstClaimed: true,
	})
}

// refresh reloads the state after the store rejected a write. The current
// state is kept when the reload fails.
func (s *VoucherService) refresh(ctx context.Context, token models.IdentityToken, current models.SessionState) models.SessionState {
	state, err := s.LoadState(ctx, token)
	if err != nil && !errors.Is(err, ErrCatalog) {
		return current
	}
	return state
}
