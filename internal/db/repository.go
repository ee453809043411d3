package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cocktail-voucher/internal/config"
	"cocktail-voucher/internal/models"
)

// ErrNoRows reports that a lookup matched nothing. It is not a failure of the
// store itself.
var ErrNoRows = errors.New("no rows")

const drinkColumns = "phone_number, alcoholic, cocktail_id, first_drink_claimed, second_drink_claimed, third_drink_claimed"

// Repository runs the voucher queries against the registration, catalog and
// drinks tables.
type Repository struct {
	db       *sql.DB
	postgres bool
}

func NewRepository(conn *sql.DB, driver string) *Repository {
	return &Repository{db: conn, postgres: driver == config.DriverPostgres}
}

// DB exposes the underlying handle for fixtures and shutdown.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// FindParticipant looks a participant up by exact phone number.
func (r *Repository) FindParticipant(ctx context.Context, phone string) (models.Participant, error) {
	p := models.Participant{PhoneNumber: phone}
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT name FROM spacebar_registration WHERE phone_number = ?"), phone,
	).Scan(&p.Name)
	if err == sql.ErrNoRows {
		return models.Participant{}, ErrNoRows
	}
	if err != nil {
		return models.Participant{}, fmt.Errorf("query participant: %w", err)
	}
	return p, nil
}

// GetDrinkRecord loads the drink record of phone.
func (r *Repository) GetDrinkRecord(ctx context.Context, phone string) (models.DrinkRecord, error) {
	var (
		rec        models.DrinkRecord
		cocktailID sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT "+drinkColumns+" FROM drinks WHERE phone_number = ?"), phone,
	).Scan(&rec.PhoneNumber, &rec.Alcoholic, &cocktailID, &rec.FirstClaimed, &rec.SecondClaimed, &rec.ThirdClaimed)
	if err == sql.ErrNoRows {
		return models.DrinkRecord{}, ErrNoRows
	}
	if err != nil {
		return models.DrinkRecord{}, fmt.Errorf("query drink record: %w", err)
	}
	if cocktailID.Valid {
		id := cocktailID.Int64
		rec.CocktailID = &id
	}
	return rec, nil
}

// GetCocktail resolves one catalog entry.
func (r *Repository) GetCocktail(ctx context.Context, id int64) (models.CocktailOption, error) {
	var (
		c         models.CocktailOption
		alcoholic int
	)
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT drink_id, name, alcoholic, quantity FROM cocktail_total WHERE drink_id = ?"), id,
	).Scan(&c.ID, &c.Name, &alcoholic, &c.Quantity)
	if err == sql.ErrNoRows {
		return models.CocktailOption{}, ErrNoRows
	}
	if err != nil {
		return models.CocktailOption{}, fmt.Errorf("query cocktail %d: %w", id, err)
	}
	c.Alcoholic = alcoholic != 0
	return c, nil
}

// ListCandidates returns every catalog entry whose alcoholic flag matches.
func (r *Repository) ListCandidates(ctx context.Context, alcoholic bool) ([]models.CocktailOption, error) {
	rows, err := r.db.QueryContext(ctx,
		r.rebind("SELECT drink_id, name, quantity FROM cocktail_total WHERE alcoholic = ? ORDER BY drink_id"),
		alcoholicFlag(alcoholic),
	)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var options []models.CocktailOption
	for rows.Next() {
		c := models.CocktailOption{Alcoholic: alcoholic}
		if err := rows.Scan(&c.ID, &c.Name, &c.Quantity); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		options = append(options, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return options, nil
}

// InsertDrinkRecord creates rec unless a record for the same phone number
// exists. It reports whether the row was written.
func (r *Repository) InsertDrinkRecord(ctx context.Context, rec models.DrinkRecord) (bool, error) {
	var cocktailID any
	if rec.CocktailID != nil {
		cocktailID = *rec.CocktailID
	}
	res, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO drinks (`+drinkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (phone_number) DO NOTHING`),
		rec.PhoneNumber, rec.Alcoholic, cocktailID, rec.FirstClaimed, rec.SecondClaimed, rec.ThirdClaimed,
	)
	if err != nil {
		return false, fmt.Errorf("insert drink record: %w", err)
	}
	return affected(res)
}

// AssignCocktail binds a cocktail to an existing, still unassigned record.
// Claim flags are left untouched. It reports false when the record is missing
// or already carries a cocktail.
func (r *Repository) AssignCocktail(ctx context.Context, phone string, alcoholic bool, cocktailID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE drinks SET alcoholic = ?, cocktail_id = ?
		WHERE phone_number = ? AND cocktail_id IS NULL`),
		alcoholic, cocktailID, phone,
	)
	if err != nil {
		return false, fmt.Errorf("assign cocktail: %w", err)
	}
	return affected(res)
}

// MarkClaimed flips one claim flag from false to true. When requireCocktail is
// set the record must already carry an assignment. It reports false when
// nothing changed.
func (r *Repository) MarkClaimed(ctx context.Context, phone string, slot models.ClaimSlot, requireCocktail bool) (bool, error) {
	col, err := claimColumn(slot)
	if err != nil {
		return false, err
	}
	query := "UPDATE drinks SET " + col + " = TRUE WHERE phone_number = ? AND " + col + " = FALSE"
	if requireCocktail {
		query += " AND cocktail_id IS NOT NULL"
	}
	res, err := r.db.ExecContext(ctx, r.rebind(query), phone)
	if err != nil {
		return false, fmt.Errorf("mark %s claimed: %w", slot, err)
	}
	return affected(res)
}

func claimColumn(slot models.ClaimSlot) (string, error) {
	switch slot {
	case models.SlotFirst:
		return "first_drink_claimed", nil
	case models.SlotSecond:
		return "second_drink_claimed", nil
	case models.SlotThird:
		return "third_drink_claimed", nil
	}
	return "", fmt.Errorf("unknown claim slot %d", int(slot))
}

func alcoholicFlag(alcoholic bool) int {
	if alcoholic {
		return 1
	}
	return 0
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// rebind rewrites ? placeholders into $n for postgres.
func (r *Repository) rebind(query string) string {
	if !r.postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
