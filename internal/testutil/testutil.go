package testutil

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"cocktail-voucher/internal/config"
	"cocktail-voucher/internal/db"
)

// SetupTestDB opens a fresh in-memory SQLite store with the full schema
func SetupTestDB(t *testing.T) *db.Repository {
	t.Helper()

	ctx := context.Background()
	conn, err := db.Open(ctx, config.DriverSQLite, ":memory:", "")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateTables(ctx, conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return db.NewRepository(conn, config.DriverSQLite)
}

// AddParticipant registers a participant
func AddParticipant(t *testing.T, repo *db.Repository, phone, name string) {
	t.Helper()

	_, err := repo.DB().Exec(`INSERT INTO spacebar_registration (phone_number, name) VALUES (?, ?)`, phone, name)
	if err != nil {
		t.Fatalf("Failed to create test participant: %v", err)
	}
}

// AddCocktail adds a catalog entry and returns its drink_id
func AddCocktail(t *testing.T, repo *db.Repository, id int64, name string, alcoholic bool, quantity int) int64 {
	t.Helper()

	flag := 0
	if alcoholic {
		flag = 1
	}
	_, err := repo.DB().Exec(`
		INSERT INTO cocktail_total (drink_id, name, alcoholic, quantity)
		VALUES (?, ?, ?, ?)
	`, id, name, flag, quantity)
	if err != nil {
		t.Fatalf("Failed to create test cocktail: %v", err)
	}

	return id
}

// AddDrinkRecord inserts a drinks row directly. cocktailID of 0 stores NULL.
func AddDrinkRecord(t *testing.T, repo *db.Repository, phone string, alcoholic bool, cocktailID int64, claims [3]bool) {
	t.Helper()

	var cid any
	if cocktailID != 0 {
		cid = cocktailID
	}
	_, err := repo.DB().Exec(`
		INSERT INTO drinks (phone_number, alcoholic, cocktail_id, first_drink_claimed, second_drink_claimed, third_drink_claimed)
		VALUES (?, ?, ?, ?, ?, ?)
	`, phone, alcoholic, cid, claims[0], claims[1], claims[2])
	if err != nil {
		t.Fatalf("Failed to create test drink record: %v", err)
	}
}

// CountDrinkRecords returns the number of rows in the drinks table
func CountDrinkRecords(t *testing.T, repo *db.Repository) int {
	t.Helper()

	var n int
	if err := repo.DB().QueryRow(`SELECT COUNT(*) FROM drinks`).Scan(&n); err != nil {
		t.Fatalf("Failed to count drink records: %v", err)
	}
	return n
}

// MakeFormRequest creates a form-encoded HTTP test request
func MakeFormRequest(method, path string, form url.Values, cookies ...*http.Cookie) *http.Request {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, bytes.NewReader(nil))
	}

	for _, c := range cookies {
		req.AddCookie(c)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertRedirect checks for a 303 to location
func AssertRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()
	AssertStatus(t, w, http.StatusSeeOther)
	if got := w.Header().Get("Location"); got != location {
		t.Errorf("Expected redirect to %q, got %q", location, got)
	}
}
