package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"cocktail-voucher/internal/db"
	"cocktail-voucher/internal/lock"
	"cocktail-voucher/internal/middleware"
	"cocktail-voucher/internal/services"
	"cocktail-voucher/internal/session"
	"cocktail-voucher/internal/testutil"
)

func setupRouter(t *testing.T) (http.Handler, *db.Repository, *session.Store) {
	t.Helper()

	repo := testutil.SetupTestDB(t)
	sessions := session.NewStore()
	svc := services.NewVoucherService(repo, lock.NewKeyedMutex(), nil)

	h, err := New(svc, sessions, false)
	if err != nil {
		t.Fatalf("Failed to build handler: %v", err)
	}

	r := chi.NewRouter()
	h.Routes(r)
	return r, repo, sessions
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("Expected a session cookie")
	return nil
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r http.Handler, phone string) *http.Cookie {
	t.Helper()
	w := serve(r, testutil.MakeFormRequest("POST", "/login", url.Values{"phone_number": {phone}}))
	testutil.AssertRedirect(t, w, "/drinks")
	return sessionCookie(t, w)
}

func TestHealth(t *testing.T) {
	r, _, _ := setupRouter(t)

	w := serve(r, testutil.MakeFormRequest("GET", "/health", nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	if w.Body.String() != "OK" {
		t.Errorf("Expected body OK, got %q", w.Body.String())
	}
}

func TestHome(t *testing.T) {
	r, _, _ := setupRouter(t)

	w := serve(r, testutil.MakeFormRequest("GET", "/", nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `name="phone_number"`) {
		t.Error("Expected the phone number form")
	}
}

func TestLoginUnknownPhone(t *testing.T) {
	r, _, sessions := setupRouter(t)

	tests := []struct {
		name  string
		phone string
	}{
		{"unregistered", "555-9999"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, testutil.MakeFormRequest("POST", "/login", url.Values{"phone_number": {tt.phone}}))

			testutil.AssertStatus(t, w, http.StatusOK)
			if !strings.Contains(w.Body.String(), "Participant not found.") {
				t.Errorf("Expected not found alert, got %s", w.Body.String())
			}
			if sessions.Len() != 0 {
				t.Errorf("Expected no session, got %d", sessions.Len())
			}
		})
	}
}

func TestDrinksRequiresSession(t *testing.T) {
	r, _, _ := setupRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/drinks"},
		{"POST", "/drinks/voucher"},
		{"POST", "/drinks/claims/first"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(r, testutil.MakeFormRequest(tt.method, tt.path, url.Values{}))
			testutil.AssertRedirect(t, w, "/")
		})
	}
}

func TestVoucherFlow(t *testing.T) {
	r, repo, _ := setupRouter(t)
	testutil.AddParticipant(t, repo, "555-0100", "Ada")
	testutil.AddCocktail(t, repo, 1, "Sunset Fizz", false, 10)

	cookie := login(t, r, "555-0100")

	w := serve(r, testutil.MakeFormRequest("GET", "/drinks", nil, cookie))
	testutil.AssertStatus(t, w, http.StatusOK)
	body := w.Body.String()
	if !strings.Contains(body, "Welcome, Ada!") {
		t.Errorf("Expected greeting, got %s", body)
	}
	if !strings.Contains(body, "Get Cocktail Voucher") {
		t.Error("Expected voucher button before assignment")
	}

	w = serve(r, testutil.MakeFormRequest("POST", "/drinks/voucher", url.Values{"type": {"non-alcoholic"}}, cookie))
	testutil.AssertRedirect(t, w, "/drinks")

	w = serve(r, testutil.MakeFormRequest("GET", "/drinks", nil, cookie))
	body = w.Body.String()
	if !strings.Contains(body, "Your assigned cocktail: Sunset Fizz") {
		t.Errorf("Expected assigned cocktail, got %s", body)
	}
	if strings.Contains(body, "Get Cocktail Voucher") {
		t.Error("Voucher button should be gone after assignment")
	}
	if !strings.Contains(body, "Claim First Drink") {
		t.Error("Expected claim buttons after assignment")
	}

	w = serve(r, testutil.MakeFormRequest("POST", "/drinks/claims/first", url.Values{}, cookie))
	testutil.AssertRedirect(t, w, "/drinks")

	w = serve(r, testutil.MakeFormRequest("GET", "/drinks", nil, cookie))
	body = w.Body.String()
	if !strings.Contains(body, "First Drink Claimed") {
		t.Errorf("Expected first drink claimed, got %s", body)
	}
	if strings.Contains(body, `role="alert"`) {
		t.Errorf("Expected no alert after a successful claim, got %s", body)
	}

	// Claiming again shows the alert exactly once.
	serve(r, testutil.MakeFormRequest("POST", "/drinks/claims/first", url.Values{}, cookie))
	w = serve(r, testutil.MakeFormRequest("GET", "/drinks", nil, cookie))
	if !strings.Contains(w.Body.String(), "You have already claimed your first drink.") {
		t.Errorf("Expected already claimed alert, got %s", w.Body.String())
	}
	w = serve(r, testutil.MakeFormRequest("GET", "/drinks", nil, cookie))
	if strings.Contains(w.Body.String(), `role="alert"`) {
		t.Error("Alert should only be shown once")
	}

	rec, err := repo.GetDrinkRecord(t.Context(), "555-0100")
	if err != nil {
		t.Fatalf("GetDrinkRecord failed: %v", err)
	}
	if !rec.FirstClaimed || rec.SecondClaimed || rec.ThirdClaimed {
		t.Errorf("Unexpected claims: %+v", rec)
	}
}

func TestRequestVoucherNoCandidates(t *testing.T) {
	r, repo, sessions := setupRouter(t)
	testutil.AddParticipant(t, repo, "555-0100", "Ada")
	testutil.AddCocktail(t, repo, 1, "Sunset Fizz", false, 10)

	cookie := login(t, r, "555-0100")

	w := serve(r, testutil.MakeFormRequest("POST", "/drinks/voucher", url.Values{"type": {"alcoholic"}}, cookie))
	testutil.AssertRedirect(t, w, "/drinks")

	sess, _ := sessions.Get(cookie.Value)
	if sess.State.HasAssignment {
		t.Error("Expected no assignment")
	}
	if !sess.State.Alcoholic {
		t.Error("Expected the alcoholic selection to be kept")
	}

	w = serve(r, testutil.MakeFormRequest("GET", "/drinks", nil, cookie))
	if !strings.Contains(w.Body.String(), "No cocktails available for your selection.") {
		t.Errorf("Expected no candidates alert, got %s", w.Body.String())
	}
}

func TestClaimBeforeVoucher(t *testing.T) {
	r, repo, _ := setupRouter(t)
	testutil.AddParticipant(t, repo, "555-0100", "Ada")

	cookie := login(t, r, "555-0100")

	serve(r, testutil.MakeFormRequest("POST", "/drinks/claims/second", url.Values{}, cookie))
	w := serve(r, testutil.MakeFormRequest("GET", "/drinks", nil, cookie))
	if !strings.Contains(w.Body.String(), "Please get your cocktail voucher first.") {
		t.Errorf("Expected assignment missing alert, got %s", w.Body.String())
	}
	if n := testutil.CountDrinkRecords(t, repo); n != 0 {
		t.Errorf("Expected no drink record, got %d", n)
	}
}

func TestClaimUnknownSlot(t *testing.T) {
	r, repo, _ := setupRouter(t)
	testutil.AddParticipant(t, repo, "555-0100", "Ada")

	cookie := login(t, r, "555-0100")

	w := serve(r, testutil.MakeFormRequest("POST", "/drinks/claims/fourth", url.Values{}, cookie))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestLoginRestoresState(t *testing.T) {
	r, repo, _ := setupRouter(t)
	testutil.AddParticipant(t, repo, "555-0100", "Ada")
	testutil.AddCocktail(t, repo, 7, "Green Mule", true, 5)
	testutil.AddDrinkRecord(t, repo, "555-0100", true, 7, [3]bool{true, true, false})

	cookie := login(t, r, "555-0100")

	w := serve(r, testutil.MakeFormRequest("GET", "/drinks", nil, cookie))
	body := w.Body.String()
	if !strings.Contains(body, "Your assigned cocktail: Green Mule") {
		t.Errorf("Expected restored assignment, got %s", body)
	}
	if !strings.Contains(body, "Second Drink Claimed") || !strings.Contains(body, "Claim Third Drink") {
		t.Errorf("Expected restored claims, got %s", body)
	}
}

func TestLogout(t *testing.T) {
	r, repo, sessions := setupRouter(t)
	testutil.AddParticipant(t, repo, "555-0100", "Ada")

	cookie := login(t, r, "555-0100")

	w := serve(r, testutil.MakeFormRequest("POST", "/logout", url.Values{}, cookie))
	testutil.AssertRedirect(t, w, "/")
	if sessions.Len() != 0 {
		t.Errorf("Expected session to be removed, got %d", sessions.Len())
	}

	w = serve(r, testutil.MakeFormRequest("GET", "/drinks", nil, cookie))
	testutil.AssertRedirect(t, w, "/")
}
