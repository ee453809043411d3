package handlers

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/logger"

	"cocktail-voucher/internal/middleware"
	"cocktail-voucher/internal/models"
	"cocktail-voucher/internal/services"
	"cocktail-voucher/internal/session"
	"cocktail-voucher/web"
)

// Handler serves the identification and drinks pages.
type Handler struct {
	vouchers     *services.VoucherService
	sessions     *session.Store
	pages        map[string]*template.Template
	secureCookie bool
}

func New(vouchers *services.VoucherService, sessions *session.Store, secureCookie bool) (*Handler, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"login.html", "drinks.html"} {
		t, err := template.ParseFS(web.Templates, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}

	return &Handler{
		vouchers:     vouchers,
		sessions:     sessions,
		pages:        pages,
		secureCookie: secureCookie,
	}, nil
}

// Routes registers every page on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/", h.Home)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(h.sessions))
		r.Get("/drinks", h.Drinks)
		r.Post("/drinks/voucher", h.RequestVoucher)
		r.Post("/drinks/claims/{slot}", h.ClaimDrink)
	})
}

// Helper to render a page inside the layout
func (h *Handler) render(w http.ResponseWriter, status int, page string, data any) {
	t, ok := h.pages[page]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		logger.Errorf("Template execute error (%s): %v", page, err)
	}
}

type loginPage struct {
	Title       string
	Alert       string
	PhoneNumber string
}

// Home shows the phone number form
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "login.html", loginPage{Title: "Cocktail Party Voucher"})
}

// Login resolves the phone number and opens a session for the participant
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	phone := r.FormValue("phone_number")

	token, err := h.vouchers.Resolve(r.Context(), phone)
	if err != nil {
		h.render(w, http.StatusOK, "login.html", loginPage{
			Title:       "Cocktail Party Voucher",
			Alert:       services.AlertMessage(err, 0),
			PhoneNumber: phone,
		})
		return
	}

	// A browser identifying again drops its previous session.
	if cookie, err := r.Cookie(middleware.CookieName); err == nil && cookie.Value != "" {
		h.sessions.Delete(cookie.Value)
	}

	state, err := h.vouchers.LoadState(r.Context(), token)
	sess := h.sessions.Create(token, state)
	if err != nil {
		sess.Alert = services.AlertMessage(err, 0)
		h.sessions.Save(sess)
	}

	logger.Infof("Participant %s identified", token.PhoneNumber)

	middleware.SetSessionCookie(w, sess.ID, h.secureCookie)
	http.Redirect(w, r, "/drinks", http.StatusSeeOther)
}

// Logout discards the session and returns to identification
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.CookieName); err == nil && cookie.Value != "" {
		h.sessions.Delete(cookie.Value)
	}
	middleware.ClearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type slotView struct {
	Name    string
	Label   string
	Claimed bool
}

type drinksPage struct {
	Title           string
	Alert           string
	ParticipantName string
	State           models.SessionState
	Slots           []slotView
}

// Drinks renders the voucher and claim buttons from the session state
func (h *Handler) Drinks(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())

	slots := make([]slotView, 0, len(models.AllSlots))
	for _, slot := range models.AllSlots {
		ordinal := strings.ToUpper(slot.String()[:1]) + slot.String()[1:]
		v := slotView{Name: slot.String(), Claimed: sess.State.Claimed(slot)}
		if v.Claimed {
			v.Label = ordinal + " Drink Claimed"
		} else {
			v.Label = "Claim " + ordinal + " Drink"
		}
		slots = append(slots, v)
	}

	h.render(w, http.StatusOK, "drinks.html", drinksPage{
		Title:           "Cocktail Party Voucher",
		Alert:           h.sessions.PopAlert(sess.ID),
		ParticipantName: sess.Identity.ParticipantName,
		State:           sess.State,
		Slots:           slots,
	})
}

// RequestVoucher assigns a random cocktail of the chosen type
func (h *Handler) RequestVoucher(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	alcoholic := r.FormValue("type") == "alcoholic"

	state, err := h.vouchers.RequestVoucher(r.Context(), sess.Identity, sess.State, alcoholic)
	if err != nil && !state.HasAssignment {
		// Keep the guest's selection for the next attempt.
		state.Alcoholic = alcoholic
	}
	sess.State = state
	sess.Alert = services.AlertMessage(err, 0)
	h.sessions.Save(sess)

	http.Redirect(w, r, "/drinks", http.StatusSeeOther)
}

// ClaimDrink marks one of the three drinks as claimed
func (h *Handler) ClaimDrink(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())

	slot, err := models.ParseClaimSlot(chi.URLParam(r, "slot"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	state, err := h.vouchers.ClaimDrink(r.Context(), sess.Identity, sess.State, slot)
	sess.State = state
	sess.Alert = services.AlertMessage(err, slot)
	h.sessions.Save(sess)

	http.Redirect(w, r, "/drinks", http.StatusSeeOther)
}
