// Package httpapi exposes the REST API. Routing uses chi; every expected
// failure surfaces as a coded error body, and all mutating routes require a
// Bearer token except registration and login.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pactpoint/backend/internal/app/domain/bet"
	"github.com/pactpoint/backend/internal/app/domain/challenge"
	"github.com/pactpoint/backend/internal/app/domain/user"
	"github.com/pactpoint/backend/internal/app/proofstore"
	"github.com/pactpoint/backend/internal/app/services/bets"
	"github.com/pactpoint/backend/internal/app/services/challenges"
	"github.com/pactpoint/backend/internal/app/services/notifications"
	"github.com/pactpoint/backend/internal/app/services/tribunal"
	"github.com/pactpoint/backend/internal/app/services/users"
	apperrors "github.com/pactpoint/backend/internal/errors"
	"github.com/pactpoint/backend/pkg/logger"
)

const maxUploadBytes = 10 << 20

// Sweeper triggers an immediate deadline sweep, used by the admin API.
type Sweeper interface {
	RunOnce(ctx context.Context, now time.Time)
}

// Deps bundles everything the API serves.
type Deps struct {
	Users         *users.Service
	Bets          *bets.Service
	Challenges    *challenges.Service
	Tribunal      *tribunal.Service
	Notifications *notifications.Service
	Proofs        *proofstore.DiskStore
	Sweeper       Sweeper

	JWTSecret       string
	AdminPassphrase string

	RateLimitEnabled bool
	RateLimitRPS     int
	RateLimitBurst   int

	Log *logger.Logger
}

type handler struct {
	deps Deps
	log  *logger.Logger
}

// NewHandler builds the router.
func NewHandler(deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{deps: deps, log: log}

	auth := &authMiddleware{secret: []byte(deps.JWTSecret), log: log}
	admin := &adminMiddleware{passphrase: deps.AdminPassphrase, log: log}
	mtr := newMetrics()

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(mtr.Handler)
	if deps.RateLimitEnabled {
		r.Use(newRateLimiter(deps.RateLimitRPS, deps.RateLimitBurst, log).Handler)
	}

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", mtr.handler)

	if deps.Proofs != nil {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.Proofs.Dir())))
		r.Get("/uploads/*", fs.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)
		r.Get("/feed", h.feed)
		r.Get("/bets/{betID}", h.getBet)

		r.Group(func(r chi.Router) {
			r.Use(auth.Handler)

			r.Get("/auth/me", h.me)

			r.Post("/bets", h.createBet)
			r.Get("/bets", h.listMyBets)
			r.Delete("/bets/{betID}", h.cancelBet)
			r.Post("/bets/{betID}/star", h.toggleStar)
			r.Post("/bets/{betID}/proof", h.submitProof)
			r.Post("/bets/{betID}/votes", h.castVote)

			r.Post("/bets/{betID}/challenges", h.createChallenge)
			r.Get("/bets/{betID}/challenges", h.listChallenges)
			r.Post("/challenges/{challengeID}/accept", h.acceptChallenge)
			r.Post("/challenges/{challengeID}/reject", h.rejectChallenge)

			r.Get("/notifications", h.listNotifications)
			r.Get("/notifications/unread_count", h.unreadCount)
			r.Post("/notifications/{notificationID}/read", h.markRead)
			r.Post("/notifications/read_all", h.markAllRead)
		})

		r.Group(func(r chi.Router) {
			r.Use(admin.Handler)
			r.Get("/admin/users", h.adminListUsers)
			r.Get("/admin/bets", h.adminListBets)
			r.Post("/admin/sweep", h.adminSweep)
		})
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- auth -------------------------------------------------------------------

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Points    int64     `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Points:    u.Points,
		CreatedAt: u.CreatedAt,
	}
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	u, err := h.deps.Users.Register(r.Context(), users.RegisterInput{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	u, token, err := h.deps.Users.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  toUserResponse(u),
	})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.deps.Users.Get(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// --- bets -------------------------------------------------------------------

type betResponse struct {
	ID               string     `json:"id"`
	CreatorID        string     `json:"creator_id"`
	Title            string     `json:"title"`
	Criteria         string     `json:"criteria,omitempty"`
	Amount           int64      `json:"amount"`
	Deadline         time.Time  `json:"deadline"`
	ProofDeadline    *time.Time `json:"proof_deadline,omitempty"`
	Status           bet.Status `json:"status"`
	Stars            int64      `json:"stars"`
	ProofComment     string     `json:"proof_comment,omitempty"`
	ProofMediaURL    string     `json:"proof_media_url,omitempty"`
	ProofSubmittedAt *time.Time `json:"proof_submitted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toBetResponse(b bet.Bet) betResponse {
	return betResponse{
		ID:               b.ID,
		CreatorID:        b.CreatorID,
		Title:            b.Title,
		Criteria:         b.Criteria,
		Amount:           b.Amount,
		Deadline:         b.Deadline,
		ProofDeadline:    b.ProofDeadline,
		Status:           b.Status,
		Stars:            b.Stars,
		ProofComment:     b.ProofComment,
		ProofMediaURL:    b.ProofMediaURL,
		ProofSubmittedAt: b.ProofSubmittedAt,
		CreatedAt:        b.CreatedAt,
	}
}

func toBetResponses(items []bet.Bet) []betResponse {
	out := make([]betResponse, 0, len(items))
	for _, b := range items {
		out = append(out, toBetResponse(b))
	}
	return out
}

func (h *handler) createBet(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title    string    `json:"title"`
		Criteria string    `json:"criteria"`
		Amount   int64     `json:"amount"`
		Deadline time.Time `json:"deadline"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	b, err := h.deps.Bets.Create(r.Context(), UserID(r.Context()), bets.CreateInput{
		Title:    payload.Title,
		Criteria: payload.Criteria,
		Amount:   payload.Amount,
		Deadline: payload.Deadline,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBetResponse(b))
}

func (h *handler) listMyBets(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	page, err := h.deps.Bets.ListMine(r.Context(), UserID(r.Context()), offset, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": toBetResponses(page.Items),
		"total": page.Total,
	})
}

func (h *handler) feed(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	page, err := h.deps.Bets.Feed(r.Context(), offset, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": toBetResponses(page.Items),
		"total": page.Total,
	})
}

type challengeResponse struct {
	ID           string           `json:"id"`
	BetID        string           `json:"bet_id"`
	ChallengerID string           `json:"challenger_id"`
	Amount       int64            `json:"amount"`
	Status       challenge.Status `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

func toChallengeResponse(c challenge.Challenge) challengeResponse {
	return challengeResponse{
		ID:           c.ID,
		BetID:        c.BetID,
		ChallengerID: c.ChallengerID,
		Amount:       c.Amount,
		Status:       c.Status,
		CreatedAt:    c.CreatedAt,
	}
}

func toChallengeResponses(items []challenge.Challenge) []challengeResponse {
	out := make([]challengeResponse, 0, len(items))
	for _, c := range items {
		out = append(out, toChallengeResponse(c))
	}
	return out
}

func (h *handler) getBet(w http.ResponseWriter, r *http.Request) {
	b, betChallenges, votes, err := h.deps.Bets.Get(r.Context(), chi.URLParam(r, "betID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bet":        toBetResponse(b),
		"challenges": toChallengeResponses(betChallenges),
		"vote_count": len(votes),
	})
}

func (h *handler) cancelBet(w http.ResponseWriter, r *http.Request) {
	b, err := h.deps.Bets.Cancel(r.Context(), UserID(r.Context()), chi.URLParam(r, "betID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponse(b))
}

func (h *handler) toggleStar(w http.ResponseWriter, r *http.Request) {
	starred, count, err := h.deps.Bets.ToggleStar(r.Context(), UserID(r.Context()), chi.URLParam(r, "betID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"starred": starred,
		"stars":   count,
	})
}

// --- challenges -------------------------------------------------------------

func (h *handler) createChallenge(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	c, err := h.deps.Challenges.Create(r.Context(), UserID(r.Context()), chi.URLParam(r, "betID"), payload.Amount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChallengeResponse(c))
}

func (h *handler) listChallenges(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Challenges.ListForBet(r.Context(), chi.URLParam(r, "betID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": toChallengeResponses(items)})
}

func (h *handler) acceptChallenge(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Challenges.Accept(r.Context(), UserID(r.Context()), chi.URLParam(r, "challengeID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toChallengeResponse(c))
}

func (h *handler) rejectChallenge(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Challenges.Reject(r.Context(), UserID(r.Context()), chi.URLParam(r, "challengeID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toChallengeResponse(c))
}

// --- tribunal ---------------------------------------------------------------

// submitProof accepts either a JSON body with a comment or a multipart form
// with a comment field and an optional media file.
func (h *handler) submitProof(w http.ResponseWriter, r *http.Request) {
	input := tribunal.ProofInput{}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeBadRequest(w, "invalid multipart form")
			return
		}
		input.Comment = r.FormValue("comment")

		if file, header, err := r.FormFile("media"); err == nil {
			defer file.Close()
			if h.deps.Proofs == nil {
				writeBadRequest(w, "media uploads are not enabled")
				return
			}
			url, err := h.deps.Proofs.Save(header.Filename, file)
			if err != nil {
				writeError(w, h.log, apperrors.Internal("store proof media", err))
				return
			}
			input.MediaURL = url
		}
	} else {
		var payload struct {
			Comment string `json:"comment"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		input.Comment = payload.Comment
	}

	b, err := h.deps.Tribunal.SubmitProof(r.Context(), UserID(r.Context()), chi.URLParam(r, "betID"), input)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponse(b))
}

func (h *handler) castVote(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := h.deps.Tribunal.CastVote(r.Context(), UserID(r.Context()), chi.URLParam(r, "betID"), bet.VoteValue(payload.Value))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"value":    result.Vote.Value,
		"resolved": result.Resolved,
		"status":   result.Status,
	})
}

// --- notifications ----------------------------------------------------------

type notificationResponse struct {
	ID        string    `json:"id"`
	BetID     string    `json:"bet_id,omitempty"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.deps.Notifications.List(r.Context(), UserID(r.Context()), limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, notificationResponse{
			ID:        n.ID,
			BetID:     n.BetID,
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": out})
}

func (h *handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.deps.Notifications.CountUnread(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread": count})
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Notifications.MarkRead(r.Context(), UserID(r.Context()), chi.URLParam(r, "notificationID")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Notifications.MarkAllRead(r.Context(), UserID(r.Context())); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- admin ------------------------------------------------------------------

func (h *handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Users.List(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]userResponse, 0, len(list))
	for _, u := range list {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": out})
}

func (h *handler) adminListBets(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	page, err := h.deps.Bets.Feed(r.Context(), offset, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": toBetResponses(page.Items),
		"total": page.Total,
	})
}

func (h *handler) adminSweep(w http.ResponseWriter, r *http.Request) {
	if h.deps.Sweeper == nil {
		writeError(w, h.log, apperrors.InvalidState("sweeper is not running"))
		return
	}
	h.deps.Sweeper.RunOnce(r.Context(), time.Now().UTC())
	writeJSON(w, http.StatusOK, map[string]string{"status": "swept"})
}

func pagination(r *http.Request) (int, int) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return offset, limit
}
