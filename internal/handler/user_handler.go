package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/harper-profiles/internal/auth"
	"github.com/prn-tf/harper-profiles/internal/domain"
	"github.com/prn-tf/harper-profiles/internal/service"
)

// UserHandler serves the /api/users endpoints.
type UserHandler struct {
	users       *service.UserService
	leaderboard *service.LeaderboardService
	logger      zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, leaderboard *service.LeaderboardService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:       users,
		leaderboard: leaderboard,
		logger:      logger.With().Str("handler", "user").Logger(),
	}
}

// RegisterRoutes mounts the user routes. The leaderboard route is registered
// before the parameterized user routes so "high-potential" is never captured
// as a user id.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/high-potential", h.HighPotential)

	r.Get("/{userId}", h.GetUser)
	r.Post("/{userId}", h.RegisterUser)
	r.Put("/{userId}", h.UpdateProfile)
	r.Delete("/{userId}", h.DeleteUser)
	r.Post("/{userId}/rating", h.RecordRating)
	r.Post("/{userId}/activity", h.TouchActivity)
	r.Post("/{userId}/recalculate-score", h.RecalculateScore)
}

// authorize checks that the authenticated identity may act on userID.
// Callers own their record and no one else's. The maintenance token is
// accepted only where allowAdmin is set; everywhere else it gets 403 like
// any other identity mismatch.
func (h *UserHandler) authorize(w http.ResponseWriter, r *http.Request, userID string, allowAdmin bool) *auth.Identity {
	identity := auth.IdentityFrom(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return nil
	}
	if identity.Admin {
		if !allowAdmin {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
			return nil
		}
		return identity
	}
	if identity.Subject != userID {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return nil
	}
	return identity
}

func (h *UserHandler) payload(u *domain.User) *userPayload {
	return &userPayload{
		User:                  u,
		PotentialScoreDetails: h.users.Breakdown(u),
	}
}

// GetUser fetches a profile, creating it lazily on first access. A created
// record answers 201, an existing one 200.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	identity := h.authorize(w, r, userID, false)
	if identity == nil {
		return
	}

	res, err := h.users.Fetch(r.Context(), userID, identity.Name, identity.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, h.payload(res.User))
}

// registerRequest is the body of an explicit registration.
type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RegisterUser creates (or idempotently merges) a profile.
func (h *UserHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if h.authorize(w, r, userID, false) == nil {
		return
	}

	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	user, err := h.users.Register(r.Context(), userID, service.RegisterInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{
		Message: "User registered successfully",
		User:    h.payload(user),
	})
}

// UpdateProfile applies a typed partial update. Unknown fields in the body
// are rejected at decode time.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if h.authorize(w, r, userID, false) == nil {
		return
	}

	var patch domain.ProfilePatch
	if err := decodeBody(r, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), userID, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: "User updated successfully",
		User:    h.payload(user),
	})
}

// DeleteUser removes a profile.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if h.authorize(w, r, userID, false) == nil {
		return
	}

	if err := h.users.Delete(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ratingRequest is the body of a rating event.
type ratingRequest struct {
	Rating float64 `json:"rating"`
}

// RecordRating folds one rating event into the profile.
func (h *UserHandler) RecordRating(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if h.authorize(w, r, userID, false) == nil {
		return
	}

	var req ratingRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	user, err := h.users.RecordRating(r.Context(), userID, req.Rating)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: "Rating recorded successfully",
		User:    h.payload(user),
	})
}

// TouchActivity marks the profile as active now.
func (h *UserHandler) TouchActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if h.authorize(w, r, userID, false) == nil {
		return
	}

	user, err := h.users.TouchActivity(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: "Activity recorded successfully",
		User:    h.payload(user),
	})
}

// RecalculateScore recomputes the stored score from the stored metrics.
func (h *UserHandler) RecalculateScore(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if h.authorize(w, r, userID, true) == nil {
		return
	}

	user, err := h.users.RecalculateScore(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: "Score recalculated successfully",
		User:    h.payload(user),
	})
}

// leaderboardResponse is one leaderboard page.
type leaderboardResponse struct {
	Users      []*userPayload `json:"users"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// HighPotential serves one score-ordered page of users.
// Query parameters: limit (default 10, capped) and lastDocId (cursor).
func (h *UserHandler) HighPotential(w http.ResponseWriter, r *http.Request) {
	if auth.IdentityFrom(r.Context()) == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		// Non-positive values fall through to the service default.
		limit = n
	}
	cursor := r.URL.Query().Get("lastDocId")

	page, err := h.leaderboard.TopUsers(r.Context(), limit, cursor)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := leaderboardResponse{
		Users:      make([]*userPayload, 0, len(page.Users)),
		NextCursor: page.NextCursor,
	}
	for _, u := range page.Users {
		resp.Users = append(resp.Users, h.payload(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeBody decodes a JSON request body, rejecting unknown fields.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body required")
		}
		// encoding/json reports disallowed fields only through the
		// error text, so match on it to surface the sentinel.
		if strings.Contains(err.Error(), "unknown field") {
			return fmt.Errorf("%w: %s", domain.ErrUnknownField, err.Error())
		}
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}
