package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/nghiatd-29581/badminton-tournament-app/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(matchService services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

type startMatchRequest struct {
	SessionID string `json:"session_id"`
}

// StartMatchHandler claims a match for a referee session, or resumes it
// after a reconnect when the same session already holds it.
func (h *MatchHandler) StartMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input startMatchRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.Start(r.Context(), matchID, input.SessionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type adjustScoreRequest struct {
	SessionID string `json:"session_id"`
	Team      int    `json:"team"`
	Delta     int    `json:"delta"`
}

func (h *MatchHandler) AdjustScoreHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input adjustScoreRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.AdjustScore(r.Context(), matchID, input.SessionID, input.Team, input.Delta)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type finishMatchRequest struct {
	SessionID  string `json:"session_id"`
	ScoreTeam1 int    `json:"score_team1"`
	ScoreTeam2 int    `json:"score_team2"`
}

// FinishMatchHandler completes a match. When the match committed but
// the standings update did not confirm, the response still carries the
// completed match and flags the standings as pending; the
// reconciliation pass repairs the table.
func (h *MatchHandler) FinishMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input finishMatchRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.Finish(r.Context(), matchID, input.SessionID, input.ScoreTeam1, input.ScoreTeam2)
	if err != nil {
		if errors.Is(err, services.ErrStandingsNotApplied) && match != nil {
			response := jsonResponse{"match": match, "standings_pending": true}
			if writeErr := writeJSON(w, http.StatusOK, response, nil); writeErr != nil {
				serverErrorResponse(w, r, writeErr)
			}
			return
		}
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ForceReleaseMatchHandler clears the holder of an in-progress match so
// another referee can take over. Admin only.
func (h *MatchHandler) ForceReleaseMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.ForceRelease(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CreateSessionHandler mints an opaque referee session token. Clients
// persist it locally and present it on every lifecycle call; the server
// never stores it outside the match row it holds.
func (h *MatchHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	token := uuid.NewString()
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"session_id": token}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
