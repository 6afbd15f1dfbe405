package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nghiatd-29581/badminton-tournament-app/models"
	"github.com/nghiatd-29581/badminton-tournament-app/services"
)

type stubMatchService struct {
	match *models.Match
	err   error
}

func (s *stubMatchService) Start(context.Context, int, string) (*models.Match, error) {
	return s.match, s.err
}

func (s *stubMatchService) AdjustScore(context.Context, int, string, int, int) (*models.Match, error) {
	return s.match, s.err
}

func (s *stubMatchService) Finish(context.Context, int, string, int, int) (*models.Match, error) {
	return s.match, s.err
}

func (s *stubMatchService) ForceRelease(context.Context, int) (*models.Match, error) {
	return s.match, s.err
}

func (s *stubMatchService) GetByID(context.Context, int) (*models.Match, error) {
	return s.match, s.err
}

func newMatchRouter(svc services.MatchService) *chi.Mux {
	h := NewMatchHandler(svc)
	router := chi.NewRouter()
	router.Post("/sessions", h.CreateSessionHandler)
	router.Post("/matches/{matchID}/start", h.StartMatchHandler)
	router.Post("/matches/{matchID}/score", h.AdjustScoreHandler)
	router.Post("/matches/{matchID}/finish", h.FinishMatchHandler)
	router.Post("/matches/{matchID}/release", h.ForceReleaseMatchHandler)
	return router
}

func inProgressMatch() *models.Match {
	session := "session-a"
	return &models.Match{
		ID: 1, TournamentID: 1, Team1ID: 10, Team2ID: 20,
		Status: models.MatchStatusInProgress, RefereeSessionID: &session,
	}
}

func TestStartMatchResponds200(t *testing.T) {
	router := newMatchRouter(&stubMatchService{match: inProgressMatch()})

	req := httptest.NewRequest(http.MethodPost, "/matches/1/start",
		strings.NewReader(`{"session_id": "session-a"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Match models.Match `json:"match"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.MatchStatusInProgress, body.Match.Status)
}

func TestStartMatchConflictMapsTo409(t *testing.T) {
	router := newMatchRouter(&stubMatchService{err: services.ErrMatchHeldByOtherSession})

	req := httptest.NewRequest(http.MethodPost, "/matches/1/start",
		strings.NewReader(`{"session_id": "session-b"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartMatchInvalidIDRejected(t *testing.T) {
	router := newMatchRouter(&stubMatchService{match: inProgressMatch()})

	req := httptest.NewRequest(http.MethodPost, "/matches/abc/start",
		strings.NewReader(`{"session_id": "session-a"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdjustScoreBadInputMapsTo400(t *testing.T) {
	router := newMatchRouter(&stubMatchService{err: services.ErrScoreDeltaInvalid})

	req := httptest.NewRequest(http.MethodPost, "/matches/1/score",
		strings.NewReader(`{"session_id": "session-a", "team": 1, "delta": 5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdjustScoreUnknownFieldRejected(t *testing.T) {
	router := newMatchRouter(&stubMatchService{match: inProgressMatch()})

	req := httptest.NewRequest(http.MethodPost, "/matches/1/score",
		strings.NewReader(`{"session_id": "session-a", "team": 1, "delta": 1, "bogus": true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFinishMatchNotFoundMapsTo404(t *testing.T) {
	router := newMatchRouter(&stubMatchService{err: services.ErrMatchNotFound})

	req := httptest.NewRequest(http.MethodPost, "/matches/1/finish",
		strings.NewReader(`{"session_id": "session-a", "score_team1": 21, "score_team2": 15}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFinishWithPendingStandingsStillSucceeds(t *testing.T) {
	winner := 10
	completed := &models.Match{
		ID: 1, TournamentID: 1, Team1ID: 10, Team2ID: 20,
		Status: models.MatchStatusCompleted, WinnerID: &winner,
		ScoreTeam1: 21, ScoreTeam2: 15,
	}
	router := newMatchRouter(&stubMatchService{
		match: completed,
		err:   services.ErrStandingsNotApplied,
	})

	req := httptest.NewRequest(http.MethodPost, "/matches/1/finish",
		strings.NewReader(`{"session_id": "session-a", "score_team1": 21, "score_team2": 15}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// The completion is durable; the caller learns the standings lag.
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Match            models.Match `json:"match"`
		StandingsPending bool         `json:"standings_pending"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.StandingsPending)
	assert.Equal(t, models.MatchStatusCompleted, body.Match.Status)
}

func TestCreateSessionMintsToken(t *testing.T) {
	router := newMatchRouter(&stubMatchService{})

	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.SessionID)

	// Tokens are unique per mint.
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	var body2 struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &body2))
	assert.NotEqual(t, body.SessionID, body2.SessionID)
}
