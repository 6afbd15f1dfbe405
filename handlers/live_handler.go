package handlers

import (
	"net/http"

	"github.com/nghiatd-29581/badminton-tournament-app/live"
)

// LiveHandler serves the synchronizer's in-memory projections. Responses
// are eventually consistent snapshots, never a direct storage read.
type LiveHandler struct {
	synchronizer *live.Synchronizer
}

func NewLiveHandler(synchronizer *live.Synchronizer) *LiveHandler {
	return &LiveHandler{synchronizer: synchronizer}
}

func (h *LiveHandler) GetLiveSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	snapshot := h.synchronizer.Snapshot()
	if snapshot.TournamentID != tournamentID {
		// The synchronizer only mirrors the active tournament.
		notFoundResponse(w, r)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"live": snapshot}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
