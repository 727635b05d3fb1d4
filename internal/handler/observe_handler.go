package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tgaller/triviador-server/internal/model"
	"github.com/tgaller/triviador-server/internal/repository"
	"github.com/tgaller/triviador-server/internal/service"
)

// recentLimit caps the archive slice returned by the match listing.
const recentLimit = 20

// ObserveHandler serves the JSON observer API: live match listings and
// per-match snapshots. Archive and projection may be nil.
type ObserveHandler struct {
	lobby      *service.Lobby
	archive    repository.MatchArchive
	projection repository.StateProjection
}

// NewObserveHandler creates an ObserveHandler.
func NewObserveHandler(lobby *service.Lobby, archive repository.MatchArchive, projection repository.StateProjection) *ObserveHandler {
	return &ObserveHandler{lobby: lobby, archive: archive, projection: projection}
}

// ListMatches handles GET /api/matches.
func (h *ObserveHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Live   []model.MatchInfo   `json:"live"`
		Recent []model.MatchRecord `json:"recent"`
	}{
		Live:   h.lobby.LiveMatches(),
		Recent: []model.MatchRecord{},
	}
	if resp.Live == nil {
		resp.Live = []model.MatchInfo{}
	}
	if h.archive != nil {
		recent, err := h.archive.RecentMatches(r.Context(), recentLimit)
		if err != nil {
			log.Warn().Err(err).Msg("Recent matches lookup failed")
		} else if recent != nil {
			resp.Recent = recent
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMatch handles GET /api/matches/{id}. The registry answers for
// matches running in this process; the projection covers the rest.
func (h *ObserveHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if snap, ok := h.lobby.SnapshotOf(id); ok {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	if h.projection != nil {
		snap, err := h.projection.GetSnapshot(r.Context(), id)
		if err == nil && snap != nil {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}
	writeError(w, http.StatusNotFound, "match not found")
}
