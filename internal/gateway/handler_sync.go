package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vbonduro/shopsync/internal/domain"
)

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.services.Fleet.ListVehicles(r.Context(), orgID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (s *Server) handleListMechanics(w http.ResponseWriter, r *http.Request) {
	mechanics, err := s.services.Fleet.ListMechanics(r.Context(), orgID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mechanics)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.services.Snapshot.Snapshot(r.Context(), orgID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleReplaceVehicles(w http.ResponseWriter, r *http.Request) {
	var vehicles []domain.Vehicle
	if err := decodeJSON(w, r, &vehicles); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.services.Fleet.ReplaceVehicles(r.Context(), orgID(r), vehicles)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAck(w, "vehicles replaced", map[string]string{"count": strconv.Itoa(n)})
}

func (s *Server) handleReplaceMechanics(w http.ResponseWriter, r *http.Request) {
	var mechanics []domain.Mechanic
	if err := decodeJSON(w, r, &mechanics); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.services.Fleet.ReplaceMechanics(r.Context(), orgID(r), mechanics)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAck(w, "mechanics replaced", map[string]string{"count": strconv.Itoa(n)})
}

// handleRunSync runs a synchronization and waits for it. A run already in
// flight is joined rather than duplicated.
func (s *Server) handleRunSync(w http.ResponseWriter, r *http.Request) {
	if s.services.Sync == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, "SYNC_UNAVAILABLE", "synchronizer is not running")
		return
	}
	res, err := s.services.Sync.Run(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAck(w, "sync completed", map[string]string{
		"vehicles": strconv.Itoa(res.Vehicles),
		"staff":    strconv.Itoa(res.Staff),
		"pushed":   strconv.Itoa(res.Pushed),
		"patched":  strconv.Itoa(res.Patched),
		"attempts": strconv.Itoa(res.Attempts),
		"syncedAt": res.SyncedAt.UTC().Format(time.RFC3339),
	})
}
