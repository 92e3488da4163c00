package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vbonduro/shopsync/internal/ledger"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.services.Device.Require(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	stock, err := s.services.Ledger.Inventory(r.Context(), orgID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

func (s *Server) handleLowStock(w http.ResponseWriter, r *http.Request) {
	stock, err := s.services.Ledger.LowStockItems(r.Context(), orgID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

func (s *Server) handleRecordMovement(w http.ResponseWriter, r *http.Request) {
	var in ledger.MovementInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.services.Ledger.RecordMovement(r.Context(), orgID(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := ledger.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	history, err := s.services.Ledger.History(r.Context(), orgID(r), r.PathValue("partId"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleListParts(w http.ResponseWriter, r *http.Request) {
	parts, err := s.services.Ledger.ListParts(r.Context(), orgID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

func (s *Server) handleCreatePart(w http.ResponseWriter, r *http.Request) {
	var in ledger.PartInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.services.Ledger.CreatePart(r.Context(), orgID(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeletePart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.services.Ledger.DeletePart(r.Context(), orgID(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAck(w, "part deleted", map[string]string{"id": id})
}
