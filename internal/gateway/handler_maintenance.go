package gateway

import (
	"net/http"
	"strconv"

	"github.com/vbonduro/shopsync/internal/domain"
	"github.com/vbonduro/shopsync/internal/service"
)

func (s *Server) handleListMaintenance(w http.ResponseWriter, r *http.Request) {
	records, err := s.services.Maintenance.List(r.Context(), orgID(r), r.URL.Query().Get("status"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleStartMaintenance(w http.ResponseWriter, r *http.Request) {
	var in service.StartInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.services.Maintenance.Start(r.Context(), orgID(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetMaintenance(w http.ResponseWriter, r *http.Request) {
	view, err := s.services.Maintenance.Get(r.Context(), orgID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCompleteMaintenance(w http.ResponseWriter, r *http.Request) {
	rec, err := s.services.Maintenance.Complete(r.Context(), orgID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAck(w, "maintenance completed", map[string]string{
		"id":        rec.ID,
		"vehicleId": rec.VehicleID,
		"status":    string(rec.Status),
	})
}

func (s *Server) handleAdvanceMaintenance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Step domain.Step `json:"step"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.services.Maintenance.Advance(r.Context(), orgID(r), r.PathValue("id"), body.Step)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAddPart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PartID   string `json:"partId"`
		Quantity int64  `json:"quantity"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	mp, err := s.services.Maintenance.AddPart(r.Context(), orgID(r), r.PathValue("id"), body.PartID, body.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAck(w, "part added", map[string]string{
		"id":            mp.ID,
		"maintenanceId": mp.MaintenanceID,
		"partId":        mp.PartID,
		"quantity":      strconv.FormatInt(mp.Quantity, 10),
	})
}
