package gateway

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vbonduro/shopsync/internal/domain"
	"github.com/vbonduro/shopsync/internal/imagestore"
	"github.com/vbonduro/shopsync/internal/service"
)

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.services.Requests.List(r.Context(), orgID(r), r.URL.Query().Get("status"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var in service.RequestInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	req, err := s.services.Requests.Create(r.Context(), orgID(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.services.Requests.Get(r.Context(), orgID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleDecideRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Decision string `json:"decision"`
		Note     string `json:"note"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	req, err := s.services.Requests.Decide(r.Context(), orgID(r), r.PathValue("id"), body.Decision, body.Note)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleFulfillRequest(w http.ResponseWriter, r *http.Request) {
	res, err := s.services.Requests.Fulfill(r.Context(), orgID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.services.Receipts.List(r.Context(), orgID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var in service.ReceiptInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	rc, err := s.services.Receipts.Create(r.Context(), orgID(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rc)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	rc, err := s.services.Receipts.Get(r.Context(), orgID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

// handleMarkReceiptPaid accepts an optional {"paid": bool} body; an empty
// body marks the receipt paid.
func (s *Server) handleMarkReceiptPaid(w http.ResponseWriter, r *http.Request) {
	body := struct {
		Paid *bool `json:"paid"`
	}{}
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	paid := true
	if body.Paid != nil {
		paid = *body.Paid
	}

	rc, err := s.services.Receipts.MarkPaid(r.Context(), orgID(r), r.PathValue("id"), paid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

// handleUploadReceiptImage takes either a multipart form with an "image"
// field or the raw image bytes as the request body.
func (s *Server) handleUploadReceiptImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imagestore.MaxImageSize+(1<<20))

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(imagestore.MaxImageSize); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: failed to parse upload: %v", domain.ErrBadRequest, err))
			return
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: missing image field", domain.ErrBadRequest))
			return
		}
		defer func() { _ = file.Close() }()
		src = file
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(src, imagestore.MaxImageSize+1))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: failed to read image: %v", domain.ErrBadRequest, err))
		return
	}
	if n > imagestore.MaxImageSize {
		s.writeError(w, r, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrBadRequest, imagestore.MaxImageSize))
		return
	}

	rc, err := s.services.Receipts.AttachImage(r.Context(), orgID(r), r.PathValue("id"), buf.Bytes())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (s *Server) handleGetReceiptImage(w http.ResponseWriter, r *http.Request) {
	rc, mimeType, err := s.services.Receipts.Image(r.Context(), orgID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", mimeType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("failed to stream receipt image", "error", err)
	}
}

func (s *Server) handleListShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := s.services.Shifts.List(r.Context(), orgID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shifts)
}

func (s *Server) handleCreateShift(w http.ResponseWriter, r *http.Request) {
	var in service.ShiftInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.services.Shifts.Create(r.Context(), orgID(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) handleEndShift(w http.ResponseWriter, r *http.Request) {
	var in service.ShiftInput
	if err := decodeOptionalJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.services.Shifts.End(r.Context(), orgID(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) handleLatestShift(w http.ResponseWriter, r *http.Request) {
	rep, err := s.services.Shifts.Latest(r.Context(), orgID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleGetShift(w http.ResponseWriter, r *http.Request) {
	rep, err := s.services.Shifts.Get(r.Context(), orgID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
