package mitl

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/danielpatrickdp/swarm-governor/internal/finality"
)

// #region handler
// Handler builds the operator HTTP surface over the MITL server.
func Handler(s *Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /pending", s.handlePending)
	mux.HandleFunc("POST /approve/{id}", s.handleApprove)
	mux.HandleFunc("POST /reject/{id}", s.handleReject)
	mux.HandleFunc("POST /finality-response/{id}", s.handleFinalityResponse)
	return mux
}

// #endregion handler

// #region responses
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[MITL] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": code})
}

// #endregion responses

// #region endpoints
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "pending": s.Pending()})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch err := s.ApprovePending(id); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "proposal_id": id})
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, ErrUseFinalityResponse):
		writeError(w, http.StatusBadRequest, "use_finality_response")
	default:
		log.Printf("[MITL] approve %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "publish_failed")
	}
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Reason string `json:"reason"`
	}
	// Body is optional; a missing or malformed body means default reason.
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch err := s.RejectPending(id, body.Reason); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "proposal_id": id})
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	default:
		log.Printf("[MITL] reject %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "publish_failed")
	}
}

func (s *Server) handleFinalityResponse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Option string          `json:"option"`
		Days   json.RawMessage `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	switch err := s.ResolveFinalityPending(id, finality.Option(body.Option), parseDays(body.Days)); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "proposal_id": id, "option": body.Option})
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, ErrNotFinalityReview):
		writeError(w, http.StatusBadRequest, "not_finality_review")
	case errors.Is(err, ErrInvalidOption):
		writeError(w, http.StatusBadRequest, "invalid_option")
	default:
		log.Printf("[MITL] finality-response %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "publish_failed")
	}
}

// parseDays accepts a JSON number or numeric string. Anything else falls back
// to 0, which ResolveFinalityPending treats as "use the default".
func parseDays(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return 0
}

// #endregion endpoints
