package adapthttp

import (
	"net/http"

	"namaz/internal/domain"
)

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	logs, err := s.logs.Range(r.Context(), userID(r), q.Get("start"), q.Get("end"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if logs == nil {
		logs = []domain.DailyLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Date   string        `json:"date"`
		Counts domain.Counts `json:"counts"`
		Note   *string       `json:"note"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	log, err := s.logs.Upsert(r.Context(), userID(r), body.Date, body.Counts, body.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"log": log})
}

func (s *Server) handleKaza(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Counts domain.Counts `json:"counts"`
		Date   string        `json:"date"`
		Note   *string       `json:"note"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.logs.RecordKaza(r.Context(), userID(r), body.Counts, body.Date, body.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
