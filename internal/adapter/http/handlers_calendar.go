package adapthttp

import (
	"net/http"
	"time"

	"namaz/internal/domain"
)

// handleCalendar serves the classified grid for ?month=YYYY-MM, defaulting to the current month.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	today := domain.DateOf(s.now())
	ref := domain.Date{Year: today.Year, Month: today.Month, Day: 1}
	if m := r.URL.Query().Get("month"); m != "" {
		t, err := time.Parse("2006-01", m)
		if err != nil {
			writeError(w, http.StatusBadRequest, domain.ErrMalformedKey)
			return
		}
		ref = domain.Date{Year: t.Year(), Month: t.Month(), Day: 1}
	}

	view, err := s.calendar.Month(r.Context(), userID(r), ref, today)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
