package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aengwo/rfid-project/internal/campus/service"
	"github.com/aengwo/rfid-project/internal/campus/store"
	"github.com/aengwo/rfid-project/internal/campus/types"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reporting.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handlePopulation returns one location when ?location= is given, else
// every location with traffic today.
func (s *Server) handlePopulation(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		all, err := s.occupancy.Populations(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"locations": all})
		return
	}

	n, err := s.occupancy.CurrentPopulation(r.Context(), location)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.Population{Location: location, Population: n})
}

func (s *Server) handleOccupants(w http.ResponseWriter, r *http.Request) {
	occupants, err := s.occupancy.Occupants(r.Context(), r.URL.Query().Get("location"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"occupants": occupants})
}

func (s *Server) handleWeeklyPattern(w http.ResponseWriter, r *http.Request) {
	pattern, err := s.reporting.WeeklyPattern(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"days":      []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"},
		"locations": pattern,
	})
}

func (s *Server) handleDwellHours(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 10)
	if !ok {
		return
	}
	rows, err := s.reporting.DwellHours(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": rows})
}

func (s *Server) handleCampusTraffic(w http.ResponseWriter, r *http.Request) {
	points, err := s.reporting.CampusTraffic(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"traffic": points})
}

func (s *Server) handleAccessLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 100)
	if !ok {
		return
	}
	q := r.URL.Query()
	events, err := s.reporting.Events(r.Context(), store.EventQuery{
		Location: q.Get("location"),
		CardID:   q.Get("card_id"),
		Limit:    limit,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 1000)
	if !ok {
		return
	}
	events, err := s.reporting.Export(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	filename := fmt.Sprintf("access-logs-%s.csv", time.Now().UTC().Format(time.DateOnly))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if err := service.WriteEventsCSV(w, events); err != nil {
		s.logger.Warn("csv export interrupted", zap.Error(err))
	}
}
