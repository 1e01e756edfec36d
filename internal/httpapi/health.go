package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/aengwo/rfid-project/internal/db"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports ready once the database answers and has been
// migrated.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ready := map[string]any{
		"checked_at": time.Now().UTC().Format(time.RFC3339),
	}
	sqlite := map[string]any{"ok": true}
	ready["components"] = map[string]any{"sqlite": sqlite}

	if err := s.checkDB(r.Context(), sqlite); err != nil {
		sqlite["ok"] = false
		sqlite["error"] = err.Error()
		ready["status"] = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, ready)
		return
	}
	ready["status"] = "ready"
	writeJSON(w, http.StatusOK, ready)
}

func (s *Server) checkDB(ctx context.Context, into map[string]any) error {
	if s.db == nil {
		return errNoDatabase
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	v, err := db.SchemaVersion(ctx, s.db)
	if err != nil {
		return err
	}
	if v == 0 {
		return errNotMigrated
	}
	into["schema_version"] = v
	return nil
}
