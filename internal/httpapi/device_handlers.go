package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aengwo/rfid-project/internal/campus/types"
)

// handleScan accepts JSON or protobuf and answers in the same encoding.
// A denied scan is a normal 200 response with granted=false.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	proto := isProtobuf(r)

	var req types.ScanRequest
	if proto {
		m, err := readProto(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_protobuf", "invalid protobuf body")
			return
		}
		req = scanRequestFromProto(m)
	} else if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.evaluator.Evaluate(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if proto {
		writeProto(w, http.StatusOK, scanResponseToProto(resp))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	proto := isProtobuf(r)

	var req types.HeartbeatRequest
	if proto {
		m, err := readProto(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_protobuf", "invalid protobuf body")
			return
		}
		req = heartbeatRequestFromProto(m)
	} else if !decodeJSON(w, r, &req) {
		return
	}
	if req.IP == "" {
		req.IP = clientIP(r)
	}

	resp, err := s.heartbeats.Record(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if proto {
		writeProto(w, http.StatusOK, heartbeatResponseToProto(resp))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListReaders(w http.ResponseWriter, r *http.Request) {
	readers, err := s.readers.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readers": readers})
}

func (s *Server) handleRegisterReader(w http.ResponseWriter, r *http.Request) {
	var in types.ReaderInput
	if !decodeJSON(w, r, &in) {
		return
	}
	reader, err := s.readers.Register(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reader)
}
