package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/greenhome-proxy/internal/journal"
)

// maxCommandsLimit is the largest page the journal returns.
const maxCommandsLimit = 200

// handleListCommands returns journalled commands, newest first.
//
// Query parameters: device_id, status, limit (1-200, default 50), offset.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := journal.Filter{
		DeviceID: q.Get("device_id"),
		Status:   journal.Status(q.Get("status")),
	}

	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown status "+strconv.Quote(string(filter.Status)))
		return
	}

	var ok bool
	if filter.Limit, ok = queryInt(q.Get("limit"), 1, maxCommandsLimit); !ok {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "limit must be between 1 and 200")
		return
	}
	if filter.Offset, ok = queryInt(q.Get("offset"), 0, -1); !ok {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "offset must be a non-negative integer")
		return
	}

	result, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list commands failed", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// queryInt parses an optional integer parameter within [minVal, maxVal].
// A negative maxVal means unbounded. Empty yields 0.
func queryInt(raw string, minVal, maxVal int) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < minVal || (maxVal >= 0 && n > maxVal) {
		return 0, false
	}
	return n, true
}
