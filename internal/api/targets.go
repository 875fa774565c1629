package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/JakeFAU/venue-harvester/internal/harvest"
)

const (
	defaultTargetLimit = 100
	maxTargetLimit     = 1000
)

// listTargets handles GET /v1/targets?status=&limit=&offset=. It returns
// {"targets": [...], "total": n} where total counts matches before paging.
func (s *Server) listTargets(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		writeError(w, http.StatusServiceUnavailable, "no run attached")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultTargetLimit, maxTargetLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var want harvest.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		if want, err = parseStatus(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	matched := make([]harvest.TargetResult, 0)
	for _, res := range s.source.Snapshot().Results {
		if want == "" || res.Status == want {
			matched = append(matched, res)
		}
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)
	writeJSON(w, http.StatusOK, map[string]any{
		"targets": matched[offset:end],
		"total":   total,
	})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (harvest.Status, error) {
	switch s := harvest.Status(strings.ToLower(input)); s {
	case harvest.StatusProduced, harvest.StatusEmpty, harvest.StatusNotFound,
		harvest.StatusSkipped, harvest.StatusFailed, harvest.StatusCanceled:
		return s, nil
	case "error", "failure":
		return harvest.StatusFailed, nil
	default:
		return "", errors.New("invalid status")
	}
}
