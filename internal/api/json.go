package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseRange extracts the start_date/end_date query bounds. Both are
// required; a bare date bound for end_date covers the whole day.
func parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	startStr := r.URL.Query().Get("start_date")
	endStr := r.URL.Query().Get("end_date")
	if startStr == "" || endStr == "" {
		writeError(w, http.StatusBadRequest, "please provide both start_date and end_date")
		return time.Time{}, time.Time{}, false
	}

	start, err := parseDateBound(startStr, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid start_date: %s", startStr))
		return time.Time{}, time.Time{}, false
	}
	end, err := parseDateBound(endStr, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid end_date: %s", endStr))
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func parseDateBound(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}
