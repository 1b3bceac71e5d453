package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	// Handle nil payload
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	RespondJSON(w, logger, status, map[string]string{"error": message})
}

// RequiredQuery returns the named query parameter, responding 400 when it is absent.
// An empty value (?name=) counts as present.
func RequiredQuery(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key string) (string, bool) {
	values, ok := r.URL.Query()[key]
	if !ok || len(values) == 0 {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("%s url parameter is required", key))
		return "", false
	}
	return values[0], true
}
