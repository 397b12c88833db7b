package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"beacon-trilateration/internal/config"
)

const maxSettingsBody = 4 << 10

// SettingsRecorder counts settings requests. *metrics.Collector satisfies it.
type SettingsRecorder interface {
	ObserveSettingsUpdate(result string)
}

type nopSettingsRecorder struct{}

func (nopSettingsRecorder) ObserveSettingsUpdate(string) {}

// SettingsHandler serves GET and POST on the runtime settings. A POST applies
// the fields that parse and keeps the existing value for the rest.
type SettingsHandler struct {
	runtime  *config.Runtime
	recorder SettingsRecorder
	logger   *slog.Logger
}

// NewSettingsHandler creates a settings handler for rt.
func NewSettingsHandler(rt *config.Runtime, recorder SettingsRecorder, logger *slog.Logger) *SettingsHandler {
	if recorder == nil {
		recorder = nopSettingsRecorder{}
	}
	return &SettingsHandler{runtime: rt, recorder: recorder, logger: logger}
}

// Get writes the current settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runtime.Snapshot())
}

// Update applies a settings payload and writes the effective settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSettingsBody))
	if err != nil {
		h.recorder.ObserveSettingsUpdate("invalid")
		writeJSONError(w, http.StatusRequestEntityTooLarge, "settings body too large")
		return
	}

	update, err := config.ParseUpdate(body)
	if err != nil {
		h.recorder.ObserveSettingsUpdate("invalid")
		h.logger.Warn("rejected settings update", "error", err)
		writeJSONError(w, http.StatusBadRequest, "settings must be a JSON object")
		return
	}

	if update.Empty() {
		h.recorder.ObserveSettingsUpdate("unchanged")
		writeJSON(w, http.StatusOK, h.runtime.Snapshot())
		return
	}

	settings := h.runtime.Apply(update)
	h.recorder.ObserveSettingsUpdate("applied")
	h.logger.Info("settings updated",
		"signal_velocity", settings.SignalVelocity,
		"object_velocity", settings.ObjectVelocity,
	)
	writeJSON(w, http.StatusOK, settings)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
