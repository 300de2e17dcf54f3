package api

import (
	"encoding/json"
	"log"
	"net/http"

	"ink-blade/internal/game"
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()
	writeJSON(w, map[string]interface{}{
		"tick":      snap.Tick,
		"mode":      snap.Mode,
		"enemies":   len(snap.Enemies),
		"wave":      snap.Wave,
		"score":     snap.Score,
		"timeScale": snap.Feedback.TimeScale,
		"grid":      h.engine.GridStats(),
		"events":    h.engine.GetEventLogStats(),
		"rateLimit": h.gate.GetStats(),
	})
}

func (h *routerHandlers) handleGetHighScore(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]int{"highScore": h.engine.HighScore()})
}

func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetEventLogStats())
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "Frame rendering disabled", http.StatusNotFound)
		return
	}
	snap := h.engine.GetSnapshot()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.renderer.EncodePNG(w, &snap); err != nil {
		log.Printf("⚠️ Frame render failed: %v", err)
	}
}

func (h *routerHandlers) handleMatchStart(w http.ResponseWriter, r *http.Request) {
	h.engine.StartMatch()
	writeJSON(w, map[string]interface{}{"success": true, "mode": h.engine.GetSnapshot().Mode})
}

func (h *routerHandlers) handleMatchReset(w http.ResponseWriter, r *http.Request) {
	h.engine.ResetMatch()
	writeJSON(w, map[string]interface{}{"success": true, "mode": h.engine.GetSnapshot().Mode})
}

func (h *routerHandlers) handleInput(w http.ResponseWriter, r *http.Request) {
	var in game.Intent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&in); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	h.engine.SubmitInputFrom(GetClientIP(r), in)
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleGetTuning(w http.ResponseWriter, r *http.Request) {
	data, err := h.engine.Tuning().Marshal()
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(data)
}

func (h *routerHandlers) handleApplyTier(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tier == "" {
		writeError(w, "Tier is required", http.StatusBadRequest)
		return
	}

	base, err := h.source()
	if err != nil {
		log.Printf("❌ Tuning reload failed: %v", err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	t, err := base.WithTier(req.Tier)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.engine.ApplyTuning(t); err != nil {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	log.Printf("🎚️ Tuning tier set to %s via API", t.Tier)
	writeJSON(w, map[string]interface{}{"success": true, "tier": t.Tier})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
