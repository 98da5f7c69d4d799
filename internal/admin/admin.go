// Package admin exposes the read-only operational endpoints: per-tenant
// usage analytics and cache effectiveness. Credential issuance and tenant
// management live outside this service.
package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/promptops/prompt-gateway/internal/db"
)

type AdminHandler struct {
	db *db.DB
}

func NewAdminHandler(database *db.DB) *AdminHandler {
	return &AdminHandler{db: database}
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/admin/usage/{tenant_id}", h.GetUsage).Methods("GET")
	router.HandleFunc("/admin/cache/stats", h.GetCacheStats).Methods("GET")
}

func (h *AdminHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantID, err := strconv.Atoi(vars["tenant_id"])
	if err != nil {
		http.Error(w, "Invalid tenant ID", http.StatusBadRequest)
		return
	}

	from := r.URL.Query().Get("from") // e.g., "2026-01-01"
	to := r.URL.Query().Get("to")

	stats, err := h.db.GetUsageStats(r.Context(), tenantID, from, to)
	if err != nil {
		http.Error(w, "Failed to get usage stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *AdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.GetCacheStats(r.Context())
	if err != nil {
		http.Error(w, "Failed to get cache stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
