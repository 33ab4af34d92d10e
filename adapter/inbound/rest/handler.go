package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ajkula/GoWatchMin/domain/model"
	"github.com/ajkula/GoWatchMin/domain/port/inbound"
	"github.com/ajkula/GoWatchMin/domain/port/outbound"
)

// Handler serves the read-only status API of a watch session
type Handler struct {
	statusService inbound.StatusService
	logger        outbound.Logger
	version       string
}

// NewHandler creates a REST handler
func NewHandler(statusService inbound.StatusService, logger outbound.Logger, version string) *Handler {
	return &Handler{
		statusService: statusService,
		logger:        logger,
		version:       version,
	}
}

// SetupRoutes registers the REST routes
func (h *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.healthCheck).Methods("GET")

	router.HandleFunc("/api/status", h.getStatus).Methods("GET")
	router.HandleFunc("/api/files", h.listFiles).Methods("GET")
	router.HandleFunc("/api/files/{path:.+}", h.getFile).Methods("GET")
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.statusService.GetStatus(r.Context()))
}

func (h *Handler) listFiles(w http.ResponseWriter, r *http.Request) {
	files := h.statusService.GetFiles(r.Context())

	// state filter, e.g. ?state=failed
	if state := r.URL.Query().Get("state"); state != "" {
		filtered := make([]model.FileStatus, 0, len(files))
		for _, f := range files {
			if f.State == state {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"files": files,
		"count": len(files),
	})
}

func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	relPath := mux.Vars(r)["path"]

	status, ok := h.statusService.GetFile(r.Context(), relPath)
	if !ok {
		http.Error(w, "no outcome recorded for "+relPath, http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil && h.logger != nil {
		h.logger.Warn("Failed to encode response", "error", err)
	}
}
