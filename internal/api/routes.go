package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up the module daemon routes.
func RegisterRoutes(router *mux.Router, h *Handlers, authToken string) {
	if authToken == "" {
		h.log.Warn("auth token is empty, state changes are not authenticated")
	}
	protect := func(f http.HandlerFunc) http.Handler {
		return ApplyAuth(f, authToken, h.log)
	}

	apiV1 := router.PathPrefix("/api/v1").Subrouter()

	// --- Read-only ---
	apiV1.HandleFunc("/modules", h.ListModules).Methods("GET")
	apiV1.HandleFunc("/modules/{name}", h.GetModule).Methods("GET")
	apiV1.HandleFunc("/active", h.ListActive).Methods("GET")
	apiV1.HandleFunc("/enablement", h.RequiresEnablement).Methods("POST")

	// --- State changes ---
	apiV1.Handle("/modules/{name}/{stream}/enable", protect(h.Enable)).Methods("POST")
	apiV1.Handle("/modules/{name}/disable", protect(h.Disable)).Methods("POST")
	apiV1.Handle("/modules/{name}/reset", protect(h.Reset)).Methods("POST")
	apiV1.Handle("/modules/{name}/{stream}/profiles/{profile}", protect(h.InstallProfile)).Methods("POST")
	apiV1.Handle("/modules/{name}/{stream}/profiles/{profile}", protect(h.RemoveProfile)).Methods("DELETE")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")
}
