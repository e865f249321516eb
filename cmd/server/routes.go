package main

import (
	"encoding/json"
	"net/http"

	"github.com/flexer23/TRTwitchPlaysBot/internal/authz"
	"github.com/flexer23/TRTwitchPlaysBot/internal/chatloop"
	"github.com/flexer23/TRTwitchPlaysBot/internal/macro"
	"github.com/flexer23/TRTwitchPlaysBot/internal/monitor"
)

type macroRequest struct {
	Name      string `json:"name"`
	Expansion string `json:"expansion"`
}

func registerRoutes(mux *http.ServeMux, macros *macro.Store, coordinator *chatloop.Coordinator, hub *monitor.Hub) {
	auth := authz.NewMiddleware()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /monitor", func(w http.ResponseWriter, r *http.Request) {
		monitor.ServeWS(hub, w, r)
	})

	mux.HandleFunc("POST /macros", auth.RequireAuthFunc(handleAddMacro(macros)))
	mux.HandleFunc("DELETE /macros/{name}", auth.RequireAuthFunc(handleRemoveMacro(macros)))
	mux.HandleFunc("GET /macros", auth.RequireAuthFunc(handleListMacros(macros)))
	mux.HandleFunc("POST /stopall", auth.RequireAuthFunc(handleStopAll(coordinator)))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleAddMacro(macros *macro.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req macroRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		m := macros.Add(req.Name, req.Expansion)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(m)
	}
}

func handleRemoveMacro(macros *macro.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if !macros.Remove(name) {
			http.Error(w, "macro not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListMacros(macros *macro.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"macros": macros.List()})
	}
}

func handleStopAll(coordinator *chatloop.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coordinator.StopAll()
		w.WriteHeader(http.StatusNoContent)
	}
}
