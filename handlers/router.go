package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// NewRouter wires the auth routes, the protected board API and the static frontend.
func NewRouter(auth *AuthHandler, boards *BoardHandler, ws *WebSocketHandler, mw *AuthMiddleware, staticDir string) *mux.Router {
	r := mux.NewRouter()

	// Auth routes
	r.HandleFunc("/api/auth/login", auth.Login).Methods("POST")
	r.HandleFunc("/api/auth/verify", auth.VerifyToken).Methods("GET")
	r.HandleFunc("/api/auth/magic-link", auth.HandleMagicLink).Methods("GET")

	// Board routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(mw.Auth)

	api.HandleFunc("/board", boards.GetBoard).Methods("GET")
	api.HandleFunc("/boards", boards.AddBoard).Methods("POST")
	api.HandleFunc("/boards", boards.UpdateBoard).Methods("PUT")
	api.HandleFunc("/boards/select", boards.SelectBoard).Methods("POST")
	api.HandleFunc("/boards/{name}", boards.DeleteBoard).Methods("DELETE")
	api.HandleFunc("/columns/{columnId}/tasks", boards.AddTask).Methods("POST")
	api.HandleFunc("/columns/{columnId}/tasks/{taskId}", boards.EditTask).Methods("PUT")
	api.HandleFunc("/columns/{columnId}/tasks/{taskId}", boards.DeleteTask).Methods("DELETE")
	api.HandleFunc("/columns/{columnId}/tasks/{taskId}/subtasks/{index:[0-9]+}/toggle", boards.ToggleSubtask).Methods("POST")
	api.HandleFunc("/tasks/move", boards.MoveTask).Methods("POST")
	api.HandleFunc("/reset", boards.Reset).Methods("POST")

	// WebSocket route for drag gestures and live state
	if ws != nil {
		api.HandleFunc("/ws", ws.HandleWebSocket)
	}

	// Static file server for frontend
	if staticDir != "" {
		r.PathPrefix("/").Handler(hideDotfiles(http.FileServer(http.Dir(staticDir))))
	}

	return r
}

// hideDotfiles answers 404 for any path with a segment starting with a dot, so
// files like .env never leave the static directory.
func hideDotfiles(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, segment := range strings.Split(r.URL.Path, "/") {
			if strings.HasPrefix(segment, ".") {
				http.NotFound(w, r)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
