package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/CrowderSoup/kanban/board"
	"github.com/CrowderSoup/kanban/services"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const maxBodySize = 1 << 20

// BoardHandler exposes the board store mutations of the signed-in user.
type BoardHandler struct {
	sessions *services.Sessions
}

func NewBoardHandler(sessions *services.Sessions) *BoardHandler {
	return &BoardHandler{sessions: sessions}
}

type stateResponse struct {
	Boards          []board.Board `json:"boards"`
	SelectedBoardID string        `json:"selectedBoardId"`
	SelectedBoard   board.Board   `json:"selectedBoard"`
	Created         any           `json:"created,omitempty"`
}

// GetBoard returns every board and the selected one.
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	writeState(w, store, true)
}

// AddBoard creates a board from the request body.
func (h *BoardHandler) AddBoard(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	// Parse request body
	var b board.Board
	if !decode(w, r, &b) {
		return
	}

	created := store.AddBoard(b)
	writeJSON(w, http.StatusCreated, state(store, created))
}

// UpdateBoard replaces the board named originalName.
func (h *BoardHandler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	// Parse request body
	var req struct {
		OriginalName string      `json:"originalName"`
		Board        board.Board `json:"board"`
	}
	if !decode(w, r, &req) {
		return
	}

	writeState(w, store, store.UpdateBoard(req.OriginalName, req.Board))
}

func (h *BoardHandler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	writeState(w, store, store.DeleteBoard(mux.Vars(r)["name"]))
}

func (h *BoardHandler) SelectBoard(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if !decode(w, r, &req) {
		return
	}

	// Selecting the board that is already selected is not a miss
	changed := store.SelectBoard(req.ID) || (req.ID != "" && store.SelectedBoardID() == req.ID)
	writeState(w, store, changed)
}

func (h *BoardHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	// Parse request body
	var t board.Task
	if !decode(w, r, &t) {
		return
	}

	// Add the task, answering with the unchanged state on a miss
	created, added := store.AddTask(mux.Vars(r)["columnId"], t)
	if !added {
		writeState(w, store, false)
		return
	}
	writeJSON(w, http.StatusCreated, state(store, created))
}

func (h *BoardHandler) EditTask(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var t board.Task
	if !decode(w, r, &t) {
		return
	}

	vars := mux.Vars(r)
	writeState(w, store, store.EditTask(vars["columnId"], t, vars["taskId"]))
}

func (h *BoardHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	writeState(w, store, store.DeleteTask(vars["columnId"], vars["taskId"]))
}

func (h *BoardHandler) ToggleSubtask(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	// Parse the subtask index
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		http.Error(w, "Invalid subtask index", http.StatusBadRequest)
		return
	}

	writeState(w, store, store.ToggleSubtask(vars["columnId"], vars["taskId"], index))
}

func (h *BoardHandler) MoveTask(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	req := struct {
		FromColumnID string `json:"fromColumnId"`
		ToColumnID   string `json:"toColumnId"`
		TaskID       string `json:"taskId"`
		ToIndex      int    `json:"toIndex"`
		Persist      *bool  `json:"persist"`
	}{}
	if !decode(w, r, &req) {
		return
	}

	// Persist unless the client asks for an optimistic move
	persist := req.Persist == nil || *req.Persist
	writeState(w, store, store.MoveTask(req.FromColumnID, req.ToColumnID, req.TaskID, req.ToIndex, persist))
}

func (h *BoardHandler) Reset(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	store.ResetToDefault()
	writeState(w, store, true)
}

func (h *BoardHandler) store(w http.ResponseWriter, r *http.Request) (*board.Store, bool) {
	// Get user email from context
	email, ok := emailFromContext(r.Context())
	if !ok {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return nil, false
	}

	return h.sessions.Get(email).Store, true
}

func state(store *board.Store, created any) stateResponse {
	doc := store.Document()
	return stateResponse{
		Boards:          doc.Boards,
		SelectedBoardID: doc.SelectedBoardID,
		SelectedBoard:   store.SelectedBoard(),
		Created:         created,
	}
}

// writeState answers with the current document; a mutation that found nothing to
// change is a 404 carrying the unchanged document.
func writeState(w http.ResponseWriter, store *board.Store, changed bool) {
	status := http.StatusOK
	if !changed {
		status = http.StatusNotFound
	}
	writeJSON(w, status, state(store, nil))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}
