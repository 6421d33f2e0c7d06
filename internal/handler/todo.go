package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/msomdec/todo-api/internal/service"
)

// TodoHandler handles todo CRUD for the authenticated user.
type TodoHandler struct {
	todos *service.TodoService
}

// NewTodoHandler creates a new TodoHandler.
func NewTodoHandler(todos *service.TodoService) *TodoHandler {
	return &TodoHandler{todos: todos}
}

// todoID returns the {id} path value if it is a well-formed identifier.
func todoID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid todo id.")
		return "", false
	}
	return id.String(), true
}

// HandleCreate creates a todo.
// POST /todos
// Request:  {"text":"..."}
// Response: the todo
func (h *TodoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	user := UserFromContext(r.Context())
	todo, err := h.todos.Create(r.Context(), user.ID, req.Text)
	if err != nil {
		writeServiceError(w, "create todo", err)
		return
	}
	writeJSON(w, http.StatusOK, toTodoDTO(todo))
}

// HandleList lists the caller's todos.
// GET /todos
// Response: {"todos":[...]}
func (h *TodoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	todos, err := h.todos.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "list todos", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"todos": toTodoDTOs(todos)})
}

// HandleGet returns one of the caller's todos.
// GET /todos/{id}
// Response: {"todo":{...}}
func (h *TodoHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}

	user := UserFromContext(r.Context())
	todo, err := h.todos.Get(r.Context(), user.ID, id)
	if err != nil {
		writeServiceError(w, "get todo", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"todo": toTodoDTO(todo)})
}

// HandleUpdate edits text and completion of one of the caller's todos.
// Only a literal true for "completed" completes the todo; anything else,
// including omitting it, reopens it.
// PATCH /todos/{id}
// Request:  {"text":"...","completed":true}
// Response: {"todo":{...}}
func (h *TodoHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}

	var req struct {
		Text      *string         `json:"text"`
		Completed json.RawMessage `json:"completed"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	completed := bytes.Equal(bytes.TrimSpace(req.Completed), []byte("true"))

	user := UserFromContext(r.Context())
	todo, err := h.todos.Update(r.Context(), user.ID, id, service.TodoPatch{
		Text:      req.Text,
		Completed: &completed,
	})
	if err != nil {
		writeServiceError(w, "update todo", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"todo": toTodoDTO(todo)})
}

// HandleDelete removes one of the caller's todos and returns it.
// DELETE /todos/{id}
// Response: {"todo":{...}}
func (h *TodoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}

	user := UserFromContext(r.Context())
	todo, err := h.todos.Delete(r.Context(), user.ID, id)
	if err != nil {
		writeServiceError(w, "delete todo", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"todo": toTodoDTO(todo)})
}
