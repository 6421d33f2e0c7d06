package handler

import (
	"net/http"

	"github.com/msomdec/todo-api/internal/service"
)

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, auth *service.AuthService, todos *service.TodoService, db Pinger) {
	authHandler := NewAuthHandler(auth)
	todoHandler := NewTodoHandler(todos)

	protected := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(auth, h)
	}

	mux.HandleFunc("GET /healthz", HandleHealthz(db))

	mux.HandleFunc("POST /users", authHandler.HandleRegister)
	mux.HandleFunc("POST /users/login", authHandler.HandleLogin)
	mux.Handle("GET /users/me", protected(authHandler.HandleMe))
	mux.Handle("DELETE /users/me", protected(authHandler.HandleDeleteAccount))
	mux.Handle("DELETE /users/me/token", protected(authHandler.HandleLogout))
	mux.Handle("DELETE /users/me/tokens", protected(authHandler.HandleLogoutAll))
	mux.Handle("PATCH /users/me/password", protected(authHandler.HandleChangePassword))

	mux.Handle("POST /todos", protected(todoHandler.HandleCreate))
	mux.Handle("GET /todos", protected(todoHandler.HandleList))
	mux.Handle("GET /todos/{id}", protected(todoHandler.HandleGet))
	mux.Handle("PATCH /todos/{id}", protected(todoHandler.HandleUpdate))
	mux.Handle("DELETE /todos/{id}", protected(todoHandler.HandleDelete))
}
