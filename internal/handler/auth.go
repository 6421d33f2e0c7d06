package handler

import (
	"net/http"

	"github.com/msomdec/todo-api/internal/service"
)

// AuthHandler handles account and session HTTP requests.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates an account and logs it in.
// POST /users
// Request:  {"email":"...","password":"..."}
// Response: X-Auth: <token>, {"id":"...","email":"..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	user, token, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, "register user", err)
		return
	}

	w.Header().Set(AuthHeader, token)
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// HandleLogin starts a new session for valid credentials.
// POST /users/login
// Request:  {"email":"...","password":"..."}
// Response: X-Auth: <token>, {"id":"...","email":"..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, "login user", err)
		return
	}

	w.Header().Set(AuthHeader, token)
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// HandleMe returns the authenticated user.
// GET /users/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserDTO(UserFromContext(r.Context())))
}

// HandleLogout revokes the token the request was made with.
// DELETE /users/me/token
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if err := h.auth.Logout(r.Context(), user.ID, TokenFromContext(r.Context())); err != nil {
		writeServiceError(w, "logout user", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleLogoutAll revokes every session of the authenticated user.
// DELETE /users/me/tokens
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if err := h.auth.LogoutAll(r.Context(), user.ID); err != nil {
		writeServiceError(w, "logout all sessions", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleChangePassword replaces the password and revokes all other sessions.
// PATCH /users/me/password
// Request: {"currentPassword":"...","newPassword":"..."}
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	user := UserFromContext(r.Context())
	err := h.auth.ChangePassword(r.Context(), user.ID, TokenFromContext(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeServiceError(w, "change password", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// HandleDeleteAccount removes the user with its todos and sessions.
// DELETE /users/me
func (h *AuthHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if err := h.auth.DeleteAccount(r.Context(), user.ID); err != nil {
		writeServiceError(w, "delete account", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}
