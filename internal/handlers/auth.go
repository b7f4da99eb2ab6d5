package handlers

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"paysuit/internal/metrics"
	"paysuit/internal/models"
	"paysuit/internal/store"
)

const sessionName = "paysuit-session"

// sessionStore builds the cookie store on first use, after main has loaded
// .env, so SESSION_SECRET from the environment actually keys the store.
var sessionStore = sync.OnceValue(func() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte(sessionSecret()))
})

func sessionSecret() string {
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return s
	}
	return "secret-key-change-in-production"
}

// Claims is the immutable identity of the caller, read once from the
// session per request and passed by value. Handlers never mutate it.
type Claims struct {
	UserID int
	Name   string
	Email  string
	Roles  []models.UserRole
}

func (c Claims) Has(role models.UserRole) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CurrentClaims builds the caller's claims from the session cookie.
func CurrentClaims(r *http.Request) (Claims, bool) {
	session, _ := sessionStore().Get(r, sessionName)
	userID, ok := session.Values["user_id"].(int)
	if !ok || userID == 0 {
		return Claims{}, false
	}

	name, _ := session.Values["name"].(string)
	email, _ := session.Values["email"].(string)
	rawRoles, _ := session.Values["roles"].(string)

	var roles []models.UserRole
	for _, r := range strings.Split(rawRoles, ",") {
		if r != "" {
			roles = append(roles, models.UserRole(r))
		}
	}

	return Claims{UserID: userID, Name: name, Email: email, Roles: roles}, true
}

func createSession(w http.ResponseWriter, r *http.Request, user models.User) {
	roles := make([]string, len(user.Roles))
	for i, role := range user.Roles {
		roles[i] = string(role)
	}

	session, _ := sessionStore().Get(r, sessionName)
	session.Values["user_id"] = user.ID
	session.Values["name"] = user.Name
	session.Values["email"] = user.Email
	session.Values["roles"] = strings.Join(roles, ",")
	session.Save(r, w)
}

// AuthMiddleware rejects requests without a valid session.
func AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentClaims(r); !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

// RoleMiddleware rejects callers holding none of the given roles.
func RoleMiddleware(next http.HandlerFunc, roles ...models.UserRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := CurrentClaims(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		for _, role := range roles {
			if claims.Has(role) {
				next(w, r)
				return
			}
		}
		writeError(w, http.StatusForbidden, "Forbidden")
	}
}

// RegisterHandler creates a new account. Self-registration never grants the
// admin role.
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Name     string            `json:"name"`
		Email    string            `json:"email"`
		Phone    string            `json:"phone"`
		Password string            `json:"password"`
		Roles    []models.UserRole `json:"roles"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Name, email and a password of at least 8 characters are required")
		return
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = []models.UserRole{models.RoleTenant}
	}
	for _, role := range roles {
		if !models.ValidRole(role) || role == models.RoleAdmin {
			writeError(w, http.StatusBadRequest, "Invalid role: "+string(role))
			return
		}
	}

	user, err := h.Store.CreateUser(r.Context(), req.Name, strings.ToLower(req.Email), req.Phone, req.Password, roles)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "An account with this email already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	createSession(w, r, user)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": user})
}

// LoginHandler authenticates by email/password. Accounts with 2FA enabled
// get a session only after Verify2FALoginHandler.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	user, err := h.Store.GetUserByEmail(r.Context(), strings.ToLower(req.Email))
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !user.CheckPassword(req.Password) {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if user.TOTPEnabled {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"requires_2fa": true,
			"user_id":      user.ID,
		})
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	createSession(w, r, user)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

// LogoutHandler drops the session.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionStore().Get(r, sessionName)
	session.Values["user_id"] = nil
	session.Options.MaxAge = -1
	session.Save(r, w)

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// MeHandler returns the logged-in user's record.
func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := CurrentClaims(r)

	user, err := h.Store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// UpdateProfileHandler updates the caller's name and phone.
func (h *Handler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, _ := CurrentClaims(r)

	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}

	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	if err := h.Store.UpdateUserProfile(r.Context(), claims.UserID, req.Name, req.Phone); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ChangePasswordHandler verifies the current password before setting a new one.
func (h *Handler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, _ := CurrentClaims(r)

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}

	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "New password must be at least 8 characters")
		return
	}

	user, err := h.Store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	if !user.CheckPassword(req.CurrentPassword) {
		writeError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	if err := h.Store.UpdateUserPassword(r.Context(), claims.UserID, string(hash)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
