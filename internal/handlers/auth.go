package handlers

import (
	"net/http"
	"strings"

	"github.com/GurgoSoft/MIND-sub001/internal/services"
	"github.com/go-chi/chi/v5"
)

// AuthHandler provides registration, login and email verification endpoints.
type AuthHandler struct {
	Base
	auth  *services.AuthService
	users *services.UserService
}

func NewAuthHandler(base Base, auth *services.AuthService, users *services.UserService) *AuthHandler {
	return &AuthHandler{Base: base, auth: auth, users: users}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, base Base, auth *services.AuthService, users *services.UserService, requireAuth func(http.Handler) http.Handler) {
	handler := NewAuthHandler(base, auth, users)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/send-verification-code", handler.SendVerificationCode)
	r.Post("/verify-email", handler.VerifyEmail)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/logout", handler.Logout)
		r.Get("/me", handler.Me)
	})
}

// Register creates a new account and signs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	session, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "user registered", session)
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	session, err := h.auth.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "login successful", session)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if user, ok := userFromContext(r.Context()); ok {
		h.auth.Logout(r.Context(), user.ID)
	}
	writeMessage(w, http.StatusOK, "logged out", nil)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	current, ok := userFromContext(r.Context())
	if !ok {
		h.fail(w, r, services.ErrUnauthorized)
		return
	}

	user, err := h.users.Get(r.Context(), current.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

type sendCodeRequest struct {
	Email string `json:"email"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *AuthHandler) SendVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		h.fail(w, r, badRequest("email is required"))
		return
	}

	code, err := h.auth.SendVerificationCode(r.Context(), email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var data any
	if code != "" {
		data = map[string]string{"code": code}
	}
	writeMessage(w, http.StatusOK, "verification code sent", data)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || strings.TrimSpace(req.Code) == "" {
		h.fail(w, r, badRequest("email and code are required"))
		return
	}

	session, err := h.auth.VerifyEmail(r.Context(), email, req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "email verified", session)
}
