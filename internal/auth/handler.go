package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"auth-service/internal/observability"
)

type Handler struct {
	service *Service
	cookies *Cookies
	logger  *observability.Logger
}

func NewHandler(service *Service, cookies *Cookies, logger *observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Handler{service: service, cookies: cookies, logger: logger}
}

type userResponse struct {
	Message string     `json:"message,omitempty"`
	User    PublicUser `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type validationResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var body signUpRequest
	if err := decodeAndValidate(w, r, &body); err != nil {
		h.writeRequestError(w, r, "sign_up_failed", err)
		return
	}

	user, token, err := h.service.SignUp(r.Context(), body.input())
	if err != nil {
		var validationErr *ValidationError
		switch {
		case errors.Is(err, ErrEmailTaken):
			writeJSON(w, http.StatusConflict, messageResponse{Message: "Email already exists"})
		case errors.Is(err, ErrAdminSignUpDisabled):
			writeJSON(w, http.StatusForbidden, messageResponse{Message: "Admin sign-up is disabled"})
		case errors.As(err, &validationErr):
			h.writeRequestError(w, r, "sign_up_failed", err)
		default:
			h.internalError(w, r, "sign_up_failed", err, "failed to sign up")
		}
		return
	}

	h.cookies.Set(w, token)

	h.logger.Info("user_signed_up", map[string]any{"email": user.Email, "user_id": user.ID})
	writeJSON(w, http.StatusCreated, userResponse{
		Message: "User registered successfully",
		User:    user.Public(),
	})
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var body signInRequest
	if err := decodeAndValidate(w, r, &body); err != nil {
		h.writeRequestError(w, r, "sign_in_failed", err)
		return
	}

	user, token, err := h.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			writeJSON(w, http.StatusNotFound, messageResponse{Message: "User not found"})
		case errors.Is(err, ErrInvalidCredentials):
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Invalid credentials"})
		default:
			h.internalError(w, r, "sign_in_failed", err, "failed to sign in")
		}
		return
	}

	h.cookies.Set(w, token)

	h.logger.Info("user_signed_in", map[string]any{"email": user.Email, "user_id": user.ID})
	writeJSON(w, http.StatusOK, userResponse{
		Message: "User signed in successfully",
		User:    user.Public(),
	})
}

// SignOut always succeeds. A valid session cookie only adds the user to the
// log entry.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if token, ok := h.cookies.Get(r); ok {
		if claims, err := h.service.Tokens().Parse(token); err == nil {
			fields = map[string]any{"email": claims.Email, "user_id": claims.UserID}
		}
	}

	h.cookies.Clear(w)

	h.logger.Info("user_signed_out", fields)
	writeJSON(w, http.StatusOK, messageResponse{Message: "User signed out successfully"})
}

// Me returns the user behind the session cookie. It expects RequireUser
// to have run first.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing session token")
		return
	}

	user, err := h.service.User(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, messageResponse{Message: "User not found"})
			return
		}
		h.internalError(w, r, "load_session_user_failed", err, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: user.Public()})
}

func (h *Handler) writeRequestError(w http.ResponseWriter, r *http.Request, event string, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:   "Validation failed!",
			Details: validationErr.Details,
		})
		return
	}
	h.internalError(w, r, event, err, "internal server error")
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, event string, err error, message string) {
	h.logger.Error(event, map[string]any{"error": err, "path": r.URL.Path})
	sentry.CaptureException(err)
	writeError(w, http.StatusInternalServerError, message)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
