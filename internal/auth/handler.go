package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/getsentry/sentry-go"

	"payment-platform/internal/apperror"
)

const maxJSONBodyBytes = 1 << 20

// Handler adapts the orchestrator to HTTP. All it adds is body parsing and
// the kind-to-status mapping; the service never sees a status code.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type revokeRequest struct {
	UserID int64 `json:"userId,omitempty"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if _, err := mail.ParseAddress(body.Email); err != nil {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return
	}

	session, err := h.service.Register(r.Context(), NewIdentity{
		Email:    body.Email,
		Username: body.Username,
		Phone:    body.Phone,
	}, body.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	session, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.AccessToken = strings.TrimSpace(body.AccessToken)
	body.RefreshToken = strings.TrimSpace(body.RefreshToken)
	if body.AccessToken == "" || body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "accessToken and refreshToken are required")
		return
	}

	session, err := h.service.Refresh(r.Context(), body.AccessToken, body.RefreshToken)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	caller, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	var body revokeRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	revoked, err := h.service.Revoke(r.Context(), caller, body.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if !revoked {
		writeError(w, http.StatusNotFound, "user not found or token already revoked")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		if appErr.Kind == apperror.KindStore {
			sentry.CaptureException(err)
		}
		writeJSON(w, statusOf(appErr.Kind), map[string]string{
			"code":  appErr.Code,
			"error": appErr.Message,
		})
		return
	}

	sentry.CaptureException(err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"code":  "internal_error",
		"error": "internal server error",
	})
}

func statusOf(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindDuplicate:
		return http.StatusConflict
	case apperror.KindValidation, apperror.KindRegistration:
		return http.StatusBadRequest
	case apperror.KindAuthentication:
		return http.StatusUnauthorized
	case apperror.KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
