package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"auth-core/internal/observability"
)

const (
	maxJSONBodyBytes  = 1 << 20
	maxIdentityLength = 254
)

type Handler struct {
	service *Service
	logger  *observability.Logger
}

func NewHandler(service *Service, logger *observability.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type credentialsRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type meResponse struct {
	Identity  string    `json:"identity"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	err := h.service.Register(r.Context(), body.Identity, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid input")
		case errors.Is(err, ErrDuplicateIdentity):
			writeError(w, http.StatusConflict, "identity already exists")
		default:
			sentry.CaptureException(err)
			h.logger.Error("register_failed", map[string]any{"error": err.Error()})
			writeError(w, http.StatusInternalServerError, "failed to register")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	token, err := h.service.Login(r.Context(), body.Identity, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		var limitedErr RateLimitedError
		if errors.As(err, &limitedErr) {
			retryAfter := int(limitedErr.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			h.logger.Info("login_rate_limited", map[string]any{"retry_after_s": retryAfter})
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		sentry.CaptureException(err)
		h.logger.Error("login_failed", map[string]any{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, Token{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.service.Tokens().TTL().Seconds()),
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	tokenStr, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid authorization format")
		return
	}

	if err := h.service.Logout(r.Context(), tokenStr); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		Identity:  claims.Subject,
		IssuedAt:  claims.IssuedAt.UTC(),
		ExpiresAt: claims.ExpiresAt.UTC(),
	})
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body credentialsRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return credentialsRequest{}, false
	}

	body.Identity = strings.TrimSpace(body.Identity)
	if body.Identity == "" || len(body.Identity) > maxIdentityLength || body.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid input")
		return credentialsRequest{}, false
	}

	return body, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
