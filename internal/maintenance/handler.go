package maintenance

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"auth-core/internal/auth"
	"auth-core/internal/observability"
)

type CleanupResult struct {
	PrunedRevocations int `json:"pruned_revocations"`
	SweptRateLimits   int `json:"swept_rate_limit_keys"`
	RemainingRevoked  int `json:"remaining_revocations"`
}

// CleanupHandler drops expired revocation entries and idle rate-limit
// windows. It is meant to be hit by a scheduler holding CRON_SECRET.
type CleanupHandler struct {
	revocations *auth.RevocationSet
	limiters    []*auth.LoginRateLimiter
	logger      *observability.Logger
	cronSecret  string
}

func NewCleanupHandler(
	revocations *auth.RevocationSet,
	logger *observability.Logger,
	cronSecret string,
	limiters ...*auth.LoginRateLimiter,
) *CleanupHandler {
	return &CleanupHandler{
		revocations: revocations,
		limiters:    limiters,
		logger:      logger,
		cronSecret:  strings.TrimSpace(cronSecret),
	}
}

func (h *CleanupHandler) Run() CleanupResult {
	var result CleanupResult
	if h.revocations != nil {
		result.PrunedRevocations = h.revocations.Prune()
		result.RemainingRevoked = h.revocations.Len()
	}
	for _, limiter := range h.limiters {
		result.SweptRateLimits += limiter.Sweep()
	}
	return result
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") ||
		subtle.ConstantTimeCompare([]byte(strings.TrimSpace(parts[1])), []byte(h.cronSecret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	result := h.Run()

	h.logger.Info("auth_cleanup_completed", map[string]any{
		"pruned_revocations":    result.PrunedRevocations,
		"swept_rate_limit_keys": result.SweptRateLimits,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
