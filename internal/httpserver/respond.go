package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	// RetryAfterSeconds is set for 429 responses (RateLimited, §7).
	RetryAfterSeconds *int64 `json:"retry_after_seconds,omitempty"`
}

// RespondError writes a JSON error envelope with the given status code.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	Respond(w, status, ErrorResponse{Error: code, Message: message})
}

// RespondRateLimited writes a 429 response carrying a retry-after hint,
// per the RateLimited entry in the error taxonomy (§7).
func RespondRateLimited(w http.ResponseWriter, retryAfterSeconds int64) {
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds, 10))
	Respond(w, http.StatusTooManyRequests, ErrorResponse{
		Error:             "rate_limited",
		Message:           "platform publishing quota exceeded",
		RetryAfterSeconds: &retryAfterSeconds,
	})
}
