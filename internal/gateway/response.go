package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/soyeahso/agentforge/internal/agent"
	"github.com/soyeahso/agentforge/internal/chat"
	"github.com/soyeahso/agentforge/internal/deploy"
	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/resource"
	"github.com/soyeahso/agentforge/internal/store"
)

// StandardResponse is the envelope every management endpoint answers with.
type StandardResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, StandardResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, StandardResponse{
		Success:   false,
		Error:     message,
		Timestamp: time.Now().UTC(),
	})
}

// badRequestError reports malformed input that never reached a service.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// errorStatus maps domain errors onto HTTP status codes and the message
// shown to the caller. Unknown errors become a generic 500.
func errorStatus(err error) (int, string) {
	var validation *domain.ValidationError
	var execErr *agent.ExecutionError
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.msg
	case errors.Is(err, domain.ErrAgentNotFound):
		return http.StatusNotFound, "Agent not found"
	case errors.Is(err, chat.ErrSessionNotFound):
		return http.StatusNotFound, "Chat session not found"
	case errors.Is(err, resource.ErrDocumentMissing):
		return http.StatusNotFound, "Document not found"
	case errors.Is(err, deploy.ErrUnauthorized):
		return http.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, deploy.ErrForbidden):
		return http.StatusForbidden, "Token does not match agent ID"
	case errors.Is(err, resource.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.As(err, &validation):
		return http.StatusBadRequest, "Validation failed: " + validation.Error()
	case errors.As(err, &execErr):
		return http.StatusBadGateway, "Error executing agent: " + execErr.Err.Error()
	case errors.Is(err, deploy.ErrNotDeployed):
		return http.StatusBadRequest, "Agent is not deployed"
	case errors.Is(err, chat.ErrIndexOutOfRange):
		return http.StatusBadRequest, "Message index out of range"
	case errors.Is(err, agent.ErrNoUserMessage):
		return http.StatusBadRequest, "No user message found to regenerate from"
	case errors.Is(err, agent.ErrNotUserMessage),
		errors.Is(err, agent.ErrEmptyPrompt),
		errors.Is(err, chat.ErrEmptyTitle),
		errors.Is(err, store.ErrInvalidID):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// fail writes the envelope for err and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	} else {
		s.log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request declined")
	}
	respondError(w, status, msg)
}

const maxJSONBody = 1 << 20

// decodeJSON reads a JSON request body into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
