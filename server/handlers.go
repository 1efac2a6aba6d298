package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/logging"
)

const maxSessionIDLen = 128

type generateRequest struct {
	Prompt    string `json:"prompt"`
	MaxLength int64  `json:"max_length,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
	SessionID     string `json:"session_id,omitempty"`
	Warning       string `json:"warning,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Welcome to the chatbot API!"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: decode request body: %v", core.ErrInvalidInput, err))
		return
	}

	owner, sessionID, err := s.resolveOwner(r, req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := s.engine.Generate(r.Context(), owner, req.Prompt, req.MaxLength)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := generateResponse{
		GeneratedText: out.Text,
		SessionID:     sessionID,
	}
	if out.WriteFailed {
		resp.Warning = "response generated but conversation memory was not updated"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearCollection(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	// A clear targets existing history. Minting a fresh session id here
	// would report success for an owner that never existed.
	if s.verifier == nil && strings.TrimSpace(sessionID) == "" {
		writeError(w, fmt.Errorf("%w: session_id is required", core.ErrInvalidInput))
		return
	}

	owner, _, err := s.resolveOwner(r, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.engine.Clear(r.Context(), owner); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "memory cleared"})
}

type storeUserRequest struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

func (s *Server) handleStoreUser(w http.ResponseWriter, r *http.Request) {
	var req storeUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: decode request body: %v", core.ErrInvalidInput, err))
		return
	}
	if strings.TrimSpace(req.UID) == "" {
		writeError(w, fmt.Errorf("%w: uid is required", core.ErrInvalidInput))
		return
	}

	if err := s.users.Save(r.Context(), req.UID, req.Email); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "user stored"})
}

// resolveOwner picks the owner for the request. Authenticated mode
// resolves the bearer token and never trusts a client session id;
// session mode uses the supplied session id or generates one.
func (s *Server) resolveOwner(r *http.Request, sessionID string) (owner, echoSession string, err error) {
	if s.verifier != nil {
		token := bearerToken(r)
		owner, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			return "", "", err
		}
		return owner, "", nil
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	if len(sessionID) > maxSessionIDLen || strings.ContainsAny(sessionID, " \t\r\n") {
		return "", "", fmt.Errorf("%w: malformed session id", core.ErrInvalidInput)
	}
	return sessionID, sessionID, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Default().Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := core.Kind(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		logging.Default().Error("request failed", "kind", kind, "error", err)
	} else {
		logging.Default().Warn("request rejected", "kind", kind, "error", err)
	}

	writeJSON(w, status, errorResponse{Error: errorBody{
		Kind:    kind,
		Message: err.Error(),
	}})
}

func statusFor(kind string) int {
	switch kind {
	case "Unauthorized":
		return http.StatusUnauthorized
	case "InvalidInput":
		return http.StatusBadRequest
	case "StoreUnavailable":
		return http.StatusServiceUnavailable
	case "CompletionGatewayFailure":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
