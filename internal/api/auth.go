package api

import (
	"encoding/json"
	"net/http"

	"github.com/fernhill-labs/hearth-core/internal/auth"
)

// loginRequest is the POST /auth/login body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse carries the issued token.
type loginResponse struct {
	Token string `json:"token"`
}

// handleLogin verifies the admin credential and issues a token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	admin := s.secCfg.Admin
	if req.Username != admin.Username {
		writeUnauthorized(w, "invalid credentials")
		return
	}
	if err := auth.VerifyPassword(req.Password, admin.PasswordHash); err != nil {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	token, err := s.tokens.Generate(req.Username)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeInternalError(w, "could not issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}
