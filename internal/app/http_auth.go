package app

import (
	"net/http"
)

func (s *HTTPServer) handleAuth(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 1 && parts[0] == "register":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleRegister(w, r)
	case len(parts) == 1 && parts[0] == "login":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleLogin(w, r)
	case len(parts) == 1 && parts[0] == "refresh":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleRefresh(w, r)
	case len(parts) == 1 && parts[0] == "logout":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleLogout(w, r)
	case len(parts) == 2 && parts[0] == "change-password":
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return
		}
		s.handleChangePassword(w, r, parts[1])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func tokenPayload(session Session) map[string]any {
	return map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"expiresAt":    session.ExpiresAt.Unix(),
	}
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	user, session, err := s.service.Register(r.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	response := tokenPayload(session)
	response["message"] = "User registered successfully"
	response["user"] = user
	writeJSON(w, http.StatusCreated, response)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	user, session, err := s.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	response := tokenPayload(session)
	response["message"] = "Login successful"
	response["user"] = user
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPayload(session))
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	current := Session{}
	if token := bearerToken(r); token != "" {
		if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
			current = parsed
		}
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeBody(r, &body)
	s.service.Logout(r.Context(), current, body.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleChangePassword(w http.ResponseWriter, r *http.Request, userID string) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.ChangePassword(r.Context(), session, userID, body.CurrentPassword, body.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password changed successfully"})
}
