package app

import (
	"net/http"
)

// handleJournals serves /journals, /journals/:id and /journals/:id/comments.
func (s *HTTPServer) handleJournals(w http.ResponseWriter, r *http.Request, parts []string) {
	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodPost:
			s.handleCreateJournal(w, r)
		case http.MethodGet:
			s.handleListJournals(w, r)
		default:
			methodNotAllowed(w)
		}
	case 1:
		journalID := parts[0]
		switch r.Method {
		case http.MethodGet:
			s.handleGetJournal(w, r, journalID)
		case http.MethodPut:
			s.handleUpdateJournal(w, r, journalID)
		case http.MethodDelete:
			s.handleDeleteJournal(w, r, journalID)
		default:
			methodNotAllowed(w)
		}
	case 2:
		if parts[1] != "comments" {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		switch r.Method {
		case http.MethodPost:
			s.handleCreateComment(w, r, parts[0])
		case http.MethodGet:
			s.handleListJournalComments(w, r, parts[0])
		default:
			methodNotAllowed(w)
		}
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

type journalBody struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *HTTPServer) handleCreateJournal(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var body journalBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	journal, err := s.service.CreateJournal(r.Context(), session, body.Title, body.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Journal created successfully",
		"journal": journal,
	})
}

func (s *HTTPServer) handleListJournals(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	journals, err := s.service.ListJournals(r.Context(), session)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"journals": journals})
}

func (s *HTTPServer) handleGetJournal(w http.ResponseWriter, r *http.Request, journalID string) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	journal, err := s.service.GetJournal(r.Context(), session, journalID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"journal": journal})
}

func (s *HTTPServer) handleUpdateJournal(w http.ResponseWriter, r *http.Request, journalID string) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var body journalBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	journal, err := s.service.UpdateJournal(r.Context(), session, journalID, body.Title, body.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Journal updated successfully",
		"journal": journal,
	})
}

func (s *HTTPServer) handleDeleteJournal(w http.ResponseWriter, r *http.Request, journalID string) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteJournal(r.Context(), session, journalID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Journal deleted successfully"})
}
