package app

import (
	"net/http"
	"strconv"

	"journal/api/internal/search"
)

func (s *HTTPServer) handleComments(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if parts[0] == "search" {
		if !isRead(r) {
			methodNotAllowed(w)
			return
		}
		s.handleSearchComments(w, r)
		return
	}

	commentID := parts[0]
	switch r.Method {
	case http.MethodGet:
		s.handleGetComment(w, r, commentID)
	case http.MethodPut:
		s.handleUpdateComment(w, r, commentID)
	case http.MethodDelete:
		s.handleDeleteComment(w, r, commentID)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleCreateComment(w http.ResponseWriter, r *http.Request, journalID string) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var body struct {
		Content         string `json:"content"`
		ParentCommentID string `json:"parentCommentId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	comment, err := s.service.Comments().Create(r.Context(), session.UserID, journalID, body.Content, body.ParentCommentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Comment created successfully",
		"comment": comment,
	})
}

func (s *HTTPServer) handleListJournalComments(w http.ResponseWriter, r *http.Request, journalID string) {
	query := r.URL.Query()
	page, err := s.service.Comments().ListJournalComments(r.Context(), journalID, query.Get("page"), query.Get("limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *HTTPServer) handleGetComment(w http.ResponseWriter, r *http.Request, commentID string) {
	comment, err := s.service.Comments().GetCommentByID(r.Context(), commentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comment": comment})
}

func (s *HTTPServer) handleUpdateComment(w http.ResponseWriter, r *http.Request, commentID string) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	comment, err := s.service.Comments().Update(r.Context(), session.UserID, commentID, body.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Comment updated successfully",
		"comment": comment,
	})
}

func (s *HTTPServer) handleDeleteComment(w http.ResponseWriter, r *http.Request, commentID string) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	result, err := s.service.Comments().Delete(r.Context(), session.UserID, commentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Comment and its replies deleted successfully",
		"deletedReplies": result.DeletedReplies,
	})
}

func (s *HTTPServer) handleSearchComments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	resp, err := s.service.SearchComments(r.Context(), search.Query{
		Text:      query.Get("q"),
		JournalID: query.Get("journalId"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
