package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"journal/api/internal/store"
	"journal/api/internal/util"
)

// memComments keeps journals and comments in memory. It backs both the comment
// service and the journal callbacks of the fakeStore it was built from.
type memComments struct {
	mu       sync.Mutex
	users    *fakeStore
	journals map[string]store.Journal
	comments map[string]store.Comment
}

func newMemComments(fs *fakeStore) *memComments {
	m := &memComments{
		users:    fs,
		journals: make(map[string]store.Journal),
		comments: make(map[string]store.Comment),
	}
	if fs.insertJournalFn == nil {
		fs.insertJournalFn = func(_ context.Context, journal store.Journal) (store.Journal, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			journal.UpdatedAt = journal.CreatedAt
			m.journals[journal.ID] = journal
			return journal, nil
		}
	}
	if fs.getOwnedJournalFn == nil {
		fs.getOwnedJournalFn = func(_ context.Context, id, authorID string) (store.Journal, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			journal, ok := m.journals[id]
			if !ok || journal.AuthorID != authorID {
				return store.Journal{}, sql.ErrNoRows
			}
			return journal, nil
		}
	}
	if fs.listJournalsByAuthorFn == nil {
		fs.listJournalsByAuthorFn = func(_ context.Context, authorID string) ([]store.Journal, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			out := []store.Journal{}
			for _, journal := range m.journals {
				if journal.AuthorID == authorID {
					out = append(out, journal)
				}
			}
			sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
			return out, nil
		}
	}
	if fs.updateOwnedJournalFn == nil {
		fs.updateOwnedJournalFn = func(_ context.Context, id, authorID, title, content string, at time.Time) (bool, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			journal, ok := m.journals[id]
			if !ok || journal.AuthorID != authorID {
				return false, nil
			}
			if title != "" {
				journal.Title = title
			}
			if content != "" {
				journal.Content = content
			}
			journal.UpdatedAt = at
			m.journals[id] = journal
			return true, nil
		}
	}
	if fs.deleteOwnedJournalFn == nil {
		fs.deleteOwnedJournalFn = func(_ context.Context, id, authorID string) ([]string, bool, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			journal, ok := m.journals[id]
			if !ok || journal.AuthorID != authorID {
				return nil, false, nil
			}
			delete(m.journals, id)
			commentIDs := []string{}
			for commentID, c := range m.comments {
				if c.JournalID == id {
					delete(m.comments, commentID)
					commentIDs = append(commentIDs, commentID)
				}
			}
			sort.Strings(commentIDs)
			return commentIDs, true, nil
		}
	}
	return m
}

func (m *memComments) JournalExists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.journals[id]
	return ok, nil
}

func (m *memComments) InsertComment(_ context.Context, c store.Comment) (store.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.journals[c.JournalID]; !ok {
		return store.Comment{}, store.ErrForeignKey
	}
	c.UpdatedAt = c.CreatedAt
	m.comments[c.ID] = c
	return c, nil
}

func (m *memComments) record(c store.Comment) store.CommentRecord {
	author, _ := m.users.GetUserByID(context.Background(), c.AuthorID)
	return store.CommentRecord{
		Comment:        c,
		AuthorUsername: author.Username,
		AuthorEmail:    author.Email,
		JournalTitle:   m.journals[c.JournalID].Title,
	}
}

func (m *memComments) GetComment(_ context.Context, id string) (store.CommentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return store.CommentRecord{}, sql.ErrNoRows
	}
	return m.record(c), nil
}

func (m *memComments) matching(filter store.CommentFilter) []store.Comment {
	var out []store.Comment
	for _, c := range m.comments {
		switch {
		case filter.JournalID != "" && c.JournalID != filter.JournalID:
			continue
		case filter.AuthorID != "" && c.AuthorID != filter.AuthorID:
			continue
		case filter.ParentID != "" && (c.ParentCommentID == nil || *c.ParentCommentID != filter.ParentID):
			continue
		case filter.TopLevelOnly && c.ParentCommentID != nil:
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.Order == store.OrderOldestFirst {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return out[i].ID < out[j].ID
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *memComments) FindComments(_ context.Context, filter store.CommentFilter) ([]store.CommentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := m.matching(filter)
	if filter.Skip >= len(matched) {
		matched = nil
	} else {
		matched = matched[filter.Skip:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	records := make([]store.CommentRecord, 0, len(matched))
	for _, c := range matched {
		records = append(records, m.record(c))
	}
	return records, nil
}

func (m *memComments) CountComments(_ context.Context, filter store.CommentFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matching(filter)), nil
}

func (m *memComments) UpdateCommentContent(_ context.Context, id, authorID, content string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok || c.AuthorID != authorID {
		return false, nil
	}
	editedAt := at
	c.Content = content
	c.IsEdited = true
	c.EditedAt = &editedAt
	c.UpdatedAt = at
	m.comments[id] = c
	return true, nil
}

func (m *memComments) DeleteComment(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.comments[id]
	delete(m.comments, id)
	return ok, nil
}

func (m *memComments) DeleteReplies(_ context.Context, parentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.comments {
		if c.ParentCommentID != nil && *c.ParentCommentID == parentID {
			delete(m.comments, id)
			n++
		}
	}
	return n, nil
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	payload := map[string]any{}
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("parse response for %s %s: %v body=%s", method, path, err, rr.Body.String())
		}
	}
	return rr.Code, payload
}

type commentFixture struct {
	handler   http.Handler
	svc       *Service
	mc        *memComments
	alice     store.User
	bob       store.User
	aliceTok  string
	bobTok    string
	journalID string
}

func newCommentFixture(t *testing.T) commentFixture {
	t.Helper()
	fs := newFakeStore()
	alice := fs.addUser(t, "alice", "password123")
	bob := fs.addUser(t, "bob", "password123")
	svc, _, mc := newTestService(fs)

	journal, err := svc.CreateJournal(context.Background(), Session{UserID: alice.ID, Username: alice.Username}, "Day one", "It rained.")
	if err != nil {
		t.Fatalf("create journal: %v", err)
	}
	return commentFixture{
		handler:   NewHTTPServer(svc, "*", nil).Handler(),
		svc:       svc,
		mc:        mc,
		alice:     alice,
		bob:       bob,
		aliceTok:  mustSession(t, svc, alice).Token,
		bobTok:    mustSession(t, svc, bob).Token,
		journalID: journal.ID,
	}
}

func TestCommentThreadScenario(t *testing.T) {
	f := newCommentFixture(t)
	commentsPath := "/journals/" + f.journalID + "/comments"

	status, created := doJSON(t, f.handler, http.MethodPost, commentsPath, f.aliceTok, `{"content":"  First!  "}`)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", status, created)
	}
	if created["message"] != "Comment created successfully" {
		t.Fatalf("unexpected message %v", created["message"])
	}
	top := created["comment"].(map[string]any)
	topID := top["id"].(string)
	if top["content"] != "First!" {
		t.Fatalf("expected trimmed content, got %q", top["content"])
	}
	if top["parentCommentId"] != nil || top["isEdited"] != false {
		t.Fatalf("unexpected new comment shape %v", top)
	}
	if author := top["author"].(map[string]any); author["username"] != "alice" {
		t.Fatalf("expected alice as author, got %v", author)
	}

	status, reply := doJSON(t, f.handler, http.MethodPost, commentsPath, f.bobTok, `{"content":"Welcome","parentCommentId":"`+topID+`"}`)
	if status != http.StatusCreated {
		t.Fatalf("reply: expected 201, got %d %v", status, reply)
	}
	replyID := reply["comment"].(map[string]any)["id"].(string)

	status, nested := doJSON(t, f.handler, http.MethodPost, commentsPath, f.aliceTok, `{"content":"deeper","parentCommentId":"`+replyID+`"}`)
	if status != http.StatusBadRequest || nested["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected nested reply rejected, got %d %v", status, nested)
	}

	status, list := doJSON(t, f.handler, http.MethodGet, commentsPath, "", "")
	if status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}
	threads := list["comments"].([]any)
	if len(threads) != 1 {
		t.Fatalf("expected one thread, got %d", len(threads))
	}
	replies := threads[0].(map[string]any)["replies"].([]any)
	if len(replies) != 1 || replies[0].(map[string]any)["id"] != replyID {
		t.Fatalf("unexpected replies %v", replies)
	}
	pagination := list["pagination"].(map[string]any)
	if pagination["totalComments"] != float64(1) || pagination["currentPage"] != float64(1) {
		t.Fatalf("unexpected pagination %v", pagination)
	}

	status, denied := doJSON(t, f.handler, http.MethodPut, "/comments/"+topID, f.bobTok, `{"content":"hijack"}`)
	if status != http.StatusNotFound || denied["message"] != "Comment not found or you are not the author" {
		t.Fatalf("expected masked 404, got %d %v", status, denied)
	}

	status, edited := doJSON(t, f.handler, http.MethodPut, "/comments/"+topID, f.aliceTok, `{"content":"First, edited"}`)
	if status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d %v", status, edited)
	}
	if c := edited["comment"].(map[string]any); c["isEdited"] != true || c["editedAt"] == nil {
		t.Fatalf("expected edit markers, got %v", c)
	}

	status, removed := doJSON(t, f.handler, http.MethodDelete, "/comments/"+topID, f.aliceTok, "")
	if status != http.StatusOK || removed["deletedReplies"] != float64(1) {
		t.Fatalf("delete: got %d %v", status, removed)
	}

	for _, id := range []string{topID, replyID} {
		status, missing := doJSON(t, f.handler, http.MethodGet, "/comments/"+id, "", "")
		if status != http.StatusNotFound || missing["code"] != "NOT_FOUND" {
			t.Fatalf("expected %s gone, got %d %v", id, status, missing)
		}
	}
}

func TestGetCommentReturnsThread(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()
	top, err := f.svc.Comments().Create(ctx, f.alice.ID, f.journalID, "hello", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Comments().Create(ctx, f.bob.ID, f.journalID, "hi back", top.ID); err != nil {
		t.Fatalf("reply: %v", err)
	}

	status, payload := doJSON(t, f.handler, http.MethodGet, "/comments/"+top.ID, "", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", status, payload)
	}
	comment := payload["comment"].(map[string]any)
	if len(comment["replies"].([]any)) != 1 {
		t.Fatalf("expected one reply, got %v", comment["replies"])
	}
	if journal := comment["journal"].(map[string]any); journal["title"] != "Day one" {
		t.Fatalf("unexpected journal ref %v", journal)
	}
}

func TestCommentRoutesRequireAuth(t *testing.T) {
	f := newCommentFixture(t)
	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/journals/" + f.journalID + "/comments"},
		{http.MethodPut, "/comments/" + f.journalID},
		{http.MethodDelete, "/comments/" + f.journalID},
		{http.MethodGet, "/user/comments"},
	}
	for _, tc := range cases {
		status, payload := doJSON(t, f.handler, tc.method, tc.path, "", `{"content":"x"}`)
		if status != http.StatusUnauthorized || payload["code"] != "UNAUTHORIZED" {
			t.Errorf("%s %s: expected 401, got %d %v", tc.method, tc.path, status, payload)
		}
	}

	status, _ := doJSON(t, f.handler, http.MethodPost, "/journals/"+f.journalID+"/comments", "not-a-jwt", `{"content":"x"}`)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", status)
	}
}

func TestCommentErrors(t *testing.T) {
	f := newCommentFixture(t)
	missingJournal := "/journals/" + util.NewID() + "/comments"

	cases := []struct {
		name    string
		method  string
		path    string
		body    string
		status  int
		code    string
		message string
	}{
		{"blank content", http.MethodPost, "/journals/" + f.journalID + "/comments", `{"content":"   "}`, http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"bad journal id", http.MethodPost, "/journals/nope/comments", `{"content":"x"}`, http.StatusBadRequest, "INVALID_ID", "Invalid journal id"},
		{"missing journal", http.MethodPost, missingJournal, `{"content":"x"}`, http.StatusNotFound, "NOT_FOUND", "Journal not found"},
		{"missing parent", http.MethodPost, "/journals/" + f.journalID + "/comments", `{"content":"x","parentCommentId":"` + util.NewID() + `"}`, http.StatusNotFound, "NOT_FOUND", "Parent comment not found"},
		{"bad json", http.MethodPost, "/journals/" + f.journalID + "/comments", `{"content":`, http.StatusBadRequest, "INVALID_BODY", ""},
		{"bad comment id", http.MethodGet, "/comments/nope", "", http.StatusBadRequest, "INVALID_ID", ""},
		{"list missing journal", http.MethodGet, missingJournal, "", http.StatusNotFound, "NOT_FOUND", "Journal not found"},
		{"patch not allowed", http.MethodPatch, "/comments/" + f.journalID, "", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := doJSON(t, f.handler, tc.method, tc.path, f.aliceTok, tc.body)
			if status != tc.status || payload["code"] != tc.code {
				t.Fatalf("expected %d %s, got %d %v", tc.status, tc.code, status, payload)
			}
			if tc.message != "" && payload["message"] != tc.message {
				t.Fatalf("expected message %q, got %v", tc.message, payload["message"])
			}
		})
	}
}

func TestListJournalCommentsPaging(t *testing.T) {
	f := newCommentFixture(t)
	for i := 0; i < 7; i++ {
		if _, err := f.svc.Comments().Create(context.Background(), f.bob.ID, f.journalID, "note", ""); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	status, payload := doJSON(t, f.handler, http.MethodGet, "/journals/"+f.journalID+"/comments?page=2&limit=3", "", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if got := len(payload["comments"].([]any)); got != 3 {
		t.Fatalf("expected 3 comments on page 2, got %d", got)
	}
	pagination := payload["pagination"].(map[string]any)
	if pagination["totalPages"] != float64(3) || pagination["hasNext"] != true || pagination["hasPrev"] != true {
		t.Fatalf("unexpected pagination %v", pagination)
	}

	status, payload = doJSON(t, f.handler, http.MethodGet, "/journals/"+f.journalID+"/comments?page=abc&limit=-4", "", "")
	if status != http.StatusOK {
		t.Fatalf("expected permissive paging, got %d %v", status, payload)
	}
	if payload["pagination"].(map[string]any)["currentPage"] != float64(1) {
		t.Fatalf("expected page 1 fallback, got %v", payload["pagination"])
	}
}

func TestUserCommentsListsOwnOnly(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Comments().Create(ctx, f.alice.ID, f.journalID, "mine", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Comments().Create(ctx, f.bob.ID, f.journalID, "theirs", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	status, payload := doJSON(t, f.handler, http.MethodGet, "/user/comments", f.aliceTok, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", status, payload)
	}
	list := payload["comments"].([]any)
	if len(list) != 1 || list[0].(map[string]any)["content"] != "mine" {
		t.Fatalf("expected only alice's comment, got %v", list)
	}
}

func TestSearchCommentsEndpoint(t *testing.T) {
	fs := newFakeStore()
	svc, _, _ := newTestService(fs)
	searcher := svc.search.(*fakeSearcher)
	handler := NewHTTPServer(svc, "*", nil).Handler()

	status, payload := doJSON(t, handler, http.MethodGet, "/comments/search?q=%20", "", "")
	if status != http.StatusBadRequest || payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected 400 for blank q, got %d %v", status, payload)
	}

	status, payload = doJSON(t, handler, http.MethodGet, "/comments/search?q=rain&journalId=bad", "", "")
	if status != http.StatusBadRequest || payload["code"] != "INVALID_ID" {
		t.Fatalf("expected 400 for bad journal id, got %d %v", status, payload)
	}

	status, payload = doJSON(t, handler, http.MethodGet, "/comments/search?q=rain&limit=500&offset=-1", "", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", status, payload)
	}
	if payload["total"] != float64(1) || payload["query"] != "rain" {
		t.Fatalf("unexpected search payload %v", payload)
	}
	if searcher.lastQuery.Limit != 100 || searcher.lastQuery.Offset != 0 {
		t.Fatalf("expected clamped query, got %+v", searcher.lastQuery)
	}

	status, _ = doJSON(t, handler, http.MethodPost, "/comments/search?q=rain", "", "")
	if status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", status)
	}
}
