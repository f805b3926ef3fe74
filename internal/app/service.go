package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"journal/api/internal/auth"
	"journal/api/internal/authpw"
	"journal/api/internal/comments"
	"journal/api/internal/config"
	"journal/api/internal/search"
	"journal/api/internal/session"
	"journal/api/internal/store"
	"journal/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Username     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	authpw.UserStore
	InsertJournal(context.Context, store.Journal) (store.Journal, error)
	ListJournalsByAuthor(context.Context, string) ([]store.Journal, error)
	GetOwnedJournal(ctx context.Context, id, authorID string) (store.Journal, error)
	UpdateOwnedJournal(ctx context.Context, id, authorID, title, content string, at time.Time) (bool, error)
	DeleteOwnedJournal(ctx context.Context, id, authorID string) ([]string, bool, error)
	Reset(context.Context) error
	Ping(ctx context.Context) error
}

type commentSearcher interface {
	Search(context.Context, search.Query) search.Response
	DeleteComments(ids []string)
}

type readinessCheck struct {
	name  string
	check func(context.Context) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  session.Store
	passwords *authpw.Service
	comments  *comments.Service
	search    commentSearcher
	logger    *zap.Logger
	checks    []readinessCheck
	now       func() time.Time
}

// New wires the application service. sessions may be the Postgres store itself
// or a Redis store; searcher may be nil.
func New(cfg config.Config, dataStore dataStore, sessions session.Store, commentService *comments.Service, searcher commentSearcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		passwords: authpw.NewService(dataStore),
		comments:  commentService,
		search:    searcher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddReadinessCheck registers an extra dependency reported by /ready.
func (s *Service) AddReadinessCheck(name string, check func(context.Context) error) {
	s.checks = append(s.checks, readinessCheck{name: name, check: check})
}

func (s *Service) Comments() *comments.Service {
	return s.comments
}

// Readiness pings the database and every registered dependency.
func (s *Service) Readiness(ctx context.Context) (bool, map[string]any) {
	ready := true
	results := make(map[string]any, len(s.checks)+1)

	checks := append([]readinessCheck{{name: "database", check: s.store.Ping}}, s.checks...)
	for _, c := range checks {
		if err := c.check(ctx); err != nil {
			ready = false
			results[c.name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		results[c.name] = map[string]any{"status": "ok"}
	}
	return ready, results
}

type UserView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserView(user store.User) UserView {
	return UserView{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

func (s *Service) Register(ctx context.Context, username, email, password string) (UserView, Session, error) {
	user, err := s.passwords.Register(ctx, authpw.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return UserView{}, Session{}, err
	}
	issued, err := s.issueSession(ctx, user)
	if err != nil {
		return UserView{}, Session{}, err
	}
	return toUserView(user), issued, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (UserView, Session, error) {
	user, err := s.passwords.Login(ctx, email, password)
	if err != nil {
		return UserView{}, Session{}, err
	}
	issued, err := s.issueSession(ctx, user)
	if err != nil {
		return UserView{}, Session{}, err
	}
	return toUserView(user), issued, nil
}

// Refresh rotates a refresh token: the old one is revoked and a new pair issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "refreshToken is required", nil)
	}
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, session.ErrSessionNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti, err := util.NewToken("jti", 21)
	if err != nil {
		return Session{}, fmt.Errorf("generate token id: %w", err)
	}

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.Username,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt,
	})
	if err != nil {
		return Session{}, err
	}

	refresh, err := util.NewToken("rft", 48)
	if err != nil {
		return Session{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: claims.Exp,
	}, nil
}

// Logout revokes whatever credentials were presented. Failures are logged, not returned.
func (s *Service) Logout(ctx context.Context, current Session, refreshToken string) {
	if current.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, current.JTI, current.ExpiresAt); err != nil {
			s.logger.Warn("revoke access token", zap.Error(err))
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			s.logger.Warn("revoke refresh session", zap.Error(err))
		}
	}
}

func (s *Service) ChangePassword(ctx context.Context, current Session, userID, currentPassword, newPassword string) error {
	if userID != current.UserID {
		return domainError(http.StatusForbidden, "FORBIDDEN", "You can only change your own password", nil)
	}
	return s.passwords.ChangePassword(ctx, userID, currentPassword, newPassword)
}

func (s *Service) Profile(ctx context.Context, current Session) (UserView, error) {
	user, err := s.store.GetUserByID(ctx, current.UserID)
	if err != nil {
		return UserView{}, err
	}
	return toUserView(user), nil
}

type JournalView struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Author    comments.Author `json:"author"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toJournalView(journal store.Journal) JournalView {
	return JournalView{
		ID:      journal.ID,
		Title:   journal.Title,
		Content: journal.Content,
		Author: comments.Author{
			ID:       journal.AuthorID,
			Username: journal.AuthorName,
			Email:    journal.AuthorEmail,
		},
		CreatedAt: journal.CreatedAt,
		UpdatedAt: journal.UpdatedAt,
	}
}

var (
	errJournalNotFound  = domainError(http.StatusNotFound, "NOT_FOUND", "Journal not found", nil)
	errInvalidJournalID = domainError(http.StatusBadRequest, "INVALID_ID", "Invalid journal id", nil)
)

func (s *Service) CreateJournal(ctx context.Context, current Session, title, content string) (JournalView, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return JournalView{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "title and content are required", nil)
	}
	created, err := s.store.InsertJournal(ctx, store.Journal{
		ID:        util.NewID(),
		Title:     title,
		Content:   content,
		AuthorID:  current.UserID,
		CreatedAt: s.now(),
	})
	if err != nil {
		return JournalView{}, err
	}
	created.AuthorName = current.Username
	created.AuthorEmail = current.Email
	return toJournalView(created), nil
}

func (s *Service) ListJournals(ctx context.Context, current Session) ([]JournalView, error) {
	journals, err := s.store.ListJournalsByAuthor(ctx, current.UserID)
	if err != nil {
		return nil, err
	}
	views := make([]JournalView, 0, len(journals))
	for _, journal := range journals {
		views = append(views, toJournalView(journal))
	}
	return views, nil
}

func (s *Service) GetJournal(ctx context.Context, current Session, journalID string) (JournalView, error) {
	if !util.ValidID(journalID) {
		return JournalView{}, errInvalidJournalID
	}
	journal, err := s.store.GetOwnedJournal(ctx, journalID, current.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return JournalView{}, errJournalNotFound
		}
		return JournalView{}, err
	}
	return toJournalView(journal), nil
}

// UpdateJournal changes title and/or content; empty fields keep their value.
func (s *Service) UpdateJournal(ctx context.Context, current Session, journalID, title, content string) (JournalView, error) {
	if !util.ValidID(journalID) {
		return JournalView{}, errInvalidJournalID
	}
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" && content == "" {
		return JournalView{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "title or content is required", nil)
	}
	updated, err := s.store.UpdateOwnedJournal(ctx, journalID, current.UserID, title, content, s.now())
	if err != nil {
		return JournalView{}, err
	}
	if !updated {
		return JournalView{}, errJournalNotFound
	}
	return s.GetJournal(ctx, current, journalID)
}

func (s *Service) DeleteJournal(ctx context.Context, current Session, journalID string) error {
	if !util.ValidID(journalID) {
		return errInvalidJournalID
	}
	commentIDs, deleted, err := s.store.DeleteOwnedJournal(ctx, journalID, current.UserID)
	if err != nil {
		return err
	}
	if !deleted {
		return errJournalNotFound
	}
	if len(commentIDs) > 0 && s.search != nil {
		s.search.DeleteComments(commentIDs)
	}
	return nil
}

func (s *Service) SearchComments(ctx context.Context, q search.Query) (search.Response, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return search.Response{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "q is required", nil)
	}
	if q.JournalID != "" && !util.ValidID(q.JournalID) {
		return search.Response{}, errInvalidJournalID
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	return s.search.Search(ctx, q), nil
}
