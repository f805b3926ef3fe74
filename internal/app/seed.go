package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"journal/api/internal/authpw"
)

type seedUser struct {
	username string
	email    string
	password string
	role     string
}

var seedUsers = []seedUser{
	{username: "user", email: "user@gmail.com", password: "user1234", role: "user"},
	{username: "admin", email: "admin@gmail.com", password: "admin1234", role: "admin"},
}

const seedJournalCount = 20

type SeedReport struct {
	Users    int
	Journals int
	Comments int
	Skipped  bool
}

// Seed loads demo users, journals and one comment thread. Without reset it
// does nothing when the demo users already exist.
func (s *Service) Seed(ctx context.Context, reset bool) (SeedReport, error) {
	if reset {
		if err := s.store.Reset(ctx); err != nil {
			return SeedReport{}, err
		}
	} else {
		_, err := s.store.GetUserByEmail(ctx, seedUsers[0].email)
		if err == nil {
			s.logger.Info("seed data already present")
			return SeedReport{Skipped: true}, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return SeedReport{}, err
		}
	}

	var report SeedReport
	sessions := make([]Session, 0, len(seedUsers))
	for _, u := range seedUsers {
		user, err := s.passwords.Register(ctx, authpw.RegisterRequest{
			Username: u.username,
			Email:    u.email,
			Password: u.password,
			Role:     u.role,
		})
		if err != nil {
			return report, fmt.Errorf("seed user %s: %w", u.email, err)
		}
		sessions = append(sessions, Session{UserID: user.ID, Username: user.Username, Email: user.Email, Role: user.Role})
		report.Users++
	}

	journals := make([]JournalView, 0, seedJournalCount)
	for i := 1; i <= seedJournalCount; i++ {
		owner := sessions[(i-1)%len(sessions)]
		journal, err := s.CreateJournal(ctx, owner,
			fmt.Sprintf("Journal Entry %d", i),
			fmt.Sprintf("This is the content of journal entry number %d.", i),
		)
		if err != nil {
			return report, fmt.Errorf("seed journal %d: %w", i, err)
		}
		journals = append(journals, journal)
		report.Journals++
	}

	if s.comments != nil {
		owner, other := sessions[0], sessions[1]
		target := journals[0].ID
		top, err := s.comments.Create(ctx, owner.UserID, target, "Nice entry!", "")
		if err != nil {
			return report, fmt.Errorf("seed comment: %w", err)
		}
		if _, err := s.comments.Create(ctx, other.UserID, target, "Agreed", top.ID); err != nil {
			return report, fmt.Errorf("seed reply: %w", err)
		}
		report.Comments = 2
	}

	s.logger.Info("seeded demo data",
		zap.Int("users", report.Users),
		zap.Int("journals", report.Journals),
		zap.Int("comments", report.Comments),
	)
	return report, nil
}
