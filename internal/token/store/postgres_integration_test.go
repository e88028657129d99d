//go:build integration

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"foodlink/internal/token"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/sentinel"
	"foodlink/pkg/testutil/containers"
)

type PostgresTokenSuite struct {
	suite.Suite
	db    *sql.DB
	store *Postgres
}

func TestPostgresTokenSuite(t *testing.T) {
	pg := containers.NewPostgresContainer(t, "../../../migrations/schema.sql")
	s := &PostgresTokenSuite{db: pg.DB, store: NewPostgres(pg.DB)}
	suite.Run(t, s)
}

func (s *PostgresTokenSuite) insertParticipant() id.ParticipantID {
	accountID := uuid.New()
	_, err := s.db.Exec(`
		INSERT INTO accounts (id, email, full_name, role)
		VALUES ($1, $2, 'Test Account', 'participant')
	`, accountID, fmt.Sprintf("%s@example.org", accountID))
	s.Require().NoError(err)

	participantID := id.NewParticipantID()
	_, err = s.db.Exec(`
		INSERT INTO participants (id, account_id, verification_status)
		VALUES ($1, $2, 'verified')
	`, participantID.String(), accountID)
	s.Require().NoError(err)
	return participantID
}

func (s *PostgresTokenSuite) createToken(ttl time.Duration) *token.IdentityToken {
	now := time.Now().UTC().Truncate(time.Microsecond)
	t := &token.IdentityToken{
		SessionID:     id.NewSessionID(),
		ParticipantID: s.insertParticipant(),
		Status:        token.StatusPending,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}
	s.Require().NoError(s.store.Create(context.Background(), t))
	return t
}

func (s *PostgresTokenSuite) TestConsumeSingleWinnerUnderConcurrency() {
	ctx := context.Background()
	t := s.createToken(time.Minute)

	const n = 8
	var wins, losses atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Consume(ctx, t.SessionID, time.Now())
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(s.T(), err, sentinel.ErrAlreadyUsed):
				losses.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(n-1), losses.Load())
}

func (s *PostgresTokenSuite) TestConsumeLazilyExpires() {
	ctx := context.Background()
	t := s.createToken(-time.Minute) // already past its window

	_, err := s.store.Consume(ctx, t.SessionID, time.Now())
	s.Require().ErrorIs(err, sentinel.ErrExpired)

	// The transition is durable: the row is now terminal.
	got, err := s.store.FindBySession(ctx, t.SessionID)
	s.Require().NoError(err)
	s.Equal(token.StatusExpired, got.Status)

	_, err = s.store.Consume(ctx, t.SessionID, time.Now())
	s.Require().ErrorIs(err, sentinel.ErrExpired)
}

func (s *PostgresTokenSuite) TestCancelOnlyPending() {
	ctx := context.Background()
	t := s.createToken(time.Minute)

	s.Require().NoError(s.store.Cancel(ctx, t.SessionID))
	s.Require().ErrorIs(s.store.Cancel(ctx, t.SessionID), sentinel.ErrInvalidState)

	_, err := s.store.Consume(ctx, t.SessionID, time.Now())
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *PostgresTokenSuite) TestConsumeUnknownSession() {
	_, err := s.store.Consume(context.Background(), id.NewSessionID(), time.Now())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
