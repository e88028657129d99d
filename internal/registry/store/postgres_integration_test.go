//go:build integration

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"foodlink/internal/registry"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/sentinel"
	"foodlink/pkg/requestcontext"
	"foodlink/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	store *Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	pg := containers.NewPostgresContainer(t, "../../../migrations/schema.sql")
	s := &PostgresStoreSuite{db: pg.DB, store: NewPostgres(pg.DB)}
	suite.Run(t, s)
}

func (s *PostgresStoreSuite) insertAccount() id.AccountID {
	accountID := id.NewAccountID()
	_, err := s.db.Exec(`
		INSERT INTO accounts (id, email, full_name, role)
		VALUES ($1, $2, 'Test Account', 'participant')
	`, uuid.UUID(accountID), fmt.Sprintf("%s@example.org", accountID.String()))
	s.Require().NoError(err)
	return accountID
}

func (s *PostgresStoreSuite) createParticipant() *registry.Participant {
	p := &registry.Participant{
		ID:        id.NewParticipantID(),
		AccountID: s.insertAccount(),
		Status:    registry.StatusPending,
	}
	s.Require().NoError(s.store.Create(context.Background(), p))
	return p
}

func (s *PostgresStoreSuite) approve(p *registry.Participant, number string) error {
	return s.store.Approve(context.Background(), &registry.VerificationDecision{
		ID:            uuid.New(),
		ParticipantID: p.ID,
		DecidedBy:     s.insertAccount(),
		Approved:      true,
		Number:        number,
		DecidedAt:     requestcontext.Now(context.Background()),
	})
}

func (s *PostgresStoreSuite) TestUniqueIndexRejectsDuplicateNumbers() {
	p1 := s.createParticipant()
	p2 := s.createParticipant()

	s.Require().NoError(s.approve(p1, "IT0001"))
	err := s.approve(p2, "IT0001")
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	got, err := s.store.FindByID(context.Background(), p2.ID)
	s.Require().NoError(err)
	s.Equal(registry.StatusPending, got.Status, "failed approval must not move status")
}

func (s *PostgresStoreSuite) TestHighestSequenceIgnoresOtherPrefixes() {
	ctx := context.Background()
	s.Require().NoError(s.approve(s.createParticipant(), "HS0003"))
	s.Require().NoError(s.approve(s.createParticipant(), "HS0011"))
	s.Require().NoError(s.approve(s.createParticipant(), "HX0099"))

	highest, err := s.store.HighestSequence(ctx, "HS")
	s.Require().NoError(err)
	s.Equal(11, highest)

	highest, err = s.store.HighestSequence(ctx, "ZZ")
	s.Require().NoError(err)
	s.Zero(highest)
}

func (s *PostgresStoreSuite) TestConcurrentApprovalsOneWinnerPerNumber() {
	const n = 8
	participants := make([]*registry.Participant, n)
	for i := range participants {
		participants[i] = s.createParticipant()
	}

	// Everyone races for the same number; exactly one claim lands.
	var mu sync.Mutex
	winners := 0
	var wg sync.WaitGroup
	for _, p := range participants {
		wg.Add(1)
		go func(p *registry.Participant) {
			defer wg.Done()
			err := s.approve(p, "CC0001")
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			assert.ErrorIs(s.T(), err, sentinel.ErrConflict)
		}(p)
	}
	wg.Wait()
	s.Equal(1, winners)
}

func (s *PostgresStoreSuite) TestApproveDoesNotOverwriteNumber() {
	ctx := context.Background()
	p := s.createParticipant()
	s.Require().NoError(s.approve(p, "OV0001"))

	err := s.approve(p, "OV0002")
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	got, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("OV0001", got.Number, "a minted number is never reassigned")
}

func (s *PostgresStoreSuite) TestRejectKeepsNumberAndAppendsNote() {
	ctx := context.Background()
	p := s.createParticipant()
	s.Require().NoError(s.approve(p, "RJ0001"))

	err := s.store.Reject(ctx, &registry.VerificationDecision{
		ID:            uuid.New(),
		ParticipantID: p.ID,
		DecidedBy:     s.insertAccount(),
		Approved:      false,
		Reason:        "documents expired",
		DecidedAt:     requestcontext.Now(ctx),
	})
	s.Require().NoError(err)

	got, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(registry.StatusRejected, got.Status)
	s.Equal("RJ0001", got.Number)
	s.Contains(got.Notes, "documents expired")
}

func (s *PostgresStoreSuite) TestRejectWithoutReasonLeavesNotes() {
	ctx := context.Background()
	p := s.createParticipant()
	s.Require().NoError(s.store.AppendNote(ctx, p.ID, "intake complete"))

	err := s.store.Reject(ctx, &registry.VerificationDecision{
		ID:            uuid.New(),
		ParticipantID: p.ID,
		DecidedBy:     s.insertAccount(),
		DecidedAt:     requestcontext.Now(ctx),
	})
	s.Require().NoError(err)

	got, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(registry.StatusRejected, got.Status)
	s.Equal("intake complete", got.Notes)
}

func (s *PostgresStoreSuite) TestIncrementNoShowSerializes() {
	ctx := context.Background()
	p := s.createParticipant()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.IncrementNoShow(ctx, p.ID)
			assert.NoError(s.T(), err)
		}()
	}
	wg.Wait()

	got, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(n, got.NoShowCount)
}

func (s *PostgresStoreSuite) TestIncrementNoShowUnknownParticipant() {
	_, err := s.store.IncrementNoShow(context.Background(), id.NewParticipantID())
	require.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}
