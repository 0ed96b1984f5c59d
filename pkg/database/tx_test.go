package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jordanlanch/crmleads/pkg/domain"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Store{db: sqlx.NewDb(db, "postgres"), dialect: dialect.Postgres}, mock
}

func TestWithTx_PostgresPlaceholders(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE leads\s+SET assigned_to = \$1, status = \$2, version = version \+ 1, updated_at = \$3\s+WHERE id = \$4 AND version = \$5`).
		WithArgs("u1", "assigned", at, "l1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users`).
		WithArgs(at, at, "u1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx domain.AssignmentTx) error {
		if err := tx.SetLeadOwner(context.Background(), "l1", "u1", models.LeadStatusAssigned, 3, at); err != nil {
			return err
		}
		return tx.ClaimUser(context.Background(), "u1", 7, at)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_LostRaceRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx domain.AssignmentTx) error {
		return tx.ClaimUser(context.Background(), "u1", 7, time.Now())
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_DuplicateActiveRecord(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO lead_assignments`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx domain.AssignmentTx) error {
		return tx.InsertAssignment(context.Background(), &models.LeadAssignment{
			ID: "a1", LeadID: "l1", AssignedTo: "u1", Status: models.AssignmentActive,
			AssignmentType: models.AssignmentManual, AssignedAt: time.Now(),
		})
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackFailureKeepsCause(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection reset"))

	err := s.WithTx(context.Background(), func(domain.AssignmentTx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "rollback failed")
}

func TestWithTx_BeginFails(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := s.WithTx(context.Background(), func(domain.AssignmentTx) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestCreateUser_UniqueViolationIsConflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO users`).WillReturnError(&pq.Error{Code: "23505"})

	err := s.CreateUser(context.Background(), &models.User{ID: "u1", Email: "a@b.c"})
	assert.True(t, domain.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCandidateUsers_Query(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .+ FROM "users" WHERE .*"status" = \$1.+"role" IN \(\$2, \$3\).* ORDER BY "id"`).
		WithArgs("active", "manager", "sales").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "status"}).
			AddRow("u1", "u1@crm.test", "sales", "active"))

	users, err := s.ListCandidateUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
