package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jordanlanch/crmleads/pkg/domain"
	"github.com/jordanlanch/crmleads/pkg/models"
)

// WithTx runs fn in a database transaction. The transaction is rolled back
// when fn fails and committed otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.AssignmentTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) InsertAssignment(ctx context.Context, a *models.LeadAssignment) error {
	row := *a
	row.AssignedAt = row.AssignedAt.UTC()
	row.UpdatedAt = stamp(row.UpdatedAt)
	row.TransferredAt = stampPtr(row.TransferredAt)
	row.ClosedAt = stampPtr(row.ClosedAt)

	q := `INSERT INTO lead_assignments (` + columnList(assignmentColumns) + `) VALUES (` + namedValues(assignmentColumns) + `)`
	if _, err := t.tx.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			// Another transaction opened an active record for this lead first.
			return fmt.Errorf("lead %s: %w", a.LeadID, domain.ErrConcurrentUpdate)
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

func (t *sqlTx) CloseAssignment(ctx context.Context, id string, status models.AssignmentStatus, change domain.AssignmentClose) error {
	at := change.At.UTC()
	var transferredAt *time.Time
	if change.TransferredTo != "" {
		transferredAt = &at
	}

	q := t.tx.Rebind(`UPDATE lead_assignments
		SET status = ?, transferred_to = ?, transferred_by = ?, transferred_at = ?,
			rejection_reason = ?, closed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`)
	res, err := t.tx.ExecContext(ctx, q,
		string(status), change.TransferredTo, change.TransferredBy, transferredAt,
		change.RejectionReason, at, at,
		id, string(models.AssignmentActive))
	if err != nil {
		return fmt.Errorf("failed to close assignment: %w", err)
	}
	return expectRow(res, domain.ErrConcurrentUpdate)
}

func (t *sqlTx) ClaimUser(ctx context.Context, userID string, expectedSeq int64, at time.Time) error {
	at = at.UTC()
	q := t.tx.Rebind(`UPDATE users
		SET assignment_seq = assignment_seq + 1, last_assigned_at = ?, updated_at = ?
		WHERE id = ? AND assignment_seq = ?`)
	res, err := t.tx.ExecContext(ctx, q, at, at, userID, expectedSeq)
	if err != nil {
		return fmt.Errorf("failed to claim user: %w", err)
	}
	return expectRow(res, domain.ErrConcurrentUpdate)
}

func (t *sqlTx) SetLeadOwner(ctx context.Context, leadID, userID string, status models.LeadStatus, expectedVersion int64, at time.Time) error {
	q := t.tx.Rebind(`UPDATE leads
		SET assigned_to = ?, status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`)
	res, err := t.tx.ExecContext(ctx, q, userID, string(status), at.UTC(), leadID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update lead owner: %w", err)
	}
	return expectRow(res, domain.ErrConcurrentUpdate)
}
