package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"interpreter-engine/internal/models"
)

// LogRepository appends the two audit trails: AssignmentLog (one row
// per Runner decision) and PoolEntryHistory (one row per pool transition).
// Both writes happen inside the caller's transaction via TxRunner so they
// commit atomically with the booking update.
type LogRepository struct {
	db *sqlx.DB
}

func NewLogRepository(db *sqlx.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) InsertAssignmentLog(tx *sqlx.Tx, log *models.AssignmentLog) error {
	query := `
		INSERT INTO assignment_log (
			id, booking_id, interpreter_emp_code, status, reason,
			pre_hours, post_hours, score_breakdown, conflict_summary, dr_policy,
			duration_millis, system_state, created_at
		) VALUES (
			:id, :booking_id, :interpreter_emp_code, :status, :reason,
			:pre_hours, :post_hours, :score_breakdown, :conflict_summary, :dr_policy,
			:duration_millis, :system_state, :created_at
		)`
	if _, err := tx.NamedExec(query, log); err != nil {
		return fmt.Errorf("failed to insert assignment log for booking %s: %w", log.BookingID, err)
	}
	return nil
}

func (r *LogRepository) InsertPoolHistory(tx *sqlx.Tx, entry *models.PoolEntryHistory) error {
	query := `
		INSERT INTO pool_entry_history (
			id, booking_id, action, previous_state, new_state, attempts, error_message, system_state, created_at
		) VALUES (
			:id, :booking_id, :action, :previous_state, :new_state, :attempts, :error_message, :system_state, :created_at
		)`
	if _, err := tx.NamedExec(query, entry); err != nil {
		return fmt.Errorf("failed to insert pool history for booking %s: %w", entry.BookingID, err)
	}
	return nil
}

// ListAssignmentLogs returns the most recent assignment log rows for a
// booking, newest first, used by repair/diagnostic tooling.
func (r *LogRepository) ListAssignmentLogs(bookingID string, limit int) ([]models.AssignmentLog, error) {
	var rows []models.AssignmentLog
	query := `SELECT * FROM assignment_log WHERE booking_id = $1 ORDER BY created_at DESC LIMIT $2`
	if err := r.db.Select(&rows, query, bookingID, limit); err != nil {
		return nil, fmt.Errorf("failed to list assignment logs for %s: %w", bookingID, err)
	}
	return rows, nil
}

func (r *LogRepository) InsertEmergencyAudit(tx *sqlx.Tx, audit *models.EmergencyAudit) error {
	query := `
		INSERT INTO emergency_audit (
			id, triggered_by, reason, entry_count, started_at, finished_at, report, created_at
		) VALUES (
			:id, :triggered_by, :reason, :entry_count, :started_at, :finished_at, :report, :created_at
		)`
	if _, err := tx.NamedExec(query, audit); err != nil {
		return fmt.Errorf("failed to insert emergency audit %s: %w", audit.ID, err)
	}
	return nil
}
