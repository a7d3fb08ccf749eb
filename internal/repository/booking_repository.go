package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"interpreter-engine/internal/models"
)

// BookingRepository is the conflict/fairness/assignment-facing read-write
// surface over the booking table: interval queries for conflict detection,
// aggregates for fairness, and the version-guarded assignment write.
type BookingRepository struct {
	db *sqlx.DB
}

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) GetByID(id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	query := `SELECT * FROM booking WHERE id = $1`
	if err := r.db.Get(&b, query, id); err != nil {
		return nil, fmt.Errorf("failed to get booking %s: %w", id, err)
	}
	return &b, nil
}

// ActiveForInterpreter returns every non-cancelled booking an interpreter is
// assigned to, used for conflict detection.
func (r *BookingRepository) ActiveForInterpreter(empCode string, excludeBookingID uuid.UUID) ([]models.Booking, error) {
	var rows []models.Booking
	query := `
		SELECT * FROM booking
		WHERE interpreter_emp_code = $1
		  AND booking_status != $2
		  AND id != $3`
	if err := r.db.Select(&rows, query, empCode, models.BookingCancel, excludeBookingID); err != nil {
		return nil, fmt.Errorf("failed to list active bookings for %s: %w", empCode, err)
	}
	return rows, nil
}

// ListPooled returns every booking currently holding a pool entry, for the
// Error-Recovery Manager's corruption sweep.
func (r *BookingRepository) ListPooled() ([]models.Booking, error) {
	var rows []models.Booking
	query := `
		SELECT * FROM booking
		WHERE pool_sub_state NOT IN ($1, $2)
		  AND booking_status != $3`
	if err := r.db.Select(&rows, query, models.PoolNone, models.PoolAssigned, models.BookingCancel); err != nil {
		return nil, fmt.Errorf("failed to list pooled bookings: %w", err)
	}
	return rows, nil
}

// HoursInWindow sums assigned interpreting hours for the interpreter within
// [since, until), used by the Fairness Accountant.
func (r *BookingRepository) HoursInWindow(empCode string, since, until time.Time) (float64, error) {
	var totalMinutes float64
	query := `
		SELECT COALESCE(SUM(EXTRACT(EPOCH FROM (end_time - start_time)) / 60), 0)
		FROM booking
		WHERE interpreter_emp_code = $1
		  AND booking_status = $2
		  AND start_time >= $3
		  AND start_time < $4`
	if err := r.db.Get(&totalMinutes, query, empCode, models.BookingApproved, since, until); err != nil {
		return 0, fmt.Errorf("failed to sum hours for %s: %w", empCode, err)
	}
	return totalMinutes / 60, nil
}

// LastAssignedAt returns the start time of the interpreter's most recent
// assigned booking strictly before 'before', or nil if none exists.
func (r *BookingRepository) LastAssignedAt(empCode string, before time.Time) (*time.Time, error) {
	var startTime time.Time
	query := `
		SELECT start_time FROM booking
		WHERE interpreter_emp_code = $1
		  AND booking_status = $2
		  AND start_time < $3
		ORDER BY start_time DESC
		LIMIT 1`
	err := r.db.Get(&startTime, query, empCode, models.BookingApproved, before)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find last assignment for %s: %w", empCode, err)
	}
	return &startTime, nil
}

// RecentDRAssignments returns the assigned, non-cancelled DR bookings of
// every interpreter (or only the owning group's, when scope is local) with
// start in [since, before), newest first. The DR History Inspector reads the
// whole scoped history at once: whether a candidate is consecutive-blocked
// depends on who holds the most recent assignment overall, not on the
// candidate's own history alone.
func (r *BookingRepository) RecentDRAssignments(before, since time.Time, scope models.DRScope, owningGroup models.OwningGroup) ([]models.Booking, error) {
	var rows []models.Booking
	query := `
		SELECT * FROM booking
		WHERE meeting_type = $1
		  AND booking_status = $2
		  AND interpreter_emp_code IS NOT NULL
		  AND start_time < $3
		  AND start_time >= $4`
	args := []any{models.MeetingDR, models.BookingApproved, before, since}
	if scope == models.DRScopeLocal {
		query += ` AND owning_group = $5`
		args = append(args, owningGroup)
	}
	query += ` ORDER BY start_time DESC`
	if err := r.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list recent DR assignments: %w", err)
	}
	return rows, nil
}

// CompareAndSwapAssignment atomically assigns an interpreter to a booking,
// bumping its version token, succeeding only if the in-memory version still
// matches the stored row -- the optimistic-concurrency contract every racing
// writer goes through.
func (r *BookingRepository) CompareAndSwapAssignment(tx *sqlx.Tx, bookingID uuid.UUID, expectedVersion int64, empCode string, status models.BookingStatus) (bool, error) {
	query := `
		UPDATE booking SET
			interpreter_emp_code = $1,
			booking_status = $2,
			pool_sub_state = $3,
			version = version + 1,
			updated_at = now()
		WHERE id = $4 AND version = $5`
	res, err := tx.Exec(query, empCode, status, models.PoolNone, bookingID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("failed to assign booking %s: %w", bookingID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for %s: %w", bookingID, err)
	}
	return affected == 1, nil
}

// InterpreterRepository is the read-mostly surface over the interpreter table.
type InterpreterRepository struct {
	db *sqlx.DB
}

func NewInterpreterRepository(db *sqlx.DB) *InterpreterRepository {
	return &InterpreterRepository{db: db}
}

func (r *InterpreterRepository) ListActive() ([]models.Interpreter, error) {
	var rows []models.Interpreter
	query := `SELECT * FROM interpreter WHERE is_active = true ORDER BY emp_code`
	if err := r.db.Select(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to list active interpreters: %w", err)
	}
	return rows, nil
}

func (r *InterpreterRepository) ListActiveInEnvironment(environmentID string) ([]models.Interpreter, error) {
	var rows []models.Interpreter
	query := `SELECT * FROM interpreter WHERE is_active = true AND department_path = $1 ORDER BY emp_code`
	if err := r.db.Select(&rows, query, environmentID); err != nil {
		return nil, fmt.Errorf("failed to list active interpreters in %s: %w", environmentID, err)
	}
	return rows, nil
}

func (r *InterpreterRepository) GetByEmpCode(empCode string) (*models.Interpreter, error) {
	var i models.Interpreter
	query := `SELECT * FROM interpreter WHERE emp_code = $1`
	if err := r.db.Get(&i, query, empCode); err != nil {
		return nil, fmt.Errorf("failed to get interpreter %s: %w", empCode, err)
	}
	return &i, nil
}
