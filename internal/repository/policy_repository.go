// Package repository holds the sqlx-backed persistence layer: thin structs
// wrapping *sqlx.DB, named-parameter queries, fmt.Errorf wrapping.
package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"interpreter-engine/internal/models"
)

// PolicyRepository persists the singleton Policy row.
type PolicyRepository struct {
	db *sqlx.DB
}

func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// Load returns the current policy singleton.
func (r *PolicyRepository) Load() (*models.Policy, error) {
	var policy models.Policy
	query := `SELECT * FROM policy WHERE id = 1`
	if err := r.db.Get(&policy, query); err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	return &policy, nil
}

// Update persists a validated policy row.
func (r *PolicyRepository) Update(policy *models.Policy) error {
	query := `
		UPDATE policy SET
			mode = :mode,
			w_fair = :w_fair,
			w_urgency = :w_urgency,
			w_lrs = :w_lrs,
			dr_consecutive_penalty = :dr_consecutive_penalty,
			fairness_window_days = :fairness_window_days,
			max_gap_hours = :max_gap_hours,
			min_advance_days = :min_advance_days,
			auto_assign_enabled = :auto_assign_enabled,
			custom_interval_minutes = :custom_interval_minutes,
			custom_cron_expr = :custom_cron_expr,
			custom_lookahead_hours = :custom_lookahead_hours,
			custom_parallelism = :custom_parallelism,
			custom_forbid_consecutive = :custom_forbid_consecutive,
			updated_at = :updated_at
		WHERE id = 1`

	_, err := r.db.NamedExec(query, policy)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	return nil
}

// PriorityRepository persists per-meeting-type priority rows.
type PriorityRepository struct {
	db *sqlx.DB
}

func NewPriorityRepository(db *sqlx.DB) *PriorityRepository {
	return &PriorityRepository{db: db}
}

func (r *PriorityRepository) List() ([]models.MeetingTypePriority, error) {
	var rows []models.MeetingTypePriority
	query := `SELECT * FROM meeting_type_priority ORDER BY meeting_type`
	if err := r.db.Select(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to list meeting type priorities: %w", err)
	}
	return rows, nil
}

func (r *PriorityRepository) Get(meetingType models.MeetingType) (*models.MeetingTypePriority, error) {
	var row models.MeetingTypePriority
	query := `SELECT * FROM meeting_type_priority WHERE meeting_type = $1`
	if err := r.db.Get(&row, query, meetingType); err != nil {
		return nil, fmt.Errorf("failed to get priority for %s: %w", meetingType, err)
	}
	return &row, nil
}

func (r *PriorityRepository) Upsert(row *models.MeetingTypePriority) error {
	query := `
		INSERT INTO meeting_type_priority (meeting_type, priority_value, urgent_threshold_days, general_threshold_days, updated_at)
		VALUES (:meeting_type, :priority_value, :urgent_threshold_days, :general_threshold_days, :updated_at)
		ON CONFLICT (meeting_type) DO UPDATE SET
			priority_value = EXCLUDED.priority_value,
			urgent_threshold_days = EXCLUDED.urgent_threshold_days,
			general_threshold_days = EXCLUDED.general_threshold_days,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.NamedExec(query, row)
	if err != nil {
		return fmt.Errorf("failed to upsert priority for %s: %w", row.MeetingType, err)
	}
	return nil
}
