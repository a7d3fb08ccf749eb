package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"interpreter-engine/internal/config"
	"interpreter-engine/internal/emergency"
	"interpreter-engine/internal/models"
	"interpreter-engine/internal/pool"
	"interpreter-engine/internal/recovery"
	"interpreter-engine/internal/repository"
	"interpreter-engine/internal/runner"
	"interpreter-engine/internal/scheduler"
	"interpreter-engine/internal/scorer"
)

// Engine is the facade implementing the external logical operations, the single
// seam the HTTP handlers and admin CLI both call through.
type Engine struct {
	policies     *repository.PolicyRepository
	priorities   *repository.PriorityRepository
	bookings     *repository.BookingRepository
	interpreters *repository.InterpreterRepository
	poolRepo     *repository.PoolRepository

	runner     *runner.Runner
	processor  *pool.Processor
	scheduler  *scheduler.Scheduler
	override   *emergency.Override
	recovery   *recovery.Manager

	logger *slog.Logger
}

func New(
	policies *repository.PolicyRepository,
	priorities *repository.PriorityRepository,
	bookings *repository.BookingRepository,
	interpreters *repository.InterpreterRepository,
	poolRepo *repository.PoolRepository,
	r *runner.Runner,
	processor *pool.Processor,
	sched *scheduler.Scheduler,
	override *emergency.Override,
	recoveryMgr *recovery.Manager,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		policies:     policies,
		priorities:   priorities,
		bookings:     bookings,
		interpreters: interpreters,
		poolRepo:     poolRepo,
		runner:       r,
		processor:    processor,
		scheduler:    sched,
		override:     override,
		recovery:     recoveryMgr,
		logger:       logger,
	}
}

// AssignBooking decides one booking: assign now, defer to the pool, or
// escalate.
func (e *Engine) AssignBooking(ctx context.Context, bookingID uuid.UUID) (runner.Outcome, error) {
	return e.runner.AssignBooking(ctx, bookingID)
}

// CandidateResult is one ranked candidate in a SuggestCandidates response.
type CandidateResult = models.CandidateScore

// SuggestCandidates runs the same scoring as the Runner without mutating
// state, optionally filtered to an admin's environment. The Runner never
// applies this filter -- auto-assignment acts system-wide; only
// SuggestCandidates uses the caller's scope.
func (e *Engine) SuggestCandidates(ctx context.Context, bookingID uuid.UUID, maxCandidates int, environmentID string) ([]CandidateResult, error) {
	policy, err := e.policies.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	booking, err := e.bookings.GetByID(bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %s: %w", bookingID, err)
	}

	priority, err := e.priorities.Get(booking.MeetingType)
	if err != nil {
		return nil, fmt.Errorf("failed to load priority for %s: %w", booking.MeetingType, err)
	}

	var candidates []models.Interpreter
	if environmentID != "" {
		candidates, err = e.interpreters.ListActiveInEnvironment(environmentID)
	} else {
		candidates, err = e.interpreters.ListActive()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	now := time.Now()
	daysToStart := booking.StartTime.Sub(now).Hours() / 24
	sc := scorer.New()

	scoredInputs := make([]scorer.Candidate, 0, len(candidates))
	for _, c := range candidates {
		existing, err := e.bookings.ActiveForInterpreter(c.EmpCode, booking.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load bookings for %s: %w", c.EmpCode, err)
		}
		available := true
		for _, other := range existing {
			if !other.IsActiveForConflict() {
				continue
			}
			if booking.StartTime.Before(other.EndTime) && other.StartTime.Before(booking.EndTime) {
				available = false
				break
			}
		}

		hours, err := e.bookings.HoursInWindow(c.EmpCode, now.AddDate(0, 0, -policy.FairnessWindowDays), now)
		if err != nil {
			return nil, fmt.Errorf("failed to sum hours for %s: %w", c.EmpCode, err)
		}
		last, err := e.bookings.LastAssignedAt(c.EmpCode, now)
		if err != nil {
			return nil, fmt.Errorf("failed to load last assignment for %s: %w", c.EmpCode, err)
		}
		daysSince := float64(1 << 30)
		if last != nil {
			daysSince = now.Sub(*last).Hours() / 24
		}

		scoredInputs = append(scoredInputs, scorer.Candidate{
			EmpCode:       c.EmpCode,
			CurrentHours:  hours,
			DaysSinceLast: daysSince,
			Available:     available,
		})
	}

	ranked := sc.Rank(scorer.Inputs{
		Candidates:       scoredInputs,
		BookingDuration:  booking.EndTime.Sub(booking.StartTime).Hours(),
		DaysToStart:      daysToStart,
		Thresholds:       scorer.Thresholds{UrgentDays: float64(priority.UrgentThresholdDays), GeneralDays: float64(priority.GeneralThresholdDays)},
		WeightFair:       policy.WeightFair,
		WeightUrgency:    policy.WeightUrgency,
		WeightLRS:        policy.WeightLRS,
		MaxGapHours:      policy.MaxGapHours,
		MinAdvanceDays:   float64(policy.MinAdvanceDays),
		AdjustmentFactor: 1.0,
		IsDR:             booking.IsDR(),
	}, float64(policy.FairnessWindowDays))

	out := scorer.ToCandidateScores(ranked)
	if maxCandidates > 0 && len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out, nil
}

// GetPolicy returns the current policy snapshot.
func (e *Engine) GetPolicy() (*models.Policy, error) {
	return e.policies.Load()
}

// PolicyPatch carries the caller-supplied subset of mutable policy fields.
type PolicyPatch struct {
	WeightFair           *float64 `json:"w_fair,omitempty"`
	WeightUrgency        *float64 `json:"w_urgency,omitempty"`
	WeightLRS            *float64 `json:"w_lrs,omitempty"`
	DRConsecutivePenalty *float64 `json:"dr_consecutive_penalty,omitempty"`
	FairnessWindowDays   *int     `json:"fairness_window_days,omitempty"`
	MaxGapHours          *float64 `json:"max_gap_hours,omitempty"`
	MinAdvanceDays       *int     `json:"min_advance_days,omitempty"`
	AutoAssignEnabled    *bool    `json:"auto_assign_enabled,omitempty"`
	CustomIntervalMins   *int     `json:"custom_interval_minutes,omitempty"`
	CustomCronExpr       *string  `json:"custom_cron_expr,omitempty"`
	CustomLookaheadHours *float64 `json:"custom_lookahead_hours,omitempty"`
	CustomParallelism    *int     `json:"custom_parallelism,omitempty"`
	CustomForbidConsec   *bool    `json:"custom_forbid_consecutive,omitempty"`
}

// lockedFieldsTouched reports whether the patch touches a field that is
// read-only outside CUSTOM mode.
func lockedFieldsTouched(p PolicyPatch) bool {
	return p.WeightFair != nil || p.WeightUrgency != nil || p.WeightLRS != nil ||
		p.DRConsecutivePenalty != nil || p.FairnessWindowDays != nil || p.MaxGapHours != nil ||
		p.MinAdvanceDays != nil
}

// hardRange is one policy validation row: values outside [hardLo, hardHi] are
// rejected, values outside [recLo, recHi] only produce a warning.
type hardRange struct {
	field          string
	hardLo, hardHi float64
	recLo, recHi   float64
}

var policyRanges = []hardRange{
	{"fairnessWindowDays", 7, 90, 14, 60},
	{"maxGapHours", 1, 100, 2, 20},
	{"minAdvanceDays", 0, 30, 1, 7},
	{"w_fair", 0, 5, 0.5, 3},
	{"w_urgency", 0, 5, 0.3, 3},
	{"w_lrs", 0, 5, 0.1, 1},
	{"drConsecutivePenalty", -2, 0, -1, -0.2},
}

// ValidatePolicy checks a policy against the hard ranges, returning a
// non-fatal warning per value outside its recommended band.
func ValidatePolicy(p *models.Policy) ([]string, error) {
	values := map[string]float64{
		"fairnessWindowDays":   float64(p.FairnessWindowDays),
		"maxGapHours":          p.MaxGapHours,
		"minAdvanceDays":       float64(p.MinAdvanceDays),
		"w_fair":               p.WeightFair,
		"w_urgency":            p.WeightUrgency,
		"w_lrs":                p.WeightLRS,
		"drConsecutivePenalty": p.DRConsecutivePenalty,
	}

	var warnings []string
	for _, r := range policyRanges {
		v := values[r.field]
		if v < r.hardLo || v > r.hardHi {
			return nil, fmt.Errorf("%w: %s=%v outside [%v,%v]", ErrInvalidInput, r.field, v, r.hardLo, r.hardHi)
		}
		if v < r.recLo || v > r.recHi {
			warnings = append(warnings, fmt.Sprintf("%s=%v outside recommended [%v,%v]", r.field, v, r.recLo, r.recHi))
		}
	}
	return warnings, nil
}

// UpdatePolicy applies a patch, rejecting attempts to change locked fields
// outside CUSTOM mode and values outside their hard
// ranges, returning non-fatal warnings for values outside recommended bands.
// validateOnly performs the same checks without persisting.
func (e *Engine) UpdatePolicy(patch PolicyPatch, validateOnly bool) (*models.Policy, []string, error) {
	policy, err := e.policies.Load()
	if err != nil {
		return nil, nil, err
	}

	if policy.IsLocked() && lockedFieldsTouched(patch) {
		return policy, nil, ErrPolicyLocked
	}

	next := policy.Clone()
	applyPatch(&next, patch)

	warnings, err := ValidatePolicy(&next)
	if err != nil {
		return nil, nil, err
	}

	if validateOnly {
		return &next, warnings, nil
	}

	if err := e.policies.Update(&next); err != nil {
		return nil, nil, err
	}
	return &next, warnings, nil
}

func applyPatch(p *models.Policy, patch PolicyPatch) {
	if patch.WeightFair != nil {
		p.WeightFair = *patch.WeightFair
	}
	if patch.WeightUrgency != nil {
		p.WeightUrgency = *patch.WeightUrgency
	}
	if patch.WeightLRS != nil {
		p.WeightLRS = *patch.WeightLRS
	}
	if patch.DRConsecutivePenalty != nil {
		p.DRConsecutivePenalty = *patch.DRConsecutivePenalty
	}
	if patch.FairnessWindowDays != nil {
		p.FairnessWindowDays = *patch.FairnessWindowDays
	}
	if patch.MaxGapHours != nil {
		p.MaxGapHours = *patch.MaxGapHours
	}
	if patch.MinAdvanceDays != nil {
		p.MinAdvanceDays = *patch.MinAdvanceDays
	}
	if patch.AutoAssignEnabled != nil {
		p.AutoAssignEnabled = *patch.AutoAssignEnabled
	}
	if patch.CustomIntervalMins != nil {
		p.CustomIntervalMinutes = *patch.CustomIntervalMins
	}
	if patch.CustomCronExpr != nil {
		p.CustomCronExpr = *patch.CustomCronExpr
	}
	if patch.CustomLookaheadHours != nil {
		p.CustomLookaheadHours = *patch.CustomLookaheadHours
	}
	if patch.CustomParallelism != nil {
		p.CustomParallelism = *patch.CustomParallelism
	}
	if patch.CustomForbidConsec != nil {
		p.CustomForbidConsec = *patch.CustomForbidConsec
	}
	p.UpdatedAt = time.Now()
}

// SwitchMode changes the policy mode, replacing locked fields with the new
// mode's canonical vector. Pool deadlines are left untouched; the
// next Scheduler tick picks up the new mode's lookahead and priority rules
// from the live policy snapshot.
func (e *Engine) SwitchMode(mode models.PolicyMode, validateOnly bool) (*models.Policy, error) {
	switch mode {
	case models.ModeBalance, models.ModeUrgent, models.ModeNormal, models.ModeCustom:
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, mode)
	}

	policy, err := e.policies.Load()
	if err != nil {
		return nil, err
	}

	next := policy.Clone()
	next.Mode = mode
	if vector, ok := config.Canonical(mode); ok {
		next.FairnessWindowDays = vector.FairnessWindowDays
		next.MaxGapHours = vector.MaxGapHours
		next.WeightFair = vector.WeightFair
		next.WeightUrgency = vector.WeightUrgency
		next.WeightLRS = vector.WeightLRS
		next.DRConsecutivePenalty = vector.DRConsecutivePenalty
	}
	next.UpdatedAt = time.Now()

	if validateOnly {
		return &next, nil
	}
	if err := e.policies.Update(&next); err != nil {
		return nil, err
	}

	e.scheduler.Stop()
	e.startScheduler(&next, config.ModeInterval(mode, next.CustomIntervalMinutes))
	return &next, nil
}

// startScheduler starts the periodic loop, preferring CUSTOM mode's cron
// expression when one is configured and falling back to the fixed interval.
func (e *Engine) startScheduler(policy *models.Policy, interval time.Duration) {
	if policy.Mode == models.ModeCustom && policy.CustomCronExpr != "" {
		if err := e.scheduler.StartCron(policy.CustomCronExpr); err == nil {
			return
		} else {
			e.logger.Warn("invalid cron expression, falling back to fixed interval", "expr", policy.CustomCronExpr, "error", err)
		}
	}
	e.scheduler.Start(interval)
}

// ListPriorities returns every meeting-type priority row.
func (e *Engine) ListPriorities() ([]models.MeetingTypePriority, error) {
	return e.priorities.List()
}

// UpsertPriority validates and persists a priority row.
func (e *Engine) UpsertPriority(row models.MeetingTypePriority) error {
	if err := row.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	row.UpdatedAt = time.Now()
	return e.priorities.Upsert(&row)
}

// PoolStatus returns the Pool Store's current composition.
func (e *Engine) PoolStatus() (*models.PoolStats, error) {
	return e.poolRepo.Stats()
}

// ProcessPoolNow triggers one out-of-band drain pass. A degraded system
// rejects the request until repaired.
func (e *Engine) ProcessPoolNow(ctx context.Context, tickBudget time.Duration) (pool.Report, error) {
	if status := e.HealthCheck(); !status.Healthy {
		return pool.Report{}, fmt.Errorf("%w: %s", ErrSystemDegraded, status.Detail)
	}
	return e.processor.Drain(ctx, tickBudget), nil
}

// EmergencyProcess runs a full-drain emergency override.
func (e *Engine) EmergencyProcess(ctx context.Context, reason, triggeredBy string) (*emergency.Report, error) {
	return e.override.Run(ctx, reason, triggeredBy)
}

// SchedulerAction is one of the SchedulerControl verbs.
type SchedulerAction string

const (
	SchedulerStart     SchedulerAction = "start"
	SchedulerStop      SchedulerAction = "stop"
	SchedulerRestart   SchedulerAction = "restart"
	SchedulerInitialize SchedulerAction = "initialize"
)

// SchedulerControl drives the Scheduler. A non-positive interval
// falls back to the active mode's default cadence.
func (e *Engine) SchedulerControl(action SchedulerAction, interval time.Duration) error {
	policy, err := e.policies.Load()
	if err != nil {
		return err
	}
	if interval <= 0 {
		interval = config.ModeInterval(policy.Mode, policy.CustomIntervalMinutes)
	}

	switch action {
	case SchedulerStart, SchedulerInitialize:
		e.startScheduler(policy, interval)
	case SchedulerStop:
		e.scheduler.Stop()
	case SchedulerRestart:
		e.scheduler.Stop()
		e.startScheduler(policy, interval)
	default:
		return fmt.Errorf("%w: unknown scheduler action %q", ErrInvalidInput, action)
	}
	return nil
}

// SchedulerStatus returns the Scheduler's read model.
func (e *Engine) SchedulerStatus() scheduler.Status {
	return e.scheduler.GetStatus()
}

// HealthStatus is the result of HealthCheck.
type HealthStatus struct {
	Healthy    bool   `json:"healthy"`
	Detail     string `json:"detail,omitempty"`
}

// HealthCheck reports whether the engine is fit to accept ProcessPoolNow
//.
func (e *Engine) HealthCheck() HealthStatus {
	if _, err := e.policies.Load(); err != nil {
		return HealthStatus{Healthy: false, Detail: fmt.Sprintf("policy store unreachable: %v", err)}
	}
	return HealthStatus{Healthy: true}
}

// RepairAction is one of the Repair verbs.
type RepairAction string

const (
	RepairCleanupStuckProcessing  RepairAction = "cleanup_stuck_processing"
	RepairResetExcessiveRetries   RepairAction = "reset_excessive_retries"
	RepairCleanupCorrupted        RepairAction = "cleanup_corrupted"
	RepairRetryFailedEntries      RepairAction = "retry_failed_entries"
	RepairValidatePoolIntegrity   RepairAction = "validate_pool_integrity"
)

// RepairResult reports what a Repair action did.
type RepairResult struct {
	Action  RepairAction `json:"action"`
	Count   int64        `json:"count"`
	Details []string     `json:"details,omitempty"`
}

// Repair runs one Error-Recovery Manager action.
func (e *Engine) Repair(ctx context.Context, action RepairAction) (RepairResult, error) {
	switch action {
	case RepairCleanupStuckProcessing:
		n, err := e.recovery.ResetStuckProcessing(ctx)
		return RepairResult{Action: action, Count: n}, err
	case RepairResetExcessiveRetries:
		entries, err := e.poolRepo.PeekAll(1 << 20)
		if err != nil {
			return RepairResult{Action: action}, err
		}
		n, err := e.recovery.ResetExcessiveRetries(ctx, entries)
		return RepairResult{Action: action, Count: n}, err
	case RepairCleanupCorrupted:
		pooled, err := e.bookings.ListPooled()
		if err != nil {
			return RepairResult{Action: action}, err
		}
		corrupted := recovery.DetectCorruption(pooled)
		for _, id := range corrupted {
			if qErr := e.recovery.Quarantine(ctx, id, "integrity invariant violated"); qErr != nil {
				e.logger.Error("failed to quarantine corrupted entry", "booking_id", id, "error", qErr)
			}
		}
		return RepairResult{Action: action, Count: int64(len(corrupted)), Details: corrupted}, nil
	case RepairValidatePoolIntegrity:
		pooled, err := e.bookings.ListPooled()
		if err != nil {
			return RepairResult{Action: action}, err
		}
		corrupted := recovery.DetectCorruption(pooled)
		return RepairResult{Action: action, Count: int64(len(corrupted)), Details: corrupted}, nil
	case RepairRetryFailedEntries:
		n, err := e.poolRepo.ResetFailed(time.Minute)
		return RepairResult{Action: action, Count: n}, err
	default:
		return RepairResult{}, fmt.Errorf("%w: unknown repair action %q", ErrInvalidInput, action)
	}
}
