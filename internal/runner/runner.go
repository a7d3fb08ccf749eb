// Package runner implements the Assignment Runner: the single-booking
// contract that routes a booking to immediate assignment, the pool, or
// escalation, and commits the outcome atomically.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/trace"

	"interpreter-engine/internal/conflict"
	"interpreter-engine/internal/drpolicy"
	"interpreter-engine/internal/dynamicpool"
	"interpreter-engine/internal/events"
	"interpreter-engine/internal/fairness"
	"interpreter-engine/internal/metrics"
	"interpreter-engine/internal/models"
	"interpreter-engine/internal/observability"
	"interpreter-engine/internal/repository"
	"interpreter-engine/internal/scorer"
)

const maxVersionRetries = 2

// StatusPooled is the Outcome.Status value for a booking routed to the pool
// rather than assigned or escalated. It is not one of
// models.AssignmentOutcome's terminal values since pooling is not terminal.
const StatusPooled models.AssignmentOutcome = "pooled"

// Outcome is the result of a single AssignBooking invocation.
type Outcome struct {
	Status        models.AssignmentOutcome
	InterpreterID string
	Reason        string
	Breakdown     []models.CandidateScore
}

// Runner is the Assignment Runner.
type Runner struct {
	policies     *repository.PolicyRepository
	priorities   *repository.PriorityRepository
	bookings     *repository.BookingRepository
	interpreters *repository.InterpreterRepository
	pool         *repository.PoolRepository
	logs         *repository.LogRepository
	tx           *repository.TxRunner

	detector  *conflict.Detector
	accountor *fairness.Accountant
	inspector *drpolicy.Inspector
	scorer    *scorer.Scorer
	dynamic   *dynamicpool.Manager

	notifier events.Notifier
	logger   *slog.Logger
}

func New(
	policies *repository.PolicyRepository,
	priorities *repository.PriorityRepository,
	bookings *repository.BookingRepository,
	interpreters *repository.InterpreterRepository,
	pool *repository.PoolRepository,
	logs *repository.LogRepository,
	tx *repository.TxRunner,
	dynamic *dynamicpool.Manager,
	notifier events.Notifier,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		policies:     policies,
		priorities:   priorities,
		bookings:     bookings,
		interpreters: interpreters,
		pool:         pool,
		logs:         logs,
		tx:           tx,
		detector:     conflict.New(),
		accountor:    fairness.New(bookings),
		inspector:    drpolicy.New(bookings),
		scorer:       scorer.New(),
		dynamic:      dynamic,
		notifier:     notifier,
		logger:       logger,
	}
}

// AssignBooking runs the full decision contract for one booking, wrapped in an
// "interpreter.assign" span and the assignments_total counter.
func (r *Runner) AssignBooking(ctx context.Context, bookingID uuid.UUID) (Outcome, error) {
	ctx, span := observability.StartSpan(ctx, "interpreter.assign", observability.AttrBookingID.String(bookingID.String()))
	defer span.End()

	outcome, err := r.assignBooking(ctx, bookingID)
	if err != nil {
		observability.SetSpanError(span, err)
		metrics.RecordAssignment("error")
		return outcome, err
	}
	span.SetAttributes(observability.AttrOutcome.String(string(outcome.Status)), observability.AttrInterpreterID.String(outcome.InterpreterID))
	observability.SetSpanOK(span)
	metrics.RecordAssignment(string(outcome.Status))

	if r.notifier != nil && outcome.Status != StatusPooled {
		event := events.AssignmentDecidedEvent{
			BookingID:     bookingID.String(),
			Status:        string(outcome.Status),
			InterpreterID: outcome.InterpreterID,
			Reason:        outcome.Reason,
		}
		if pErr := r.notifier.PublishAssignmentDecided(ctx, event); pErr != nil {
			r.logger.Warn("failed to publish assignment event", "booking_id", bookingID, "error", pErr)
		}
	}
	return outcome, nil
}

func (r *Runner) assignBooking(ctx context.Context, bookingID uuid.UUID) (Outcome, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	policy, err := r.policies.Load()
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to load policy: %w", err)
	}
	if !policy.AutoAssignEnabled {
		return Outcome{Status: models.OutcomeEscalated, Reason: "auto-assign disabled"}, nil
	}

	booking, err := r.bookings.GetByID(bookingID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to load booking %s: %w", bookingID, err)
	}

	// Re-running on an already-assigned booking is a no-op: same interpreter,
	// no new decision log row.
	if booking.IsAssigned() {
		return Outcome{Status: models.OutcomeAssigned, InterpreterID: *booking.InterpreterEmpCode, Reason: "already assigned"}, nil
	}
	if booking.BookingStatus == models.BookingCancel {
		return Outcome{Status: models.OutcomeRejected, Reason: "booking cancelled"}, nil
	}

	priority, err := r.priorities.Get(booking.MeetingType)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to load priority for %s: %w", booking.MeetingType, err)
	}

	now := time.Now()
	daysToStart := booking.StartTime.Sub(now).Hours() / 24
	u := float64(priority.UrgentThresholdDays)
	g := float64(priority.GeneralThresholdDays)

	route := routeFor(policy.Mode, daysToStart, u, g)
	trace.SpanFromContext(ctx).SetAttributes(observability.AttrRoute.String(string(route)))

	switch route {
	case models.RouteImmediate:
		return r.runImmediate(ctx, booking, policy, scorer.Thresholds{UrgentDays: u, GeneralDays: g}, daysToStart, start)
	default:
		return r.routeToPool(ctx, booking, u, now)
	}
}

func routeFor(mode models.PolicyMode, daysToStart, u, g float64) models.Route {
	if mode == models.ModeUrgent {
		return models.RouteImmediate
	}
	if daysToStart <= u {
		return models.RouteImmediate
	}
	return models.RoutePool
}

// poolDeadline computes the pool entry's deadline: start minus the urgent
// threshold, floored at now+1m when that instant is already past.
func poolDeadline(start, now time.Time, urgentDays float64) time.Time {
	deadline := start.Add(-time.Duration(urgentDays * float64(24*time.Hour)))
	if floor := now.Add(time.Minute); deadline.Before(floor) {
		return floor
	}
	return deadline
}

func (r *Runner) routeToPool(ctx context.Context, booking *models.Booking, urgentDays float64, now time.Time) (Outcome, error) {
	deadline := poolDeadline(booking.StartTime, now, urgentDays)

	if err := r.pool.Enqueue(booking.ID, deadline); err != nil {
		return Outcome{}, fmt.Errorf("failed to pool booking %s: %w", booking.ID, err)
	}

	if err := r.tx.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		return r.logs.InsertPoolHistory(tx, &models.PoolEntryHistory{
			ID:            uuid.New(),
			BookingID:     booking.ID,
			Action:        models.HistoryEntered,
			PreviousState: booking.PoolSubState,
			NewState:      models.PoolWaiting,
			Attempts:      0,
			SystemState:   models.JSONMap{"deadline": deadline},
			CreatedAt:     time.Now(),
		})
	}); err != nil {
		return Outcome{}, fmt.Errorf("failed to log pool entry for %s: %w", booking.ID, err)
	}

	return Outcome{Status: StatusPooled, Reason: "deferred to pool", Breakdown: nil}, nil
}

// runImmediate assembles candidates, scores them, and commits the winner.
func (r *Runner) runImmediate(ctx context.Context, booking *models.Booking, policy *models.Policy, th scorer.Thresholds, daysToStart float64, started time.Time) (Outcome, error) {
	candidates, err := r.interpreters.ListActive()
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to list active interpreters: %w", err)
	}

	adj, err := r.dynamic.Observe(ctx, empCodes(candidates))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to observe dynamic pool: %w", err)
	}
	adjustmentFactor := adj.AdjustmentFactor
	if adjustmentFactor == 0 {
		adjustmentFactor = 1.0
	}

	drParams := drpolicy.ParamsForMode(policy)

	type assembled struct {
		code      string
		available bool
		hours     float64
		daysSince float64
	}

	assembledCandidates := make([]assembled, len(candidates))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, cand := range candidates {
		wg.Add(1)
		go func(i int, empCode string) {
			defer wg.Done()

			existing, err := r.bookings.ActiveForInterpreter(empCode, booking.ID)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			window := conflict.Window{Start: booking.StartTime, End: booking.EndTime}
			result := r.detector.Check(window, existing, booking.ID)

			hours, err := r.accountor.HoursInWindow(empCode, time.Now(), policy.FairnessWindowDays)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			daysSince, err := r.accountor.DaysSinceLast(empCode, time.Now())
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			mu.Lock()
			assembledCandidates[i] = assembled{
				code:      empCode,
				available: result.Available,
				hours:     hours,
				daysSince: daysSince,
			}
			mu.Unlock()
		}(i, cand.EmpCode)
	}
	wg.Wait()

	if firstErr != nil {
		return Outcome{}, fmt.Errorf("failed to assemble candidates: %w", firstErr)
	}

	// Newly added interpreters inherit the median of the incumbents' hours so
	// a zero history does not instantly out-score longer-tenured staff.
	if adj.ShouldRecalculate && len(adj.Added) > 0 {
		addedSet := make(map[string]bool, len(adj.Added))
		for _, code := range adj.Added {
			addedSet[code] = true
		}
		var incumbents []float64
		for _, c := range assembledCandidates {
			if !addedSet[c.code] {
				incumbents = append(incumbents, c.hours)
			}
		}
		if len(incumbents) > 0 {
			median := dynamicpool.MedianHours(incumbents)
			for i := range assembledCandidates {
				if addedSet[assembledCandidates[i].code] && assembledCandidates[i].hours < median {
					assembledCandidates[i].hours = median
				}
			}
		}
	}

	// One scope-wide DR history read covers every candidate: blocking depends
	// on who holds the most recent DR assignment overall, not on each
	// candidate's own history in isolation.
	drStatuses := make(map[string]drpolicy.Status)
	if booking.IsDR() {
		lookback := time.Duration(policy.FairnessWindowDays*2) * 24 * time.Hour
		drStatuses, err = r.inspector.InspectAll(empCodes(candidates), *booking, drParams.Scope, drParams.ForbidConsecutive, booking.OwningGroup, lookback)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to inspect DR history: %w", err)
		}
	}

	// All-blocked override: if DR policy hard-blocks every candidate,
	// lift the block for the one with earliest lastDRAt.
	overrideEmpCode := ""
	if booking.IsDR() && drParams.ForbidConsecutive {
		allBlocked := true
		statuses := make([]drpolicy.Status, 0, len(assembledCandidates))
		for _, c := range assembledCandidates {
			st := drStatuses[c.code]
			if !st.IsBlocked {
				allBlocked = false
			}
			statuses = append(statuses, st)
		}
		if allBlocked && len(assembledCandidates) > 0 {
			overrideEmpCode = drpolicy.ApplyOverride(statuses)
			if overrideEmpCode == "" {
				r.logEscalation(ctx, booking, "DR_ALL_BLOCKED_AND_NO_OVERRIDE_POSSIBLE", nil, nil, started)
				return Outcome{Status: models.OutcomeEscalated, Reason: "DR_ALL_BLOCKED_AND_NO_OVERRIDE_POSSIBLE"}, models.ErrDRAllBlocked
			}
		}
	}

	scorerCandidates := make([]scorer.Candidate, 0, len(assembledCandidates))
	for _, c := range assembledCandidates {
		st := drStatuses[c.code]
		hardBlocked := booking.IsDR() && drParams.ForbidConsecutive && st.IsBlocked && c.code != overrideEmpCode
		scorerCandidates = append(scorerCandidates, scorer.Candidate{
			EmpCode:          c.code,
			CurrentHours:     c.hours,
			DaysSinceLast:    c.daysSince,
			Available:        c.available,
			DRHardBlocked:    hardBlocked,
			DRConsecutiveCnt: st.ConsecutiveCount,
		})
	}

	duration := booking.EndTime.Sub(booking.StartTime).Hours()
	ranked := r.scorer.Rank(scorer.Inputs{
		Candidates:       scorerCandidates,
		BookingDuration:  duration,
		DaysToStart:      daysToStart,
		Thresholds:       th,
		WeightFair:       policy.WeightFair,
		WeightUrgency:    policy.WeightUrgency,
		WeightLRS:        policy.WeightLRS,
		DRPenalty:        policy.DRConsecutivePenalty,
		MaxGapHours:      policy.MaxGapHours,
		MinAdvanceDays:   float64(policy.MinAdvanceDays),
		AdjustmentFactor: adjustmentFactor,
		IsDR:             booking.IsDR(),
	}, float64(policy.FairnessWindowDays))

	breakdown := scorer.ToCandidateScores(ranked)

	var drRecord *models.DRPolicyRecord
	if booking.IsDR() {
		rec := models.DRPolicyRecord{
			Scope:             drParams.Scope,
			ForbidConsecutive: drParams.ForbidConsecutive,
			Penalty:           policy.DRConsecutivePenalty,
		}
		for _, c := range assembledCandidates {
			if drStatuses[c.code].IsBlocked {
				rec.BlockedCandidates = append(rec.BlockedCandidates, c.code)
			}
		}
		if overrideEmpCode != "" {
			rec.OverrideApplied = true
			rec.OverrideEmpCode = overrideEmpCode
		}
		drRecord = &rec
	}

	conflicts := models.ConflictSummary{CandidatesChecked: len(assembledCandidates)}
	for _, c := range assembledCandidates {
		if !c.available {
			conflicts.Conflicted = append(conflicts.Conflicted, c.code)
		}
	}

	var winner *scorer.Scored
	for i := range ranked {
		if ranked[i].Eligible {
			winner = &ranked[i]
			break
		}
	}

	if winner == nil {
		r.logEscalation(ctx, booking, "NO_CANDIDATES", breakdown, drRecord, started)
		return Outcome{Status: models.OutcomeEscalated, Reason: "NO_CANDIDATES", Breakdown: breakdown}, models.ErrNoCandidates
	}

	reason := "scored assignment"
	if winner.EmpCode == overrideEmpCode && overrideEmpCode != "" {
		reason = "DR_OVERRIDE"
	}

	preHours := models.JSONMap{}
	postHours := models.JSONMap{}
	for _, c := range assembledCandidates {
		preHours[c.code] = c.hours
		if c.code == winner.EmpCode {
			postHours[c.code] = c.hours + duration
		} else {
			postHours[c.code] = c.hours
		}
	}

	return r.commitAssignment(ctx, booking, winner.EmpCode, reason, breakdown, drRecord, conflicts, preHours, postHours, started)
}

// commitAssignment performs the atomic commit with up to 2 retries
// on optimistic version conflict before escalating.
func (r *Runner) commitAssignment(ctx context.Context, booking *models.Booking, empCode, reason string, breakdown []models.CandidateScore, drRecord *models.DRPolicyRecord, conflicts models.ConflictSummary, preHours, postHours models.JSONMap, started time.Time) (Outcome, error) {
	current := booking
	for attempt := 0; attempt <= maxVersionRetries; attempt++ {
		var committed bool
		err := r.tx.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			ok, err := r.bookings.CompareAndSwapAssignment(tx, current.ID, current.Version, empCode, models.BookingApproved)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			committed = true

			logRow := &models.AssignmentLog{
				ID:                 uuid.New(),
				BookingID:          current.ID,
				InterpreterEmpCode: &empCode,
				Status:             models.OutcomeAssigned,
				Reason:             reason,
				PreHours:           preHours,
				PostHours:          postHours,
				ScoreBreakdown: models.JSONValue[models.ScoreBreakdown]{V: models.ScoreBreakdown{
					SchemaVersion:   models.ScoreBreakdownSchemaVersion,
					Candidates:      breakdown,
					SelectedEmpCode: empCode,
					DRPolicy:        drRecord,
				}},
				ConflictSummary: models.JSONValue[models.ConflictSummary]{V: conflicts},
				DurationMillis:  time.Since(started).Milliseconds(),
				SystemState:     models.JSONMap{},
				CreatedAt:       time.Now(),
			}
			if drRecord != nil {
				logRow.DRPolicy = models.JSONValue[models.DRPolicyRecord]{V: *drRecord}
			}
			if err := r.logs.InsertAssignmentLog(tx, logRow); err != nil {
				return err
			}

			if current.PoolSubState != models.PoolNone {
				return r.logs.InsertPoolHistory(tx, &models.PoolEntryHistory{
					ID:            uuid.New(),
					BookingID:     current.ID,
					Action:        models.HistoryProcessed,
					PreviousState: current.PoolSubState,
					NewState:      models.PoolAssigned,
					Attempts:      current.ProcessingAttempts,
					SystemState:   models.JSONMap{},
					CreatedAt:     time.Now(),
				})
			}
			return nil
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to commit assignment for %s: %w", current.ID, err)
		}
		if committed {
			return Outcome{Status: models.OutcomeAssigned, InterpreterID: empCode, Reason: "assigned", Breakdown: breakdown}, nil
		}

		// Version mismatch: reload and retry.
		reloaded, err := r.bookings.GetByID(current.ID)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to reload booking %s: %w", current.ID, err)
		}
		// The racing Runner may have finished the job for us: treat the
		// booking as settled rather than writing a second assignment.
		if reloaded.IsAssigned() {
			return Outcome{Status: models.OutcomeAssigned, InterpreterID: *reloaded.InterpreterEmpCode, Reason: "already assigned"}, nil
		}
		if reloaded.BookingStatus == models.BookingCancel {
			return Outcome{Status: models.OutcomeRejected, Reason: "booking cancelled"}, nil
		}
		current = reloaded
		r.logger.Warn("optimistic version mismatch, retrying", "booking_id", current.ID, "attempt", attempt+1)
	}

	r.logEscalation(ctx, current, "CONFLICT_CONCURRENT_UPDATE", breakdown, nil, started)
	return Outcome{Status: models.OutcomeEscalated, Reason: "CONFLICT_CONCURRENT_UPDATE", Breakdown: breakdown}, models.ErrConcurrentUpdate
}

func (r *Runner) logEscalation(ctx context.Context, booking *models.Booking, reason string, breakdown []models.CandidateScore, drRecord *models.DRPolicyRecord, started time.Time) {
	err := r.tx.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		logRow := &models.AssignmentLog{
			ID:        uuid.New(),
			BookingID: booking.ID,
			Status:    models.OutcomeEscalated,
			Reason:    reason,
			PreHours:  models.JSONMap{},
			PostHours: models.JSONMap{},
			ScoreBreakdown: models.JSONValue[models.ScoreBreakdown]{V: models.ScoreBreakdown{
				SchemaVersion: models.ScoreBreakdownSchemaVersion,
				Candidates:    breakdown,
				DRPolicy:      drRecord,
			}},
			DurationMillis: time.Since(started).Milliseconds(),
			SystemState:    models.JSONMap{},
			CreatedAt:      time.Now(),
		}
		if drRecord != nil {
			logRow.DRPolicy = models.JSONValue[models.DRPolicyRecord]{V: *drRecord}
		}
		return r.logs.InsertAssignmentLog(tx, logRow)
	})
	if err != nil {
		r.logger.Error("failed to log escalation", "booking_id", booking.ID, "error", err)
	}
}

func empCodes(interpreters []models.Interpreter) []string {
	codes := make([]string, len(interpreters))
	for i, it := range interpreters {
		codes[i] = it.EmpCode
	}
	return codes
}
