// Package handlers exposes the engine facade's operations over HTTP with
// gofiber/fiber/v3. Only the assignment-engine operations are exposed;
// dashboards and generic booking CRUD live elsewhere.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"interpreter-engine/internal/apiutil"
	"interpreter-engine/internal/engine"
	"interpreter-engine/internal/models"
)

// EngineHandler is the thin HTTP transport over Engine.
type EngineHandler struct {
	engine *engine.Engine
}

func NewEngineHandler(e *engine.Engine) *EngineHandler {
	return &EngineHandler{engine: e}
}

func (h *EngineHandler) Register(app *fiber.App) {
	api := app.Group("/api/v1/engine")

	api.Post("/bookings/:id/assign", h.AssignBooking)
	api.Get("/bookings/:id/suggest", h.SuggestCandidates)

	api.Get("/policy", h.GetPolicy)
	api.Patch("/policy", h.UpdatePolicy)
	api.Post("/policy/mode", h.SwitchMode)

	api.Get("/priorities", h.ListPriorities)
	api.Put("/priorities/:meetingType", h.UpsertPriority)

	api.Get("/pool/status", h.PoolStatus)
	api.Post("/pool/process-now", h.ProcessPoolNow)
	api.Post("/pool/emergency", h.EmergencyProcess)

	api.Post("/scheduler/:action", h.SchedulerControl)
	api.Get("/scheduler/status", h.SchedulerStatus)

	api.Get("/health", h.HealthCheck)
	api.Post("/repair/:action", h.Repair)
}

func (h *EngineHandler) AssignBooking(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(apiutil.CreateErrorResponse("INVALID_INPUT", "bad booking id"))
	}

	outcome, err := h.engine.AssignBooking(c.Context(), id)
	if err != nil {
		slog.Error("assign booking failed", "booking_id", id, "error", err)
	}
	return c.JSON(apiutil.CreateSuccessResponse(outcome))
}

func (h *EngineHandler) SuggestCandidates(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(apiutil.CreateErrorResponse("INVALID_INPUT", "bad booking id"))
	}
	maxCandidates, _ := strconv.Atoi(c.Query("maxCandidates", "10"))
	environmentID := c.Query("environmentId", "")

	results, err := h.engine.SuggestCandidates(c.Context(), id, maxCandidates, environmentID)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(apiutil.CreateErrorResponse("INTERNAL", err.Error()))
	}
	return c.JSON(apiutil.CreateSuccessResponse(results))
}

func (h *EngineHandler) GetPolicy(c fiber.Ctx) error {
	policy, err := h.engine.GetPolicy()
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(apiutil.CreateErrorResponse("INTERNAL", err.Error()))
	}
	return c.JSON(apiutil.CreateSuccessResponse(policy))
}

func (h *EngineHandler) UpdatePolicy(c fiber.Ctx) error {
	var patch engine.PolicyPatch
	if err := c.Bind().Body(&patch); err != nil {
		return c.Status(http.StatusBadRequest).JSON(apiutil.CreateErrorResponse("INVALID_INPUT", err.Error()))
	}
	validateOnly := c.Query("validateOnly", "") == "true"

	policy, warnings, err := h.engine.UpdatePolicy(patch, validateOnly)
	if err != nil {
		if errors.Is(err, engine.ErrPolicyLocked) {
			return c.Status(http.StatusConflict).JSON(apiutil.CreateErrorResponse("POLICY_LOCKED", err.Error()))
		}
		if errors.Is(err, engine.ErrInvalidInput) {
			return c.Status(http.StatusBadRequest).JSON(apiutil.CreateErrorResponse("INVALID_INPUT", err.Error()))
		}
		return c.Status(http.StatusInternalServerError).JSON(apiutil.CreateErrorResponse("INTERNAL", err.Error()))
	}
	return c.JSON(apiutil.CreateSuccessResponse(fiber.Map{"policy": policy, "warnings": warnings}))
}

func (h *EngineHandler) SwitchMode(c fiber.Ctx) error {
	var body struct {
		Mode models.PolicyMode `json:"mode"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(http.StatusBadRequest).JSON(apiutil.CreateErrorResponse("INVALID_INPUT", err.Error()))
	}
	validateOnly := c.Query("validateOnly", "") == "true"

	policy, err := h.engine.SwitchMode(body.Mode, validateOnly)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(apiutil.CreateErrorResponse("INTERNAL", err.Error()))
	}
	return c.JSON(apiutil.CreateSuccessResponse(policy))
}

func (h *EngineHandler) ListPriorities(c fiber.Ctx) error {
	rows, err := h.engine.ListPriorities()
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(apiutil.CreateErrorResponse("INTERNAL", err.Error()))
	}
	return c.JSON(apiutil.CreateSuccessResponse(rows))
}

func (h *EngineHandler) UpsertPriority(c fiber.Ctx) error {
	var row models.MeetingTypePriority
	if err := c.Bind().Body(&row); err != nil {
		return c.Status(http.StatusBadRequest).JSON(apiutil.CreateErrorResponse("INVALID_INPUT", err.Error()))
	}
	row.MeetingType = models.MeetingType(c.Params("meetingType"))

	if err := h.engine.UpsertPriority(row); err != nil {
		return c.Status(http.StatusBadRequest).JSON(apiutil.CreateErrorResponse("INVALID_INPUT", err.Error()))
	}
	return c.JSON(apiutil.CreateSuccessResponse(row))
}

func (h *EngineHandler) PoolStatus(c fiber.Ctx) error {
	stats, err := h.engine.PoolStatus()
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(apiutil.CreateErrorResponse("INTERNAL", err.Error()))
	}
	return c.JSON(apiutil.CreateSuccessResponse(stats))
}

func (h *EngineHandler) ProcessPoolNow(c fiber.Ctx) error {
	report, err := h.engine.ProcessPoolNow(c.Context(), 60*time.Second)
	if err != nil {
		return c.Status(http.StatusServiceUnavailable).JSON(apiutil.CreateErrorResponse("SYSTEM_DEGRADED", err.Error()))
	}
	return c.JSON(apiutil.CreateSuccessResponse(report))
}

func (h *EngineHandler) EmergencyProcess(c fiber.Ctx) error {
	var body struct {
		Reason      string `json:"reason"`
		TriggeredBy string `json:"triggeredBy"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(http.StatusBadRequest).JSON(apiutil.CreateErrorResponse("INVALID_INPUT", err.Error()))
	}

	report, err := h.engine.EmergencyProcess(c.Context(), body.Reason, body.TriggeredBy)
	if err != nil {
		return c.Status(http.StatusConflict).JSON(apiutil.CreateErrorResponse("ALREADY_RUNNING", err.Error()))
	}
	return c.JSON(apiutil.CreateSuccessResponse(report))
}

func (h *EngineHandler) SchedulerControl(c fiber.Ctx) error {
	action := engine.SchedulerAction(c.Params("action"))
	intervalMs, _ := strconv.Atoi(c.Query("intervalMs", "0"))

	if err := h.engine.SchedulerControl(action, time.Duration(intervalMs)*time.Millisecond); err != nil {
		return c.Status(http.StatusBadRequest).JSON(apiutil.CreateErrorResponse("INVALID_INPUT", err.Error()))
	}
	return c.JSON(apiutil.CreateSuccessResponse(h.engine.SchedulerStatus()))
}

func (h *EngineHandler) SchedulerStatus(c fiber.Ctx) error {
	return c.JSON(apiutil.CreateSuccessResponse(h.engine.SchedulerStatus()))
}

func (h *EngineHandler) HealthCheck(c fiber.Ctx) error {
	status := h.engine.HealthCheck()
	if !status.Healthy {
		return c.Status(http.StatusServiceUnavailable).JSON(apiutil.CreateSuccessResponse(status))
	}
	return c.JSON(apiutil.CreateSuccessResponse(status))
}

func (h *EngineHandler) Repair(c fiber.Ctx) error {
	action := engine.RepairAction(c.Params("action"))
	result, err := h.engine.Repair(c.Context(), action)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(apiutil.CreateErrorResponse("INVALID_INPUT", err.Error()))
	}
	return c.JSON(apiutil.CreateSuccessResponse(result))
}
