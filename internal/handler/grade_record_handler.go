package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/uni-records-api/internal/dto"
	"github.com/noah-isme/uni-records-api/internal/middleware"
	"github.com/noah-isme/uni-records-api/internal/repository"
	"github.com/noah-isme/uni-records-api/internal/service"
	"github.com/noah-isme/uni-records-api/internal/utils"
)

// GradeRecordHandler wires grade record HTTP routes, including the lifecycle
// transitions and bulk endpoints.
type GradeRecordHandler struct {
	service   service.GradeRecordService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGradeRecordHandler constructs the handler.
func NewGradeRecordHandler(service service.GradeRecordService, validator *validator.Validate, logger zerolog.Logger) *GradeRecordHandler {
	return &GradeRecordHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "grade_record_handler").Logger(),
	}
}

// Register attaches grade record endpoints to the router group.
func (h *GradeRecordHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Post("/bulk", h.bulkCreate)
	router.Patch("/bulk", h.bulkUpdate)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)

	router.Post("/:id/lock", h.lock)
	router.Delete("/:id/lock", h.unlock)
	router.Post("/:id/publish", h.publish)
	router.Post("/:id/verify", h.verify)

	router.Post("/:id/moderation", h.submitModeration)
	router.Post("/:id/moderation/approve", h.approveModeration)
	router.Post("/:id/moderation/reject", h.rejectModeration)

	router.Post("/:id/appeal", middleware.RateLimit("grade-appeal", 5, time.Minute), h.submitAppeal)
	router.Post("/:id/appeal/review", h.reviewAppeal)
	router.Post("/:id/appeal/decide", h.decideAppeal)
}

func (h *GradeRecordHandler) list(c *fiber.Ctx) error {
	filter, err := h.buildFilter(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	records, err := h.service.List(c.Context(), filter)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "grade records retrieved", records)
}

func (h *GradeRecordHandler) buildFilter(c *fiber.Ctx) (repository.GradeRecordFilter, error) {
	filter := repository.GradeRecordFilter{
		Section:      strings.TrimSpace(c.Query("section")),
		Term:         strings.TrimSpace(c.Query("term")),
		AcademicYear: strings.TrimSpace(c.Query("academic_year")),
		Program:      strings.TrimSpace(c.Query("program")),
		ActiveOnly:   strings.TrimSpace(c.Query("include_inactive")) != "true",
	}

	for key, target := range map[string]**uint{
		"student_id":    &filter.StudentID,
		"course_id":     &filter.CourseID,
		"department_id": &filter.DepartmentID,
		"instructor_id": &filter.InstructorID,
	} {
		value, err := parseQueryUint(c, key)
		if err != nil {
			return repository.GradeRecordFilter{}, errors.New("invalid " + key)
		}
		if value > 0 {
			id := value
			*target = &id
		}
	}

	for key, target := range map[string]**int{
		"year":     &filter.Year,
		"semester": &filter.Semester,
	} {
		value, err := parseQueryInt(c, key)
		if err != nil {
			return repository.GradeRecordFilter{}, errors.New("invalid " + key)
		}
		if value > 0 {
			n := value
			*target = &n
		}
	}

	if published := strings.TrimSpace(c.Query("published")); published != "" {
		value := published == "true"
		filter.Published = &value
	}

	return filter, nil
}

func (h *GradeRecordHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	record, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade record retrieved", record)
}

func (h *GradeRecordHandler) create(c *fiber.Ctx) error {
	var payload dto.GradeRecordCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.service.Create(c.Context(), payload, auditActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "grade record created", record)
}

func (h *GradeRecordHandler) bulkCreate(c *fiber.Ctx) error {
	var payload dto.BulkGradeRecordCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.BulkCreate(c.Context(), payload, auditActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	status := fiber.StatusCreated
	if response.Failed > 0 {
		status = fiber.StatusMultiStatus
	}
	return utils.SendSuccessWithStatus(c, status, "bulk create processed", response)
}

func (h *GradeRecordHandler) bulkUpdate(c *fiber.Ctx) error {
	var payload dto.BulkGradeRecordUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.BulkUpdate(c.Context(), payload, auditActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	status := fiber.StatusOK
	if response.Failed > 0 {
		status = fiber.StatusMultiStatus
	}
	return utils.SendSuccessWithStatus(c, status, "bulk update processed", response)
}

func (h *GradeRecordHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeRecordUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.service.Update(c.Context(), id, payload, auditActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade record updated", record)
}

func (h *GradeRecordHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.Context(), id, auditActorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade record deleted", fiber.Map{"id": id})
}

func (h *GradeRecordHandler) lock(c *fiber.Ctx) error {
	return h.transition(c, h.service.Lock, "grade record locked")
}

func (h *GradeRecordHandler) unlock(c *fiber.Ctx) error {
	return h.transition(c, h.service.Unlock, "grade record unlocked")
}

func (h *GradeRecordHandler) verify(c *fiber.Ctx) error {
	return h.transition(c, h.service.Verify, "grade record verified")
}

func (h *GradeRecordHandler) reviewAppeal(c *fiber.Ctx) error {
	return h.transition(c, h.service.ReviewAppeal, "appeal moved to review")
}

func (h *GradeRecordHandler) publish(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.PublishRequest{IsPublished: true}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	record, err := h.service.Publish(c.Context(), id, payload.IsPublished, auditActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	message := "grade record published"
	if !payload.IsPublished {
		message = "grade record unpublished"
	}
	return utils.SendSuccess(c, message, record)
}

func (h *GradeRecordHandler) submitModeration(c *fiber.Ctx) error {
	return h.moderation(c, h.service.SubmitModeration, "moderation submitted")
}

func (h *GradeRecordHandler) approveModeration(c *fiber.Ctx) error {
	return h.moderation(c, h.service.ApproveModeration, "moderation approved")
}

func (h *GradeRecordHandler) rejectModeration(c *fiber.Ctx) error {
	return h.moderation(c, h.service.RejectModeration, "moderation rejected")
}

func (h *GradeRecordHandler) submitAppeal(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AppealSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.service.SubmitAppeal(c.Context(), id, payload, auditActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "appeal submitted", record)
}

func (h *GradeRecordHandler) decideAppeal(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AppealDecideRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.service.DecideAppeal(c.Context(), id, payload, auditActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "appeal decided", record)
}

func (h *GradeRecordHandler) transition(c *fiber.Ctx, op func(ctx context.Context, id uint, actor service.AuditActor) (dto.GradeRecordResponse, error), message string) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	record, err := op(c.Context(), id, auditActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, message, record)
}

func (h *GradeRecordHandler) moderation(c *fiber.Ctx, op func(ctx context.Context, id uint, payload dto.ModerationRequest, actor service.AuditActor) (dto.GradeRecordResponse, error), message string) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ModerationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	record, err := op(c.Context(), id, payload, auditActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, message, record)
}

func (h *GradeRecordHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrRecordNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "grade record not found")
	case errors.Is(err, service.ErrDuplicateRecord):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrReferenceNotFound):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrRecordLocked):
		return utils.SendError(c, fiber.StatusLocked, "grade record is locked")
	case errors.Is(err, service.ErrRecordPublished):
		return utils.SendError(c, fiber.StatusConflict, "grade record is published")
	case errors.Is(err, service.ErrVersionConflict):
		return utils.SendError(c, fiber.StatusConflict, "grade record was modified concurrently")
	case errors.Is(err, service.ErrIncompleteRecord):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "grade record has no computed final grade")
	case errors.Is(err, service.ErrStateConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAppealNotAllowed):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrScoreExceedsMax):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *GradeRecordHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
