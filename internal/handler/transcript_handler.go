package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/uni-records-api/internal/dto"
	"github.com/noah-isme/uni-records-api/internal/service"
	"github.com/noah-isme/uni-records-api/internal/utils"
)

// TranscriptHandler wires GPA, transcript and graduation endpoints.
type TranscriptHandler struct {
	transcripts service.TranscriptService
	graduation  service.GraduationService
	logger      zerolog.Logger
}

// NewTranscriptHandler constructs the handler.
func NewTranscriptHandler(transcripts service.TranscriptService, graduation service.GraduationService, logger zerolog.Logger) *TranscriptHandler {
	return &TranscriptHandler{
		transcripts: transcripts,
		graduation:  graduation,
		logger:      logger.With().Str("component", "transcript_handler").Logger(),
	}
}

// Register attaches student aggregation endpoints to the router group.
func (h *TranscriptHandler) Register(router fiber.Router) {
	router.Get("/:id/gpa", h.gpa)
	router.Get("/:id/transcript", h.transcript)
	router.Get("/:id/graduation", h.graduationStatus)
}

func (h *TranscriptHandler) gpa(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.transcripts.CalculateGPA(c.Context(), id, gpaFiltersFromQuery(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "gpa calculated", response)
}

func (h *TranscriptHandler) transcript(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	includeAssessments := strings.TrimSpace(c.Query("include_assessments")) == "true"
	response, err := h.transcripts.GenerateTranscript(c.Context(), id, gpaFiltersFromQuery(c), includeAssessments)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "transcript generated", response)
}

func (h *TranscriptHandler) graduationStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.graduation.GetGraduationStatus(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "graduation status evaluated", response)
}

func gpaFiltersFromQuery(c *fiber.Ctx) dto.GPAFilters {
	return dto.GPAFilters{
		AcademicYear:       strings.TrimSpace(c.Query("academic_year")),
		Term:               strings.TrimSpace(c.Query("term")),
		Program:            strings.TrimSpace(c.Query("program")),
		IncludeUnpublished: strings.TrimSpace(c.Query("include_unpublished")) == "true",
		ExcludeIncomplete:  strings.TrimSpace(c.Query("exclude_incomplete")) == "true",
	}
}

func (h *TranscriptHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrProgramNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "program requirements not found")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
