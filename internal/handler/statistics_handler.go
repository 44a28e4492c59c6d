package handler

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/uni-records-api/internal/dto"
	"github.com/noah-isme/uni-records-api/internal/service"
	"github.com/noah-isme/uni-records-api/internal/utils"
)

// StatisticsHandler wires cohort statistics and honor roll endpoints.
type StatisticsHandler struct {
	service   service.StatisticsService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewStatisticsHandler constructs the handler.
func NewStatisticsHandler(service service.StatisticsService, validator *validator.Validate, logger zerolog.Logger) *StatisticsHandler {
	return &StatisticsHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "statistics_handler").Logger(),
	}
}

// Register attaches statistics endpoints to the router group.
func (h *StatisticsHandler) Register(router fiber.Router) {
	router.Get("/classes/:courseId", h.classStatistics)
	router.Get("/departments/:departmentId", h.departmentStatistics)
	router.Get("/sections/:section", h.sectionResults)
	router.Get("/results", h.resultsByYearAndSemester)
	router.Get("/honor-roll", h.honorRoll)
}

func statisticsFiltersFromQuery(c *fiber.Ctx) service.StatisticsFilters {
	return service.StatisticsFilters{
		Term:         strings.TrimSpace(c.Query("term")),
		AcademicYear: strings.TrimSpace(c.Query("academic_year")),
	}
}

func (h *StatisticsHandler) classStatistics(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	stats, err := h.service.GetClassStatistics(c.Context(), courseID, statisticsFiltersFromQuery(c))
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "class statistics computed", stats)
}

func (h *StatisticsHandler) departmentStatistics(c *fiber.Ctx) error {
	departmentID, err := parseUintParam(c, "departmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	stats, err := h.service.GetDepartmentStatistics(c.Context(), departmentID, statisticsFiltersFromQuery(c))
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "department statistics computed", stats)
}

func (h *StatisticsHandler) sectionResults(c *fiber.Ctx) error {
	section := strings.TrimSpace(c.Params("section"))
	if section == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "section required")
	}

	stats, err := h.service.GetSectionResults(c.Context(), section, statisticsFiltersFromQuery(c))
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "section results computed", stats)
}

func (h *StatisticsHandler) resultsByYearAndSemester(c *fiber.Ctx) error {
	year, err := parseQueryInt(c, "year")
	if err != nil || year <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "valid year required")
	}
	semester, err := parseQueryInt(c, "semester")
	if err != nil || semester <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "valid semester required")
	}

	stats, err := h.service.GetResultsByYearAndSemester(c.Context(), year, semester, statisticsFiltersFromQuery(c))
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "results computed", stats)
}

func (h *StatisticsHandler) honorRoll(c *fiber.Ctx) error {
	req := dto.HonorRollRequest{
		RollType:     strings.TrimSpace(c.Query("roll_type")),
		AcademicYear: strings.TrimSpace(c.Query("academic_year")),
		Term:         strings.TrimSpace(c.Query("term")),
	}

	if raw := strings.TrimSpace(c.Query("min_gpa")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid min_gpa")
		}
		req.MinGPA = value
	}
	if raw := strings.TrimSpace(c.Query("min_credits")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid min_credits")
		}
		req.MinCredits = value
	}

	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	roll, err := h.service.GetHonorRoll(c.Context(), req)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "honor roll computed", roll)
}

func (h *StatisticsHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
