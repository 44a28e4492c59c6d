package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/uni-records-api/internal/service"
	"github.com/noah-isme/uni-records-api/internal/utils"
)

// GradeEventHandler wires grade event endpoints including the websocket
// stream students subscribe to for live grade notifications.
type GradeEventHandler struct {
	service service.GradeEventService
	logger  zerolog.Logger
}

// NewGradeEventHandler constructs the handler.
func NewGradeEventHandler(service service.GradeEventService, logger zerolog.Logger) *GradeEventHandler {
	return &GradeEventHandler{
		service: service,
		logger:  logger.With().Str("component", "grade_event_handler").Logger(),
	}
}

// Register binds grade event routes under the provided router group.
func (h *GradeEventHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
	router.Get("", h.list)
	router.Post("/:id/read", h.markRead)
}

func (h *GradeEventHandler) handleConnection(conn *websocket.Conn) {
	studentID := websocketUserID(conn)
	if studentID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	events, cancel := h.service.Subscribe(studentID)
	defer cancel()

	h.logger.Info().Uint("student_id", studentID).Msg("grade event stream connected")
	defer h.logger.Info().Uint("student_id", studentID).Msg("grade event stream disconnected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to write grade event")
				return
			}
		}
	}
}

func (h *GradeEventHandler) list(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	events, err := h.service.List(c.Context(), studentID, limit, offset)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "grade events retrieved", events)
}

func (h *GradeEventHandler) markRead(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	event, err := h.service.MarkRead(c.Context(), id, studentID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "grade event not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "grade event marked read", event)
}

func websocketUserID(conn *websocket.Conn) uint {
	if value := conn.Locals("user_id"); value != nil {
		switch v := value.(type) {
		case uint:
			return v
		case int:
			if v > 0 {
				return uint(v)
			}
		case float64:
			if v > 0 {
				return uint(v)
			}
		}
	}
	return 0
}
