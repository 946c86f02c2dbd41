package server

import (
	"net/http"

	"github.com/executehouse/limpopo-connect/internal/realtime"
	"github.com/labstack/echo/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Controller interface {
	Observe(c echo.Context) error
	Unobserve(c echo.Context) error
	ListMessages(c echo.Context) error
	ListThreads(c echo.Context) error
	SendMessage(c echo.Context) error
	RoomStatus(c echo.Context) error
	JoinRoom(c echo.Context) error
	LeaveRoom(c echo.Context) error
	Health(c echo.Context) error
}

type controller struct {
	engine *realtime.Engine
}

func NewController(engine *realtime.Engine) Controller {
	return &controller{engine: engine}
}

// httpStatus maps the typed error taxonomy onto response codes. Anything
// untyped is a backend/transport failure.
func httpStatus(err error) int {
	switch status.Code(err) {
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (h *controller) Observe(c echo.Context) error {
	roomID := c.Param("room_id")
	if err := h.engine.ObserveRoom(c.Request().Context(), roomID); err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, h.engine.Status(roomID))
}

func (h *controller) Unobserve(c echo.Context) error {
	roomID := c.Param("room_id")
	removed := h.engine.Unobserve(roomID)
	return c.JSON(http.StatusOK, map[string]any{
		"room_id": roomID,
		"removed": removed,
	})
}

func (h *controller) ListMessages(c echo.Context) error {
	roomID := c.Param("room_id")
	return c.JSON(http.StatusOK, map[string]any{
		"messages": h.engine.Messages(roomID),
	})
}

func (h *controller) ListThreads(c echo.Context) error {
	roomID := c.Param("room_id")
	return c.JSON(http.StatusOK, map[string]any{
		"threads": h.engine.Threads(roomID),
	})
}

type sendMessageRequest struct {
	Body     string  `json:"body" validate:"required"`
	ThreadID *string `json:"thread_id"`
}

func (h *controller) SendMessage(c echo.Context) error {
	roomID := c.Param("room_id")

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.engine.Send(c.Request().Context(), roomID, req.Body, req.ThreadID); err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}

	// accepted, not created: the message materializes in the view once the
	// confirmed insert event arrives on the channel
	return c.JSON(http.StatusAccepted, map[string]string{
		"status": "accepted",
	})
}

func (h *controller) RoomStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.Status(c.Param("room_id")))
}

func (h *controller) JoinRoom(c echo.Context) error {
	roomID := c.Param("room_id")
	if err := h.engine.Join(c.Request().Context(), roomID); err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "joined"})
}

func (h *controller) LeaveRoom(c echo.Context) error {
	roomID := c.Param("room_id")
	if err := h.engine.Leave(c.Request().Context(), roomID); err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "left"})
}

func (h *controller) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "limpopo-connect",
	})
}
