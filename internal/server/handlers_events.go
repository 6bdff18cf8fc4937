package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
	"github.com/Shvan11/ShwNodApp-sub005/internal/errors"
)

// Event publishing is fire-and-forget: the HTTP layer acks with 202 as soon
// as the event is enqueued, never waiting for fan-out.

type appointmentsChangedBody struct {
	Date string `json:"date"`
}

func (s *Server) handlePublishAppointmentsChanged(c echo.Context) error {
	var body appointmentsChangedBody
	if err := c.Bind(&body); err != nil || body.Date == "" {
		return errors.ValidationError("date is required")
	}
	s.bridge.PublishAppointmentsChanged(body.Date)
	return c.NoContent(http.StatusAccepted)
}

type patientLoadedBody struct {
	ScreenID  string `json:"screenId"`
	PatientID string `json:"patientId"`
	Timepoint string `json:"timepoint"`
}

func (s *Server) handlePublishPatientLoaded(c echo.Context) error {
	var body patientLoadedBody
	if err := c.Bind(&body); err != nil || body.ScreenID == "" || body.PatientID == "" {
		return errors.ValidationError("screenId and patientId are required")
	}
	s.bridge.PublishPatientLoaded(body.ScreenID, body.PatientID, body.Timepoint)
	return c.NoContent(http.StatusAccepted)
}

type patientUnloadedBody struct {
	ScreenID string `json:"screenId"`
}

func (s *Server) handlePublishPatientUnloaded(c echo.Context) error {
	var body patientUnloadedBody
	if err := c.Bind(&body); err != nil || body.ScreenID == "" {
		return errors.ValidationError("screenId is required")
	}
	s.bridge.PublishPatientUnloaded(body.ScreenID)
	return c.NoContent(http.StatusAccepted)
}

type messageStatusBody struct {
	Date   string              `json:"date"`
	Update domain.StatusUpdate `json:"update"`
}

func (s *Server) handlePublishMessageStatus(c echo.Context) error {
	var body messageStatusBody
	if err := c.Bind(&body); err != nil || body.Date == "" {
		return errors.ValidationError("date is required")
	}
	s.bridge.PublishMessageStatus(body.Date, body.Update)
	return c.NoContent(http.StatusAccepted)
}

type broadcastBody struct {
	Role    string          `json:"role"`
	Message domain.Envelope `json:"message"`
}

func (s *Server) handlePublishBroadcast(c echo.Context) error {
	var body broadcastBody
	if err := c.Bind(&body); err != nil || body.Message.Type == "" {
		return errors.ValidationError("message.type is required")
	}
	var role domain.Role
	if body.Role != "" {
		role = domain.ParseRole(body.Role)
	}
	s.bridge.PublishBroadcast(role, body.Message)
	return c.NoContent(http.StatusAccepted)
}
