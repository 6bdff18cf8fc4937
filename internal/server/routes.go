package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// The single multiplexed real-time endpoint. Authentication happens
	// upstream at the reverse proxy.
	s.echo.GET("/ws", s.handleWebSocket)

	// Internal publish points for business-layer collaborators, one per
	// domain event name. Fire-and-forget: 202 on enqueue.
	events := s.echo.Group("/internal/events")
	events.POST("/appointment-state-changed", s.handlePublishAppointmentsChanged)
	events.POST("/patient-loaded", s.handlePublishPatientLoaded)
	events.POST("/patient-unloaded", s.handlePublishPatientUnloaded)
	events.POST("/wa-message-status", s.handlePublishMessageStatus)
	events.POST("/broadcast-request", s.handlePublishBroadcast)
}
