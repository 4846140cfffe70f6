package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/notsingle/internal/api/auth"
	"github.com/notsingle/internal/cycle"
	"github.com/notsingle/internal/relationships"
	"github.com/notsingle/pkg/models"
)

// HumanMessageRequest is the body of POST /api/conversations/:matchId/message
type HumanMessageRequest struct {
	PersonaID string `json:"persona_id"`
	Text      string `json:"text"`
}

// RunAgentResponse wraps the applied decision; Decision is null for a no-op cycle
type RunAgentResponse struct {
	PersonaID string           `json:"persona_id"`
	Decision  *models.Decision `json:"decision"`
}

func (s *Server) dispatch(c echo.Context) error {
	report, err := s.deps.Dispatcher.Dispatch(c.Request().Context(), s.deps.Now())
	if err != nil {
		log.Error().Err(err).Msg("dispatch failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "dispatch failed"})
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) runAgent(c echo.Context) error {
	personaID := strings.TrimSpace(c.Param("personaId"))
	if personaID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "persona id is required"})
	}

	decision, err := s.deps.Runner.RunCycle(c.Request().Context(), personaID, 1)
	if err != nil {
		status := cycleStatus(err)
		log.Warn().Err(err).Str("persona_id", personaID).Int("status", status).Msg("agent run failed")
		return c.JSON(status, map[string]string{
			"error": err.Error(),
			"kind":  string(cycle.KindOf(err)),
		})
	}
	return c.JSON(http.StatusOK, RunAgentResponse{PersonaID: personaID, Decision: decision})
}

func cycleStatus(err error) int {
	switch cycle.KindOf(err) {
	case cycle.KindNotFound:
		return http.StatusNotFound
	case cycle.KindCredentialInvalid:
		return http.StatusUnauthorized
	case cycle.KindModelInvocation, cycle.KindDecisionParse:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) getConversation(c echo.Context) error {
	conv, err := s.deps.Relationships.ReleasedConversation(c.Request().Context(), c.Param("matchId"), s.deps.Now())
	if err != nil {
		return relationshipError(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

func (s *Server) postHumanMessage(c echo.Context) error {
	var req HumanMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.PersonaID) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "persona_id is required"})
	}

	msg, err := s.deps.Relationships.InjectHumanMessage(
		c.Request().Context(), auth.UserID(c), c.Param("matchId"), req.PersonaID, req.Text, s.deps.Now())
	if err != nil {
		return relationshipError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (s *Server) blockMatch(c echo.Context) error {
	m, err := s.deps.Relationships.BlockMatch(c.Request().Context(), auth.UserID(c), c.Param("matchId"))
	if err != nil {
		return relationshipError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

func relationshipError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, relationships.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, relationships.ErrForbidden):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, relationships.ErrDailyLimit):
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	case errors.Is(err, relationships.ErrEmptyText):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	log.Error().Err(err).Msg("relationship operation failed")
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
