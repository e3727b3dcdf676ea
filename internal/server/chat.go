package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// genericError is the only failure body the chat endpoint produces;
// underlying causes stay in the logs.
const genericError = "Failed to generate response"

type chatRequest struct {
	Message   string `json:"message"`
	WebSearch bool   `json:"webSearch"`
	ThreadID  string `json:"threadId"`
}

type chatResponse struct {
	Reply    string `json:"reply"`
	ThreadID string `json:"threadId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse chat request")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: genericError})
	}

	// A missing thread id starts a new thread; the generated id is
	// echoed back so the client can continue it.
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	reply, err := s.generator.Generate(c.Request().Context(), threadID, req.Message, req.WebSearch)
	if err != nil {
		s.logger.Error().Err(err).Str("threadId", threadID).Msg("Generate failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: genericError})
	}

	return c.JSON(http.StatusOK, chatResponse{Reply: reply, ThreadID: threadID})
}

func (s *Server) handleLanding(c echo.Context) error {
	return c.HTML(http.StatusOK, "<h1>Hello World</h1>")
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
