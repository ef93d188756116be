package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kotoba-dev/kotoba/internal/store"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleInfo(c *gin.Context) {
	snap := s.config.Snapshot()
	limits := s.compactor().Limits()
	c.JSON(http.StatusOK, gin.H{
		"version": Version,
		"provider": gin.H{
			"type":  snap.Provider.Type,
			"model": snap.Provider.Model,
		},
		"translation": gin.H{
			"source_language": snap.Translation.SourceLanguage,
			"target_language": snap.Translation.TargetLanguage,
		},
		"compaction": gin.H{
			"hard_limit_bytes":    limits.HardLimit,
			"safety_margin_bytes": limits.SafetyMargin,
			"effective_limit":     limits.EffectiveLimit(),
		},
	})
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, errorJSON("Invalid request body: "+err.Error(), "invalid_request_error"))
		return
	}

	session, err := s.store.CreateSession(req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorJSON(err.Error(), "api_error"))
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := s.store.ListSessions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorJSON(err.Error(), "api_error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	err := s.store.DeleteSession(c.Param("id"))
	if errors.Is(err, store.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, errorJSON("Session not found", "not_found_error"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorJSON(err.Error(), "api_error"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetMessages(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := s.store.GetSession(sessionID); err != nil {
		c.JSON(http.StatusNotFound, errorJSON("Session not found", "not_found_error"))
		return
	}

	messages, err := s.store.LoadMessages(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorJSON(err.Error(), "api_error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
