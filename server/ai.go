package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/publicidadxacarlos-cell/FinanzaAI/gemini"
	"github.com/publicidadxacarlos-cell/FinanzaAI/goals"
	"github.com/publicidadxacarlos-cell/FinanzaAI/ledger"
	"github.com/publicidadxacarlos-cell/FinanzaAI/syncer"
)

type ScanInput struct {
	Image string `json:"image" binding:"required"`
}

// POST /api/scan
// Extracts a transaction from a receipt photo. Missing fields fall back
// here, at the call site: today's date, a generic description, the
// shopping category. The result is always an expense.
func (s *Server) ScanReceipt(c *gin.Context) {
	started := time.Now()
	defer func() { log.Trace().Caller().Dur("duration_ms", time.Since(started)).Send() }()

	if s.Gemini == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gemini not configured"})
		return
	}

	var input ScanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Accept raw base64 or a full data URL.
	image := input.Image
	if idx := strings.Index(image, ","); idx != -1 {
		image = image[idx+1:]
	}

	receipt, err := s.Gemini.AnalyzeReceipt(c.Request.Context(), image)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	date := receipt.Date
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	description := receipt.Merchant
	if description == "" {
		description = "Recibo escaneado"
	}
	category := receipt.Category
	if category == "" {
		category = "Compras"
	}

	t, err := s.Ledger.AddTyped(date, description, receipt.Total, category, ledger.Expense)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	go s.Syncer.SyncOne(context.Background(), t, syncer.ActionCreate)

	c.JSON(http.StatusOK, gin.H{"data": t})
}

type AssistantInput struct {
	Message string           `json:"message" binding:"required"`
	History []gemini.Message `json:"history"`
}

// POST /api/assistant
func (s *Server) Assistant(c *gin.Context) {
	if s.Gemini == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gemini not configured"})
		return
	}

	var input AssistantInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := s.Gemini.Advise(c.Request.Context(), input.History, input.Message)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"reply": reply}})
}

type CreateGoalInput struct {
	Title        string  `json:"title" binding:"required"`
	Description  string  `json:"description"`
	TargetAmount float64 `json:"targetAmount"`
}

// GET /api/goals
func (s *Server) FindGoals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.Goals.List()})
}

// POST /api/goals
func (s *Server) CreateGoal(c *gin.Context) {
	var input CreateGoalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := s.Goals.Add(input.Title, input.Description, input.TargetAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": g})
}

// PUT /api/goals/:id
func (s *Server) UpdateGoal(c *gin.Context) {
	var g goals.Goal
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g.ID = c.Param("id")
	if err := s.Goals.Update(g); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": g})
}

// DELETE /api/goals/:id
func (s *Server) DeleteGoal(c *gin.Context) {
	if err := s.Goals.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": true})
}

type GoalImageInput struct {
	Prompt string `json:"prompt" binding:"required"`
}

// POST /api/goals/:id/image
// Renders a visualization for the goal and attaches it.
func (s *Server) GoalImage(c *gin.Context) {
	if s.Gemini == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gemini not configured"})
		return
	}

	var input GoalImageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	url, err := s.Gemini.GenerateGoalImage(c.Request.Context(), input.Prompt)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if err := s.Goals.SetImage(c.Param("id"), url); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"imageUrl": url}})
}
