package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/publicidadxacarlos-cell/FinanzaAI/gemini"
	"github.com/publicidadxacarlos-cell/FinanzaAI/goals"
	"github.com/publicidadxacarlos-cell/FinanzaAI/ledger"
	"github.com/publicidadxacarlos-cell/FinanzaAI/notify"
	"github.com/publicidadxacarlos-cell/FinanzaAI/report"
	"github.com/publicidadxacarlos-cell/FinanzaAI/sheets"
	"github.com/publicidadxacarlos-cell/FinanzaAI/syncer"
)

// AI is the slice of the Gemini client the handlers call through,
// mockable in tests the way the outbound http clients are.
type AI interface {
	Categorize(ctx context.Context, description string) (string, error)
	AnalyzeReceipt(ctx context.Context, b64image string) (gemini.Receipt, error)
	Advise(ctx context.Context, history []gemini.Message, message string) (string, error)
	GenerateGoalImage(ctx context.Context, prompt string) (string, error)
}

// Server glues the stores, the sync driver and the AI client behind the
// REST API the web UI talks to. Gemini is left nil when no api key is
// configured; the AI endpoints then answer 503.
type Server struct {
	Ledger        *ledger.Store
	Goals         *goals.Store
	Syncer        *syncer.Syncer
	Gemini        AI
	Notifications *notify.Ring
}

func (s *Server) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(otelgin.Middleware("finanzaai"))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

	api := r.Group("/api")
	api.GET("/transactions", s.FindTransactions)
	api.GET("/transactions/:id", s.FindTransaction)
	api.POST("/transactions", s.CreateTransaction)
	api.PATCH("/transactions/:id", s.UpdateTransaction)
	api.DELETE("/transactions/:id", s.DeleteTransaction)
	api.DELETE("/transactions", s.ClearTransactions)
	api.GET("/summary", s.Summary)
	api.GET("/sync", s.SyncStatus)
	api.POST("/sync", s.StartSync)
	api.GET("/settings", s.GetSettings)
	api.PUT("/settings", s.PutSettings)
	api.GET("/notifications", s.GetNotifications)
	api.GET("/reconcile", s.Reconcile)

	api.POST("/scan", s.ScanReceipt)
	api.POST("/assistant", s.Assistant)

	api.GET("/goals", s.FindGoals)
	api.POST("/goals", s.CreateGoal)
	api.PUT("/goals/:id", s.UpdateGoal)
	api.DELETE("/goals/:id", s.DeleteGoal)
	api.POST("/goals/:id/image", s.GoalImage)

	return r
}

type CreateTransactionInput struct {
	Description string   `json:"description" binding:"required"`
	Amount      *float64 `json:"amount" binding:"required"`
	Category    string   `json:"category"`
}

// GET /api/transactions
func (s *Server) FindTransactions(c *gin.Context) {
	started := time.Now()
	defer func() { log.Trace().Caller().Dur("duration_ms", time.Since(started)).Send() }()

	c.JSON(http.StatusOK, gin.H{"data": s.Ledger.List()})
}

// GET /api/transactions/:id
func (s *Server) FindTransaction(c *gin.Context) {
	t, err := s.Ledger.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": t})
}

// POST /api/transactions
// Creates the record optimistically; a blank category is written as the
// sentinel and backfilled asynchronously once the classifier answers.
func (s *Server) CreateTransaction(c *gin.Context) {
	started := time.Now()
	defer func() { log.Trace().Caller().Dur("duration_ms", time.Since(started)).Send() }()

	var input CreateTransactionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := s.Ledger.Add(input.Description, *input.Amount, input.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Category == "" && s.Gemini != nil {
		go s.backfillCategory(t.ID, t.Description)
	}
	go s.Syncer.SyncOne(context.Background(), t, syncer.ActionCreate)

	c.JSON(http.StatusOK, gin.H{"data": t})
}

// backfillCategory applies the classifier result to whatever record
// currently holds the id; if it was deleted in the interim the result is
// dropped on the floor.
func (s *Server) backfillCategory(id, description string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	category, err := s.Gemini.Categorize(ctx, description)
	if err != nil || category == "" {
		log.Debug().Err(err).Str("id", id).Msg("Classification unavailable, sentinel kept")
		return
	}
	if err := s.Ledger.SetCategory(id, category); err != nil {
		log.Debug().Str("id", id).Msg("Classification lost, record gone")
		return
	}
	if t, err := s.Ledger.Get(id); err == nil {
		s.Syncer.SyncOne(context.Background(), t, syncer.ActionUpdate)
	}
}

// PATCH /api/transactions/:id
// Full replace, not a partial patch.
func (s *Server) UpdateTransaction(c *gin.Context) {
	var t ledger.Transaction
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t.ID = c.Param("id")

	if err := s.Ledger.Update(t); err != nil {
		if err == ledger.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	go s.Syncer.SyncOne(context.Background(), t, syncer.ActionUpdate)

	c.JSON(http.StatusOK, gin.H{"data": t})
}

// DELETE /api/transactions/:id
// Idempotent: deleting an unknown id still answers 200.
func (s *Server) DeleteTransaction(c *gin.Context) {
	id := c.Param("id")

	t, getErr := s.Ledger.Get(id)
	if err := s.Ledger.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if getErr == nil {
		go s.Syncer.SyncOne(context.Background(), t, syncer.ActionDelete)
	}

	c.JSON(http.StatusOK, gin.H{"data": true})
}

// DELETE /api/transactions
func (s *Server) ClearTransactions(c *gin.Context) {
	if err := s.Ledger.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": true})
}

// GET /api/summary
func (s *Server) Summary(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": report.Summarize(s.Ledger.List())})
}

// GET /api/sync
func (s *Server) SyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"syncing": s.Syncer.Syncing()})
}

// POST /api/sync
// Replays the whole ledger to the webhook in the background. 412 asks
// the UI to open settings first.
func (s *Server) StartSync(c *gin.Context) {
	transactions := s.Ledger.List()
	if err := s.Syncer.Start(context.Background(), transactions); err != nil {
		if err == syncer.ErrNotConfigured {
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"count": len(transactions)}})
}

type SettingsInput struct {
	SheetURL string `json:"sheet_url"`
}

// GET /api/settings
func (s *Server) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"sheet_url": s.Syncer.Endpoint()}})
}

// PUT /api/settings
func (s *Server) PutSettings(c *gin.Context) {
	var input SettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Syncer.SetEndpoint(input.SheetURL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"sheet_url": input.SheetURL}})
}

// GET /api/notifications
func (s *Server) GetNotifications(c *gin.Context) {
	items := s.Notifications.Drain()
	if items == nil {
		items = []notify.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// GET /api/reconcile
func (s *Server) Reconcile(c *gin.Context) {
	rep, err := sheets.Reconcile(c.Request.Context(), s.Ledger.List())
	if err != nil {
		if err == sheets.ErrNotConfigured {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rep})
}
