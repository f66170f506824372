package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"exchange_profitbook/internal/app"
	"exchange_profitbook/internal/domain/ledger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Deps are the services the API exposes.
type Deps struct {
	Cycles       *app.CycleService
	Transactions *app.TransactionService
	Ledger       *app.LedgerService
	Auth         *Authenticator
	Logger       *logrus.Entry
}

type handler struct {
	cycles       *app.CycleService
	transactions *app.TransactionService
	ledger       *app.LedgerService
	logger       *logrus.Entry
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(d Deps) *gin.Engine {
	h := &handler{
		cycles:       d.Cycles,
		transactions: d.Transactions,
		ledger:       d.Ledger,
		logger:       d.Logger.WithField("component", "http"),
	}

	r := gin.New()
	// ClientIP is the peer address; forwarded headers are not trusted.
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery(), requestLogger(h.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/api/auth")
	auth.POST("/login", d.Auth.login)
	auth.POST("/logout", d.Auth.logout)

	api := r.Group("/api/transactions", d.Auth.Middleware())
	api.GET("", h.listTransactions)
	api.POST("", h.createTransaction)
	api.GET("/ledger", h.ledgerRows)
	api.GET("/insights", h.insights)
	api.GET("/summaries", h.summaries)

	api.GET("/cycles", h.listCycles)
	api.POST("/cycles", h.createCycle)
	api.PATCH("/cycles/:id", h.renameCycle)
	api.DELETE("/cycles/:id", h.deleteCycle)
	api.POST("/cycles/:id/reset", h.resetCycle)
	api.POST("/cycles/:id/undo", h.undoLast)
	api.GET("/cycles/:id/summary", h.cycleSummary)

	r.POST("/api/simulate", d.Auth.Middleware(), h.simulate)

	return r
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Debug("Request served")
		}
	}
}

// writeError maps ledger error kinds to status codes. Unclassified errors are
// logged and answered with a generic 500.
func (h *handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrInsufficientBalance):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrConflict):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("Unhandled error")
		msg = "Internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// strictQuery reports whether ?strict asks for exact cost basis only.
func strictQuery(c *gin.Context) bool {
	strict, _ := strconv.ParseBool(c.Query("strict"))
	return strict
}

func (h *handler) cycleID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid cycle id"})
		return uuid.Nil, false
	}
	return id, true
}

// --- Cycles ---

func (h *handler) listCycles(c *gin.Context) {
	cycles, err := h.ledger.ListCycles(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]cycleResponse, 0, len(cycles))
	for _, cycle := range cycles {
		out = append(out, newCycleResponse(cycle))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) createCycle(c *gin.Context) {
	var req cycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Cycle name is required"})
		return
	}
	cycle, err := h.cycles.CreateOrGetCycle(c.Request.Context(), req.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCycleResponse(cycle))
}

func (h *handler) renameCycle(c *gin.Context) {
	id, ok := h.cycleID(c)
	if !ok {
		return
	}
	var req cycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Cycle name is required"})
		return
	}
	cycle, err := h.cycles.RenameCycle(c.Request.Context(), id, req.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCycleResponse(cycle))
}

func (h *handler) deleteCycle(c *gin.Context) {
	id, ok := h.cycleID(c)
	if !ok {
		return
	}
	if err := h.cycles.DeleteCycle(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handler) resetCycle(c *gin.Context) {
	id, ok := h.cycleID(c)
	if !ok {
		return
	}
	removed, err := h.cycles.ResetCycle(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deletedTransactions": removed})
}

func (h *handler) undoLast(c *gin.Context) {
	id, ok := h.cycleID(c)
	if !ok {
		return
	}
	deleted, err := h.cycles.UndoLastTransaction(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deletedTransactionId": deleted})
}

func (h *handler) cycleSummary(c *gin.Context) {
	id, ok := h.cycleID(c)
	if !ok {
		return
	}
	summary, err := h.ledger.CycleSummary(c.Request.Context(), id)
	if err == nil && strictQuery(c) {
		err = app.RequireExact(summary)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSummaryResponse(summary))
}

func (h *handler) summaries(c *gin.Context) {
	summaries, err := h.ledger.Summaries(c.Request.Context())
	if err == nil && strictQuery(c) {
		err = app.RequireExact(summaries...)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, newSummaryResponse(s))
	}
	c.JSON(http.StatusOK, out)
}

// --- Transactions ---

func (h *handler) listTransactions(c *gin.Context) {
	txs, err := h.ledger.ListTransactions(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTransactionResponses(txs))
}

// createTransaction answers with the created row, or with both legs for a settlement.
func (h *handler) createTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.writeError(c, err)
		return
	}
	created, err := h.transactions.Create(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if len(created) == 1 {
		c.JSON(http.StatusCreated, newTransactionResponse(created[0]))
		return
	}
	c.JSON(http.StatusCreated, newTransactionResponses(created))
}

func (h *handler) ledgerRows(c *gin.Context) {
	rows, err := h.ledger.Ledger(c.Request.Context(), c.Query("cycle"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLedgerRows(rows))
}

func (h *handler) insights(c *gin.Context) {
	points, err := h.ledger.Insights(c.Request.Context(), c.Query("cycle"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newInsights(points))
}

// --- Calculator ---

// simulate runs the what-if loop calculator. Nothing is stored.
func (h *handler) simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	params, err := req.toParams()
	if err != nil {
		h.writeError(c, err)
		return
	}
	sim, err := ledger.SimulateLoops(params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSimulationResponse(sim))
}
