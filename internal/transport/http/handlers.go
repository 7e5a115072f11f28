package apihttp

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"alphadesk/internal/broker"
	"alphadesk/internal/decision"
	"alphadesk/internal/engine"
	"alphadesk/internal/executor"
	"alphadesk/internal/ledger"
	"alphadesk/internal/logger"
	"alphadesk/internal/market"
	"alphadesk/internal/performance"
	"alphadesk/internal/report"
)

type handlers struct {
	engine   *engine.Engine
	registry *decision.Registry
	ledger   *ledger.Store
	perf     *performance.Tracker
	reports  *report.Store
	loc      *time.Location
}

func (h *handlers) register(g *gin.RouterGroup) {
	g.GET("/portfolio", h.portfolio)
	g.GET("/positions", h.positions)
	g.GET("/trades", h.trades)
	g.GET("/signals", h.signals)
	g.GET("/performance", h.performance)
	g.GET("/performance/chart", h.performanceChart)
	g.GET("/market-status", h.marketStatus)
	g.GET("/models", h.models)
	g.GET("/reports", h.reportList)
	g.GET("/reports/:date", h.reportByDate)
	g.POST("/manual-trade", h.manualTrade)
	g.POST("/run-strategy", h.runStrategy)
}

func (h *handlers) portfolio(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Portfolio(c.Request.Context()))
}

func (h *handlers) positions(c *gin.Context) {
	positions, err := h.engine.Positions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if positions == nil {
		positions = []broker.Position{}
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (h *handlers) trades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if symbol := strings.TrimSpace(c.Query("symbol")); symbol != "" {
		c.JSON(http.StatusOK, gin.H{"trades": orEmptyTrades(h.ledger.BySymbol(symbol))})
		return
	}
	if start, end, ok := dateRange(c); ok {
		c.JSON(http.StatusOK, gin.H{"trades": orEmptyTrades(h.ledger.ByDateRange(start, end))})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": orEmptyTrades(h.ledger.Recent(limit))})
}

func (h *handlers) signals(c *gin.Context) {
	result := h.engine.LastResult()
	if result == nil {
		c.JSON(http.StatusOK, gin.H{"signals": []report.Signal{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trace_id": result.TraceID,
		"run_at":   result.StartedAt,
		"signals":  result.Signals,
		"skips":    result.Skips,
	})
}

func (h *handlers) performance(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))
	metrics := h.perf.Compute()
	summary := h.ledger.Summarize()
	dayPnL, dayPnLPct := h.perf.DailyPnL()
	c.JSON(http.StatusOK, gin.H{
		"metrics":     metrics,
		"day_pnl":     dayPnL,
		"day_pnl_pct": dayPnLPct,
		"trade_summary": gin.H{
			"total_trades":  summary.TotalTrades,
			"buy_count":     summary.BuyCount,
			"sell_count":    summary.SellCount,
			"win_rate":      summary.WinRate,
			"avg_pnl":       summary.AvgPnL,
			"profit_factor": renderProfitFactor(summary.ProfitFactor),
		},
		"equity_curve": h.perf.EquityCurve(days),
	})
}

// performanceChart serves the equity curve as a self-contained HTML page.
func (h *handlers) performanceChart(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "90"))
	curve := h.perf.EquityCurve(days)
	if len(curve) == 0 {
		c.String(http.StatusOK, "no equity history yet")
		return
	}

	dates := make([]string, 0, len(curve))
	values := make([]opts.LineData, 0, len(curve))
	for _, p := range curve {
		dates = append(dates, p.Timestamp.In(h.loc).Format("2006-01-02"))
		values = append(values, opts.LineData{Value: p.Value})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Equity Curve"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "520px"}),
	)
	line.SetXAxis(dates).
		AddSeries("equity", values).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := line.Render(c.Writer); err != nil {
		logger.Warnf("chart render failed: %v", err)
	}
}

func (h *handlers) marketStatus(c *gin.Context) {
	c.JSON(http.StatusOK, market.SessionStatus(time.Now(), h.loc))
}

func (h *handlers) models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"groups": h.registry.Info()})
}

func (h *handlers) reportList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	reports, err := h.reports.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (h *handlers) reportByDate(c *gin.Context) {
	rep, found, err := h.reports.Get(c.Request.Context(), c.Param("date"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report for date"})
		return
	}
	c.JSON(http.StatusOK, rep)
}

type manualTradeRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Action   string `json:"action" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required"`
}

func (h *handlers) manualTrade(c *gin.Context) {
	var req manualTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.engine.ManualTrade(c.Request.Context(), req.Symbol, req.Action, req.Quantity)
	if err != nil {
		status := http.StatusBadGateway
		if isInvalidOrder(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trade": rec})
}

func (h *handlers) runStrategy(c *gin.Context) {
	result, err := h.engine.RunCycle(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case isRunInProgress(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func dateRange(c *gin.Context) (start, end time.Time, ok bool) {
	startStr := strings.TrimSpace(c.Query("start"))
	endStr := strings.TrimSpace(c.Query("end"))
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	// inclusive end-of-day bound
	end = end.Add(24*time.Hour - time.Nanosecond)
	return start, end, true
}

// renderProfitFactor keeps the JSON encodable: +Inf becomes a string.
func renderProfitFactor(v float64) any {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return v
}

func orEmptyTrades(trades []ledger.TradeRecord) []ledger.TradeRecord {
	if trades == nil {
		return []ledger.TradeRecord{}
	}
	return trades
}

func isRunInProgress(err error) bool {
	return errors.Is(err, engine.ErrRunInProgress)
}

func isInvalidOrder(err error) bool {
	return errors.Is(err, executor.ErrExecutionFailed)
}
