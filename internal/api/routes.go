package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/mev-inspect-engine/internal/engine"
	"github.com/rawblock/mev-inspect-engine/internal/feed"
	"github.com/rawblock/mev-inspect-engine/internal/metrics"
	"github.com/rawblock/mev-inspect-engine/internal/shadow"
	"github.com/rawblock/mev-inspect-engine/internal/storage"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// maxScanBlocks caps the block range for a single scan job to prevent
// runaway resource exhaustion from unconstrained requests.
const maxScanBlocks uint64 = 50_000

type APIHandler struct {
	store  storage.Store
	wsHub  *Hub
	feed   *feed.Feed
	engine *engine.Engine
	shadow *shadow.ShadowRunner
}

// SetupRouter wires the bundle-query, scan-trigger, and live-alert
// endpoints. store/feed may be nil in a classification-only deployment
// (no HTTP surface needed); engine is only reported by /health. shadowRunner
// may be nil if no shadow comparison is configured for this deployment,
// in which case /shadow/drift reports unavailable.
func SetupRouter(store storage.Store, f *feed.Feed, eng *engine.Engine, wsHub *Hub, shadowRunner *shadow.ShadowRunner) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{store: store, wsHub: wsHub, feed: f, engine: eng, shadow: shadowRunner}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
		pub.GET("/bundles", handler.handleListBundles)
		pub.GET("/bundles/eoa/:eoa", handler.handleBundlesByEOA)
		pub.GET("/scan/progress", handler.handleScanProgress)
		pub.GET("/shadow/drift", handler.handleShadowDrift)
		pub.POST("/backtest", handler.handleBacktest)
	}

	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	// /scan triggers a potentially large background backfill, rate-limit it.
	auth.Use(NewRateLimiter(30, 5).Middleware())
	{
		auth.POST("/scan", handler.handleStartScan)
	}

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "operational",
		"engine":      "mev-inspect-engine",
		"storeReady":  h.store != nil,
		"feedReady":   h.feed != nil,
		"engineReady": h.engine != nil,
	})
}

// handleListBundles returns persisted bundle headers over a block range.
// GET /api/v1/bundles?fromBlock=1&toBlock=100
func (h *APIHandler) handleListBundles(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage not configured"})
		return
	}
	fromBlock, err := strconv.ParseUint(c.DefaultQuery("fromBlock", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fromBlock"})
		return
	}
	toBlock, err := strconv.ParseUint(c.DefaultQuery("toBlock", "0"), 10, 64)
	if err != nil || toBlock < fromBlock {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid toBlock"})
		return
	}

	bundles, err := h.store.MevBundles(c.Request.Context(), fromBlock, toBlock)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch bundles", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bundles, "count": len(bundles)})
}

// handleBundlesByEOA returns the most recent bundles attributed to a
// searcher EOA. GET /api/v1/bundles/eoa/:eoa?limit=50
func (h *APIHandler) handleBundlesByEOA(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage not configured"})
		return
	}
	eoa, err := models.AddressFromHex(c.Param("eoa"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid eoa address"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	bundles, err := h.store.MevBundlesByEOA(c.Request.Context(), eoa, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch bundles", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bundles, "count": len(bundles)})
}

// handleStartScan launches a historical block backfill in the background.
// POST /api/v1/scan { "startHeight": 18000000, "endHeight": 18000100 }
func (h *APIHandler) handleStartScan(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "block feed not initialized"})
		return
	}

	var req struct {
		StartHeight uint64 `json:"startHeight"`
		EndHeight   uint64 `json:"endHeight"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body, expected {startHeight, endHeight}"})
		return
	}
	if req.EndHeight < req.StartHeight {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid block range"})
		return
	}
	if req.EndHeight-req.StartHeight > maxScanBlocks {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "block range too large",
			"maxBlocks": maxScanBlocks,
			"hint":      "split into multiple smaller requests",
		})
		return
	}

	// The scan outlives this request, so it is not bound to the request context.
	h.feed.ScanRange(context.Background(), req.StartHeight, req.EndHeight)

	c.JSON(http.StatusOK, gin.H{
		"status":      "scan_started",
		"startHeight": req.StartHeight,
		"endHeight":   req.EndHeight,
		"totalBlocks": req.EndHeight - req.StartHeight + 1,
	})
}

// handleScanProgress returns the current progress of the block feed.
func (h *APIHandler) handleScanProgress(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "block feed not initialized"})
		return
	}
	c.JSON(http.StatusOK, h.feed.Progress())
}

// handleShadowDrift reports the divergence rate between the production
// acceptance thresholds and the configured experimental shadow config
// over every bundle evaluated since the shadow runner's snapshot began.
// GET /api/v1/shadow/drift
func (h *APIHandler) handleShadowDrift(c *gin.Context) {
	if h.shadow == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shadow comparison not configured"})
		return
	}
	total, divergences, avgDelta, err := h.shadow.GenerateDriftReport(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate drift report", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"totalRuns":          total,
		"divergences":        divergences,
		"avgDeltaConfidence": avgDelta,
	})
}

// handleBacktest scores a hand-labeled backtest corpus against its
// predicted classifications, reporting per-type precision/recall plus an
// overall classification-agreement score.
// POST /api/v1/backtest { "rows": [{"predicted": 1, "groundTruth": 1}, ...] }
func (h *APIHandler) handleBacktest(c *gin.Context) {
	var req struct {
		Rows []struct {
			Predicted   models.MevType `json:"predicted"`
			GroundTruth models.MevType `json:"groundTruth"`
		} `json:"rows"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body, expected {rows: [{predicted, groundTruth}]}"})
		return
	}
	if len(req.Rows) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rows must not be empty"})
		return
	}

	rows := make([]metrics.BacktestRow, len(req.Rows))
	typesSeen := make(map[models.MevType]bool)
	for i, row := range req.Rows {
		rows[i] = metrics.BacktestRow{Predicted: row.Predicted, GroundTruth: row.GroundTruth}
		typesSeen[row.Predicted] = true
		typesSeen[row.GroundTruth] = true
	}

	perType := make(map[string]gin.H, len(typesSeen))
	for t := range typesSeen {
		precision, recall := metrics.PrecisionRecall(rows, t)
		perType[t.String()] = gin.H{"precision": precision, "recall": recall}
	}

	c.JSON(http.StatusOK, gin.H{
		"rowCount":                len(rows),
		"perType":                 perType,
		"classificationAgreement": metrics.ClassificationAgreement(rows),
	})
}

// BroadcastBundleAlert returns the alertFunc callback wired into
// engine.New: every accepted bundle is pushed to connected websocket
// clients as a JSON "mev_alert" event.
func BroadcastBundleAlert(wsHub *Hub) func(engine.Alert) {
	return func(alert engine.Alert) {
		payload := gin.H{
			"type":  "mev_alert",
			"alert": alert,
		}
		alertBytes, err := json.Marshal(payload)
		if err != nil {
			log.Printf("[api] failed to marshal mev alert: %v", err)
			return
		}
		wsHub.Broadcast(alertBytes)
		log.Printf("[api] %s bundle at block %d tx %d: $%s profit", alert.MevType, alert.BlockNumber, alert.TxIndex, alert.ProfitUsd.String())
	}
}
