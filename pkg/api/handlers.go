// Package api exposes the chart capture service over HTTP.
package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sigmapips/chart-capture/pkg/capture"
	"github.com/sigmapips/chart-capture/pkg/model"
)

// Notifier delivers captured charts to a chat. Implemented by the Telegram
// notifier; nil disables delivery.
type Notifier interface {
	SendPhoto(ctx context.Context, chatID string, png []byte, caption string) error
}

// Handler holds the dependencies for the HTTP endpoints.
type Handler struct {
	backend  capture.Backend
	notifier Notifier
}

// NewHandler creates an API handler backed by the given capture backend.
func NewHandler(backend capture.Backend, notifier Notifier) *Handler {
	return &Handler{backend: backend, notifier: notifier}
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/capture-chart", h.CaptureChart)
	r.GET("/chart", h.GetChart)
	r.GET("/health", h.Health)

	return r
}

// CaptureChart handles POST /capture-chart. The response body always carries a
// ChartResult; failures are reported in-band with status "error".
func (h *Handler) CaptureChart(c *gin.Context) {
	var req model.ChartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResult(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResult(err.Error()))
		return
	}

	log.Printf("[API] Capture request: symbol=%s timeframe=%s theme=%s", req.Symbol, req.Timeframe, req.Theme)

	png, err := h.backend.CaptureChart(c.Request.Context(), &req)
	if err != nil {
		log.Printf("[API] ERROR: Capture failed for %s/%s: %v", req.Symbol, req.Timeframe, err)
		c.JSON(http.StatusInternalServerError, model.ErrorResult(fmt.Sprintf("failed to capture chart: %v", err)))
		return
	}

	// Optional Telegram delivery. Delivery failure does not fail the capture;
	// the caller still gets the image in the response.
	if req.ChatID != "" && h.notifier != nil {
		caption := fmt.Sprintf("%s %s", req.Symbol, req.Timeframe)
		if err := h.notifier.SendPhoto(c.Request.Context(), req.ChatID, png, caption); err != nil {
			log.Printf("[API] WARNING: Telegram delivery to chat %s failed: %v", req.ChatID, err)
		}
	}

	c.JSON(http.StatusOK, model.SuccessResult(base64.StdEncoding.EncodeToString(png)))
}

// GetChart handles GET /chart and returns the raw PNG. Intended for direct
// embedding (<img src=...>) where base64 JSON is inconvenient.
func (h *Handler) GetChart(c *gin.Context) {
	req := model.ChartRequest{
		Symbol:    c.Query("symbol"),
		Timeframe: c.Query("timeframe"),
		Theme:     c.Query("theme"),
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResult(err.Error()))
		return
	}

	png, err := h.backend.CaptureChart(c.Request.Context(), &req)
	if err != nil {
		log.Printf("[API] ERROR: Capture failed for %s/%s: %v", req.Symbol, req.Timeframe, err)
		c.JSON(http.StatusInternalServerError, model.ErrorResult(fmt.Sprintf("failed to capture chart: %v", err)))
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// Health handles GET /health. It reports healthy whenever the process accepts
// requests; browser liveness is checked lazily on first capture.
func (h *Handler) Health(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"backend": h.backend.Name(),
	})
}
