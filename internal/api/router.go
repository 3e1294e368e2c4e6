package api

import (
	"context"
	"net/http"

	"stock-analyzer/internal/analystagent"
	"stock-analyzer/internal/analyzer"
	"stock-analyzer/web"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
)

func RegisterRoutes(h *server.Hertz, svc *analyzer.Service, agent *analystagent.Agent) {
	h.GET("/", func(_ context.Context, c *app.RequestContext) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
	})

	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(200, map[string]bool{"ok": true})
	})

	h.GET("/api/v1/analyze", func(_ context.Context, c *app.RequestContext) {
		if svc == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "analyzer not configured",
			})
			return
		}
		ticker, err := analyzer.NormalizeTicker(string(c.Query("ticker")))
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		report := svc.Analyze(context.Background(), ticker)
		c.JSON(http.StatusOK, map[string]any{
			"ok":     true,
			"report": report,
		})
	})

	h.GET("/api/v1/fundamentals", func(_ context.Context, c *app.RequestContext) {
		if svc == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "analyzer not configured",
			})
			return
		}
		ticker, err := analyzer.NormalizeTicker(string(c.Query("ticker")))
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		rec, res := svc.GetFundamentals(context.Background(), ticker)
		c.JSON(http.StatusOK, map[string]any{
			"ok":           true,
			"ticker":       ticker,
			"fundamentals": rec,
			"status":       res,
		})
	})

	h.GET("/api/v1/prices", func(_ context.Context, c *app.RequestContext) {
		if svc == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "analyzer not configured",
			})
			return
		}
		ticker, err := analyzer.NormalizeTicker(string(c.Query("ticker")))
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		series, res := svc.GetPrices(context.Background(), ticker)
		c.JSON(http.StatusOK, map[string]any{
			"ok":     true,
			"ticker": ticker,
			"prices": series,
			"status": res,
		})
	})

	h.GET("/api/v1/macro/us10y", func(_ context.Context, c *app.RequestContext) {
		if svc == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "analyzer not configured",
			})
			return
		}
		rate, res := svc.GetMacroRate(context.Background())
		c.JSON(http.StatusOK, map[string]any{
			"ok":     true,
			"macro":  rate,
			"status": res,
		})
	})

	h.POST("/api/v1/analyst/ping", func(_ context.Context, c *app.RequestContext) {
		if agent == nil {
			c.JSON(http.StatusOK, map[string]any{
				"ok":     true,
				"mode":   "fallback",
				"reason": "analyst agent not configured",
			})
			return
		}
		resp, _ := agent.Ping(context.Background())
		c.JSON(http.StatusOK, resp)
	})
}
