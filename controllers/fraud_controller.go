package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/levy-collector-go/config"
	fraud "github.com/phillip/levy-collector-go/fraud"
)

// ---------------- SCAN ----------------
// ScanFraud runs the heuristics over every stored transaction.
func ScanFraud(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		txs, ok := filtered(c, cfg)
		if !ok {
			return
		}

		res := fraud.Scan(txs)
		cfg.Metrics.FraudAlerts(res.High, res.Medium, res.Low)
		c.JSON(http.StatusOK, res)
	}
}
