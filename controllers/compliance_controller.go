package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	compliance "github.com/phillip/levy-collector-go/compliance"
	config "github.com/phillip/levy-collector-go/config"
	store "github.com/phillip/levy-collector-go/store"
)

// unpaidTraders recomputes the unpaid list from the full history.
func unpaidTraders(c *gin.Context, cfg *config.Config) ([]compliance.Trader, bool) {
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	txs, err := cfg.Store.ListTransactions(ctx, store.Filter{})
	if err != nil {
		serverError(c, "failed to fetch transactions", err)
		return nil, false
	}
	return compliance.Unpaid(txs, cfg.Now()), true
}

// ---------------- UNPAID ----------------
func ListUnpaid(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		traders, ok := unpaidTraders(c, cfg)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"traders":        traders,
			"count":          len(traders),
			"threshold_days": compliance.UnpaidAfterDays,
		})
	}
}

// ---------------- QUOTE ----------------
// QuoteReminders prices a batch of count messages, or one per listed phone
// that is on the unpaid list.
func QuoteReminders(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Channel string   `json:"channel"`
			Count   int      `json:"count"`
			Phones  []string `json:"phones"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		channel, err := compliance.ParseChannel(input.Channel)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if len(input.Phones) > 0 {
			// price exactly what SendReminders would send
			traders, ok := unpaidTraders(c, cfg)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, compliance.QuoteFor(channel, len(compliance.SelectByPhone(traders, input.Phones))))
			return
		}
		if input.Count < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must not be negative"})
			return
		}
		c.JSON(http.StatusOK, compliance.QuoteFor(channel, input.Count))
	}
}

// ---------------- SEND ----------------
// SendReminders messages the selected unpaid traders, once per phone. Phones
// that are not on the current unpaid list are ignored.
func SendReminders(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Channel  string   `json:"channel"`
			Template string   `json:"template"`
			Phones   []string `json:"phones" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		channel, err := compliance.ParseChannel(input.Channel)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		traders, ok := unpaidTraders(c, cfg)
		if !ok {
			return
		}
		selected := compliance.SelectByPhone(traders, input.Phones)
		if len(selected) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no unpaid traders selected"})
			return
		}

		sender := cfg.Sender
		if sender == nil {
			sender = compliance.LogSender{}
		}

		ctx, cancel := requestContext(c, 60*time.Second)
		defer cancel()

		rep := compliance.Dispatch(ctx, sender, channel, input.Template, selected)
		cfg.Metrics.Reminders(string(channel), rep.Sent, rep.Failed)
		c.JSON(http.StatusOK, rep)
	}
}
