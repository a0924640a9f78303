package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/levy-collector-go/config"
	middleware "github.com/phillip/levy-collector-go/middleware"
	models "github.com/phillip/levy-collector-go/models"
	store "github.com/phillip/levy-collector-go/store"
	utils "github.com/phillip/levy-collector-go/utils"
)

type transactionInput struct {
	PayerName   string          `json:"payer_name"`
	PayerPhone  string          `json:"payer_phone"`
	Amount      json.RawMessage `json:"amount"` // number or numeric string
	PaymentType string          `json:"payment_type"`
	Description string          `json:"description"`
}

func (in transactionInput) amountText() string {
	raw := strings.TrimSpace(string(in.Amount))
	if raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(in.Amount, &s); err == nil {
		return s
	}
	return raw
}

func receiptPath(id string) string {
	return "/transactions/" + id + "/receipt"
}

// ---------------- CREATE ----------------
func CreateTransaction(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input transactionInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		// --- Required fields ---
		amountText := strings.TrimSpace(input.amountText())
		if strings.TrimSpace(input.PayerName) == "" || strings.TrimSpace(input.PayerPhone) == "" ||
			amountText == "" || strings.TrimSpace(input.PaymentType) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payer_name, payer_phone, amount and payment_type are required"})
			return
		}

		amount, err := utils.ParseAmount(amountText)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a number"})
			return
		}
		pt := models.PaymentType(strings.TrimSpace(input.PaymentType))
		if !pt.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment_type"})
			return
		}

		// --- Save ---
		tx := models.Transaction{
			PayerName:   input.PayerName,
			PayerPhone:  input.PayerPhone,
			Amount:      amount,
			PaymentType: pt,
			Description: input.Description,
			Collector:   middleware.CurrentEmail(c),
			CreatedAt:   cfg.Now().UTC(),
		}
		tx.Normalize()

		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		if err := cfg.Store.InsertTransaction(ctx, &tx); err != nil {
			serverError(c, "failed to record transaction", err)
			return
		}
		amountF, _ := tx.Amount.Float64()
		cfg.Metrics.TransactionRecorded(amountF)

		c.JSON(http.StatusCreated, gin.H{
			"transaction": tx,
			"receipt_url": receiptPath(tx.ID),
		})
	}
}

// ---------------- LIST ----------------
func ListTransactions(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := parseLimit(c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		q := queryFromRequest(c)
		q.Limit = limit

		filter, ok := scopedFilter(c, cfg, q)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c, 10*time.Second)
		defer cancel()

		txs, err := cfg.Store.ListTransactions(ctx, filter)
		if err != nil {
			serverError(c, "failed to fetch transactions", err)
			return
		}
		if notModified(c, txs) {
			return
		}
		c.Header("X-Total-Count", strconv.Itoa(len(txs)))
		c.JSON(http.StatusOK, txs)
	}
}

// ---------------- GET ----------------
func GetTransaction(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tx, ok := loadTransaction(c, cfg)
		if !ok {
			return
		}

		etag := utils.GenerateETag(tx.ID, tx.CreatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
		c.JSON(http.StatusOK, tx)
	}
}

// loadTransaction fetches :id and hides other collectors' records behind a 404.
func loadTransaction(c *gin.Context, cfg *config.Config) (*models.Transaction, bool) {
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	tx, err := cfg.Store.GetTransaction(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return nil, false
		}
		serverError(c, "failed to fetch transaction", err)
		return nil, false
	}
	if middleware.CurrentRole(c) != models.RoleAdmin && !strings.EqualFold(tx.Collector, middleware.CurrentEmail(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return nil, false
	}
	return tx, true
}

// ---------------- STREAM ----------------
// StreamTransactions upgrades to a websocket fed by the store's change feed.
// Collectors only receive their own records.
func StreamTransactions(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Hub == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates are not available"})
			return
		}
		collector := ""
		if middleware.CurrentRole(c) != models.RoleAdmin {
			collector = middleware.CurrentEmail(c)
		}
		// the upgrader has already replied on failure
		_ = cfg.Hub.ServeWS(c.Writer, c.Request, collector)
	}
}
