package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/levy-collector-go/config"
	middleware "github.com/phillip/levy-collector-go/middleware"
	models "github.com/phillip/levy-collector-go/models"
	reports "github.com/phillip/levy-collector-go/reports"
	store "github.com/phillip/levy-collector-go/store"
	utils "github.com/phillip/levy-collector-go/utils"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// requestContext bounds a store call by d and by the client's connection.
func requestContext(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}

// queryFromRequest reads the shared listing filters from the query string.
func queryFromRequest(c *gin.Context) reports.Query {
	return reports.Query{
		Date:        c.Query("date"),
		Collector:   c.Query("collector"),
		PaymentType: c.Query("payment_type"),
		Search:      c.Query("q"),
	}
}

// scopedFilter builds the store filter for the caller. Collectors are pinned
// to their own records whatever they ask for.
func scopedFilter(c *gin.Context, cfg *config.Config, q reports.Query) (store.Filter, bool) {
	f, err := q.ToFilter(cfg.Location)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return store.Filter{}, false
	}
	if middleware.CurrentRole(c) != models.RoleAdmin {
		f.Collector = ""
		f.CollectorExact = middleware.CurrentEmail(c)
	}
	return f, true
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, strconv.ErrSyntax
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

// notModified sets ETag and Last-Modified for a newest-first list and
// reports whether the client's copy is still current.
func notModified(c *gin.Context, txs []models.Transaction) bool {
	if len(txs) == 0 {
		return false
	}
	// every id on the page feeds the tag, so a row landing inside the
	// window changes it even when the newest row does not
	ids := make([]string, len(txs))
	for i, t := range txs {
		ids[i] = t.ID
	}
	latest := txs[0]
	etag := utils.GenerateETag(strings.Join(ids, ","), latest.CreatedAt)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	c.Header("ETag", etag)
	c.Header("Last-Modified", latest.CreatedAt.UTC().Format(http.TimeFormat))
	return false
}

func serverError(c *gin.Context, msg string, err error) {
	slog.Error(msg, "err", err, "path", c.FullPath())
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
