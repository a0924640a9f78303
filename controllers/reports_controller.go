package controllers

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/levy-collector-go/config"
	middleware "github.com/phillip/levy-collector-go/middleware"
	models "github.com/phillip/levy-collector-go/models"
	reports "github.com/phillip/levy-collector-go/reports"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxImportBytes  = 10 << 20
)

// filtered loads every transaction matching the request's filters, with no
// row limit.
func filtered(c *gin.Context, cfg *config.Config) ([]models.Transaction, bool) {
	filter, ok := scopedFilter(c, cfg, queryFromRequest(c))
	if !ok {
		return nil, false
	}

	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	txs, err := cfg.Store.ListTransactions(ctx, filter)
	if err != nil {
		serverError(c, "failed to fetch transactions", err)
		return nil, false
	}
	return txs, true
}

// ---------------- SUMMARY ----------------
// Collectors get their own figures; admins see everyone's.
func Summary(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		txs, ok := filtered(c, cfg)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, reports.Summarize(txs))
	}
}

// ---------------- EXPORT ----------------
func ExportCSV(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		txs, ok := filtered(c, cfg)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := reports.WriteCSV(&buf, txs, cfg.Location); err != nil {
			serverError(c, "could not build export", err)
			return
		}
		attach(c, reports.ExportFilename(cfg.Now().In(cfg.Location), "csv"))
		c.Data(http.StatusOK, csvContentType, buf.Bytes())
	}
}

func ExportXLSX(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		txs, ok := filtered(c, cfg)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := reports.WriteXLSX(&buf, txs, cfg.Location); err != nil {
			serverError(c, "could not build export", err)
			return
		}
		attach(c, reports.ExportFilename(cfg.Now().In(cfg.Location), "xlsx"))
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

func attach(c *gin.Context, filename string) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// ---------------- IMPORT ----------------
// ImportTransactions loads a workbook uploaded as the "file" form field.
func ImportTransactions(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "workbook must be uploaded as the file field"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open file"})
			return
		}
		defer file.Close()

		ctx, cancel := requestContext(c, 60*time.Second)
		defer cancel()

		res, err := reports.ImportXLSX(ctx, file, cfg.Store, reports.ImportOptions{
			Collector: middleware.CurrentEmail(c),
			Location:  cfg.Location,
			Now:       cfg.Now,
		})
		if err != nil {
			if errors.Is(err, reports.ErrEmptyWorkbook) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		cfg.Metrics.ImportRows(res.Imported, len(res.Errors))

		c.JSON(http.StatusOK, res)
	}
}
