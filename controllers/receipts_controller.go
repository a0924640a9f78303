package controllers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/levy-collector-go/config"
	reports "github.com/phillip/levy-collector-go/reports"
)

const receiptFolder = "receipts"

// ---------------- RECEIPT ----------------
// GetReceipt renders the receipt for :id as JSON (default), printable HTML
// (?format=html) or plain text (?format=text).
func GetReceipt(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tx, ok := loadTransaction(c, cfg)
		if !ok {
			return
		}
		receipt := reports.NewReceipt(*tx, cfg.Location)

		switch c.DefaultQuery("format", "json") {
		case "json":
			c.JSON(http.StatusOK, receipt)
		case "html":
			page, err := receipt.HTML()
			if err != nil {
				serverError(c, "could not render receipt", err)
				return
			}
			c.Data(http.StatusOK, "text/html; charset=utf-8", page)
		case "text":
			c.String(http.StatusOK, receipt.Text())
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json, html or text"})
		}
	}
}

// ---------------- UPLOAD ----------------
// UploadReceipt publishes the HTML receipt to Cloudinary and returns its URL.
func UploadReceipt(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Uploader == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "receipt storage is not configured"})
			return
		}
		tx, ok := loadTransaction(c, cfg)
		if !ok {
			return
		}

		page, err := reports.NewReceipt(*tx, cfg.Location).HTML()
		if err != nil {
			serverError(c, "could not render receipt", err)
			return
		}

		url, err := cfg.Uploader.Upload(c.Request.Context(), receiptFolder, "receipt-"+tx.ID, bytes.NewReader(page))
		if err != nil {
			serverError(c, "receipt upload failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"receipt_number": tx.ID, "url": url})
	}
}
