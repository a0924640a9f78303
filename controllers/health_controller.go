package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/levy-collector-go/config"
)

func Health(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		stream := 0
		if cfg.Hub != nil {
			stream = cfg.Hub.Clients()
		}
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"store":          cfg.DBDriver,
			"redis":          cfg.Redis != nil,
			"stream_clients": stream,
		})
	}
}
