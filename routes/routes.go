package routes

import (
	"github.com/gin-gonic/gin"

	config "github.com/phillip/levy-collector-go/config"
	controllers "github.com/phillip/levy-collector-go/controllers"
	middleware "github.com/phillip/levy-collector-go/middleware"
	models "github.com/phillip/levy-collector-go/models"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config) {
	// public
	r.GET("/health", controllers.Health(cfg))
	r.POST("/auth/register", controllers.Register(cfg))
	r.POST("/auth/login", controllers.Login(cfg))
	r.POST("/auth/refresh", controllers.RefreshToken(cfg))

	// protected
	auth := middleware.AuthMiddleware(cfg)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	session := r.Group("/auth")
	session.Use(auth)
	{
		session.POST("/logout", controllers.Logout(cfg))
		session.GET("/me", controllers.Me(cfg))
	}

	users := r.Group("/users")
	users.Use(auth, adminOnly)
	{
		users.GET("", controllers.ListUsers(cfg))
		users.POST("", controllers.CreateUser(cfg))
	}

	txs := r.Group("/transactions")
	txs.Use(auth)
	{
		txs.POST("", controllers.CreateTransaction(cfg))
		txs.GET("", controllers.ListTransactions(cfg))
		txs.GET("/stream", controllers.StreamTransactions(cfg))
		txs.GET("/:id", controllers.GetTransaction(cfg))
		txs.GET("/:id/receipt", controllers.GetReceipt(cfg))
		txs.POST("/:id/receipt/upload", controllers.UploadReceipt(cfg))
		txs.POST("/import", adminOnly, controllers.ImportTransactions(cfg))
	}

	// summary is scoped per caller; exports are admin only
	rpt := r.Group("/reports")
	rpt.Use(auth)
	{
		rpt.GET("/summary", controllers.Summary(cfg))
		rpt.GET("/export.csv", adminOnly, controllers.ExportCSV(cfg))
		rpt.GET("/export.xlsx", adminOnly, controllers.ExportXLSX(cfg))
	}

	r.POST("/fraud/scan", auth, adminOnly, controllers.ScanFraud(cfg))

	comp := r.Group("/compliance")
	comp.Use(auth, adminOnly)
	{
		comp.GET("/unpaid", controllers.ListUnpaid(cfg))
		comp.POST("/reminders/quote", controllers.QuoteReminders(cfg))
		comp.POST("/reminders/send", controllers.SendReminders(cfg))
	}
}
