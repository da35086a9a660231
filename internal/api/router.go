// Package api exposes the audit, report, ranking and usage operations over
// HTTP.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lllllllleong/rfqcompliance/internal/api/middleware"
	"github.com/Lllllllleong/rfqcompliance/internal/services"
)

// Services are the operations the router dispatches to.
type Services struct {
	Auditor       *services.Auditor
	Reports       *services.Reports
	Standings     *services.Standings
	Subscriptions *services.Subscriptions
}

// NewRouter builds the gin engine. Every /api route requires a bearer token
// signed with jwtSecret.
func NewRouter(svc Services, jwtSecret string) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handler{svc: svc}
	api := router.Group("/api", middleware.Auth(jwtSecret))
	{
		api.POST("/audits", h.audit)

		api.GET("/reports", h.listReports)
		api.POST("/reports", h.saveReport)
		api.DELETE("/reports/:id", h.deleteReport)

		api.GET("/rankings", h.rankings)
		api.GET("/rankings/stream", h.streamRankings)

		api.GET("/usage", h.usage)
	}
	return router
}
