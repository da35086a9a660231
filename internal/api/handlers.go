package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lllllllleong/rfqcompliance/internal/api/middleware"
	"github.com/Lllllllleong/rfqcompliance/internal/logging"
	"github.com/Lllllllleong/rfqcompliance/internal/models"
	"github.com/Lllllllleong/rfqcompliance/internal/ranking"
	"github.com/Lllllllleong/rfqcompliance/internal/services"
)

type handler struct {
	svc Services
}

func actor(c *gin.Context) models.Actor {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		panic("api: handler reached without an authenticated actor")
	}
	return a
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, fmt.Errorf("%w: %v", services.ErrInvalidRequest, err))
		return false
	}
	return true
}

func (h *handler) audit(c *gin.Context) {
	tenant, ok := actor(c).(models.Tenant)
	if !ok {
		respondError(c, fmt.Errorf("%w: audits run on behalf of a tenant", services.ErrForbidden))
		return
	}
	var req models.AuditRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Auditor.Process(c.Request.Context(), tenant.UserID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) listReports(c *gin.Context) {
	reports, err := h.svc.Reports.List(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if reports == nil {
		reports = []models.StoredReport{}
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (h *handler) saveReport(c *gin.Context) {
	var req models.SaveReportRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := h.svc.Reports.Save(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.SaveReportResponse{ID: id})
}

func (h *handler) deleteReport(c *gin.Context) {
	if err := h.svc.Reports.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) rankings(c *gin.Context) {
	groups, err := h.svc.Standings.Current(c.Request.Context(), actor(c), c.Query("rfq"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rankings": groups})
}

// streamRankings pushes a "rankings" server-sent event for every store
// snapshot until the client goes away.
func (h *handler) streamRankings(c *gin.Context) {
	ctx := c.Request.Context()
	logCtx := logging.WithContext(ctx)
	viewer, rfq := actor(c), c.Query("rfq")

	updates := make(chan []ranking.Group)
	errc := make(chan error, 1)
	go func() {
		defer close(updates)
		errc <- h.svc.Standings.Watch(ctx, viewer, rfq, func(groups []ranking.Group) {
			select {
			case updates <- groups:
			case <-ctx.Done():
			}
		})
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		groups, ok := <-updates
		if !ok {
			return false
		}
		c.SSEvent("rankings", groups)
		return true
	})

	select {
	case err := <-errc:
		if err != nil {
			logCtx.Error("Ranking stream ended with error", "error", err)
		}
	default:
	}
}

func (h *handler) usage(c *gin.Context) {
	rec, err := h.svc.Subscriptions.Usage(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
