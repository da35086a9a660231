package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Lllllllleong/rfqcompliance/internal/logging"
	"github.com/Lllllllleong/rfqcompliance/internal/models"
	"github.com/Lllllllleong/rfqcompliance/internal/store"
)

// Reports manages a tenant's saved reports.
type Reports struct {
	store store.ReportStore
	now   func() time.Time
}

func NewReports(s store.ReportStore, now func() time.Time) *Reports {
	if now == nil {
		now = time.Now
	}
	return &Reports{store: s, now: now}
}

// tenantID returns the user id of a Tenant actor. Administrators read
// across tenants but do not own reports.
func tenantID(actor models.Actor) (string, error) {
	t, ok := actor.(models.Tenant)
	if !ok {
		return "", fmt.Errorf("%w: %T", ErrForbidden, actor)
	}
	if t.UserID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	return t.UserID, nil
}

// Save stores a report produced earlier and returns its id.
func (r *Reports) Save(ctx context.Context, actor models.Actor, req models.SaveReportRequest) (string, error) {
	userID, err := tenantID(actor)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(req.RFQName) == "" {
		return "", fmt.Errorf("%w: rfqName is required", ErrInvalidRequest)
	}
	if _, err := req.Role.CounterKey(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if req.Report.Findings == nil {
		req.Report.Findings = []models.Finding{}
	}

	id, err := r.store.Save(ctx, userID, models.StoredReport{
		RFQName:   req.RFQName,
		BidName:   req.BidName,
		Timestamp: r.now().UnixMilli(),
		Role:      req.Role,
		Report:    req.Report,
	})
	if err != nil {
		logging.WithContext(ctx).Error("Failed to save report", "rfqName", req.RFQName, "error", err)
		return "", err
	}
	return id, nil
}

// Delete removes one of the tenant's reports.
func (r *Reports) Delete(ctx context.Context, actor models.Actor, id string) error {
	userID, err := tenantID(actor)
	if err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: report id is required", ErrInvalidRequest)
	}
	return r.store.Delete(ctx, userID, id)
}

// List returns the reports visible to actor, newest first.
func (r *Reports) List(ctx context.Context, actor models.Actor) ([]models.StoredReport, error) {
	reports, err := r.store.List(ctx, actor)
	if err != nil {
		return nil, err
	}
	store.SortNewestFirst(reports)
	return reports, nil
}
