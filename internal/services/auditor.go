package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/rfqcompliance/internal/compliance"
	"github.com/Lllllllleong/rfqcompliance/internal/extract"
	"github.com/Lllllllleong/rfqcompliance/internal/invoker"
	"github.com/Lllllllleong/rfqcompliance/internal/logging"
	"github.com/Lllllllleong/rfqcompliance/internal/models"
	"github.com/Lllllllleong/rfqcompliance/internal/store"
)

// DocumentSource fetches uploaded documents by URI.
type DocumentSource interface {
	Fetch(ctx context.Context, uri string) (data []byte, contentType string, err error)
}

// Archiver keeps a copy of each raw report. Writing the same name twice is
// a no-op.
type Archiver interface {
	Archive(ctx context.Context, objectName, content string) error
}

// ReportInvoker produces a report for an RFQ/Bid pair.
type ReportInvoker interface {
	Invoke(ctx context.Context, req invoker.Request) (models.Report, error)
}

// UsageRecorder counts completed audits without failing them.
type UsageRecorder interface {
	Record(ctx context.Context, userID string, role models.Role) int
}

// AuditorDeps wires an Auditor. Documents and Archiver are optional:
// without Documents only inline text is accepted, without Archiver nothing
// is archived.
type AuditorDeps struct {
	Invoker   ReportInvoker
	Reports   store.ReportStore
	Counter   UsageRecorder
	Documents DocumentSource
	Archiver  Archiver
	Now       func() time.Time
}

// Auditor runs one compliance audit end to end.
type Auditor struct {
	invoker   ReportInvoker
	reports   store.ReportStore
	counter   UsageRecorder
	documents DocumentSource
	archiver  Archiver
	now       func() time.Time
}

// NewAuditor creates an Auditor.
func NewAuditor(deps AuditorDeps) *Auditor {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Auditor{
		invoker:   deps.Invoker,
		reports:   deps.Reports,
		counter:   deps.Counter,
		documents: deps.Documents,
		archiver:  deps.Archiver,
		now:       now,
	}
}

// Process resolves both documents, asks the model for a report, scores it,
// records usage and optionally persists and archives the result.
func (a *Auditor) Process(ctx context.Context, userID string, req models.AuditRequest) (*models.AuditResponse, error) {
	logCtx := logging.WithContext(ctx).With("userId", userID, "role", req.Role)

	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if _, err := req.Role.CounterKey(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	rfqName := firstNonEmpty(req.RFQName, req.RFQ.Name)
	bidName := firstNonEmpty(req.BidName, req.Bid.Name)
	logCtx = logCtx.With("rfqName", rfqName, "bidName", bidName)
	logCtx.Info("Starting compliance audit.")

	var rfqText, bidText string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := a.resolve(gctx, "rfq", req.RFQ)
		rfqText = text
		return err
	})
	g.Go(func() error {
		text, err := a.resolve(gctx, "bid", req.Bid)
		bidText = text
		return err
	})
	if err := g.Wait(); err != nil {
		logCtx.Error("Failed to resolve documents", "error", err)
		return nil, err
	}

	report, err := a.invoker.Invoke(ctx, invoker.Request{RFQText: rfqText, BidText: bidText})
	if err != nil {
		logCtx.Error("Failed to generate compliance report", "error", err)
		return nil, err
	}

	percentage := compliance.ComputeCompliancePercentage(report)
	counts := compliance.Bucketize(report.Findings)
	if n := compliance.StanceViolations(report); n > 0 {
		logCtx.Warn("Report has findings with inconsistent negotiation stances.", "violations", n)
	}
	logCtx.Info("Report scored.", "percentage", percentage, "findings", counts.Total())

	resp := &models.AuditResponse{
		RFQName:    rfqName,
		BidName:    bidName,
		Role:       req.Role,
		Percentage: percentage,
		Counts:     counts,
		UsageCount: a.counter.Record(ctx, userID, req.Role),
		Report:     report,
	}

	if req.Persist {
		id, err := a.reports.Save(ctx, userID, models.StoredReport{
			RFQName:   rfqName,
			BidName:   bidName,
			Timestamp: a.now().UnixMilli(),
			Role:      req.Role,
			Report:    report,
		})
		if err != nil {
			logCtx.Error("Failed to persist report", "error", err)
			return nil, err
		}
		resp.ReportID = id
		logCtx.Info("Report persisted.", "reportId", id)
	}

	a.archive(ctx, logCtx, userID, report)
	return resp, nil
}

// resolve returns the document's text, fetching and extracting it when it
// was uploaded instead of sent inline.
func (a *Auditor) resolve(ctx context.Context, label string, doc models.DocumentInput) (string, error) {
	text := doc.Text
	if text == "" && doc.GCSUri != "" {
		if a.documents == nil {
			return "", fmt.Errorf("%w: %s: uploaded documents are not supported here", ErrInvalidRequest, label)
		}
		data, contentType, err := a.documents.Fetch(ctx, doc.GCSUri)
		if err != nil {
			return "", fmt.Errorf("failed to fetch %s document: %w", label, err)
		}
		if doc.ContentType != "" {
			contentType = doc.ContentType
		}
		name := firstNonEmpty(doc.Name, doc.GCSUri)
		text, err = extract.Text(name, contentType, data)
		if err != nil {
			return "", fmt.Errorf("%s document: %w", label, err)
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s document has no text", extract.ErrExtraction, label)
	}
	return text, nil
}

// archive stores the raw report under {userId}/{sha256}.json. Failures are
// logged only.
func (a *Auditor) archive(ctx context.Context, logCtx *slog.Logger, userID string, report models.Report) {
	if a.archiver == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		logCtx.Warn("Failed to encode report for archive", "error", err)
		return
	}
	sum := sha256.Sum256(raw)
	objectName := fmt.Sprintf("%s/%s.json", userID, hex.EncodeToString(sum[:]))
	if err := a.archiver.Archive(ctx, objectName, string(raw)); err != nil {
		logCtx.Warn("Failed to archive report", "object", objectName, "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
