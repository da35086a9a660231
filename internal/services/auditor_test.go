package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/rfqcompliance/internal/compliance"
	"github.com/Lllllllleong/rfqcompliance/internal/extract"
	"github.com/Lllllllleong/rfqcompliance/internal/invoker"
	"github.com/Lllllllleong/rfqcompliance/internal/models"
	"github.com/Lllllllleong/rfqcompliance/internal/store"
	"github.com/Lllllllleong/rfqcompliance/internal/usage"
)

// fiveClauseReport answers five RFQ clauses; clause 3 is only partly met.
const fiveClauseReport = "```json\n" + `{
  "executiveSummary": "Strong bid with one partial clause.",
  "findings": [
    {"requirementText": "1. Deliver within 30 days", "complianceScore": 1, "responseSummary": "Commits to 21 days", "flag": "COMPLIANT", "category": "TIMELINE"},
    {"requirementText": "2. ISO 9001 certified", "complianceScore": 1, "responseSummary": "Certificate attached", "flag": "COMPLIANT", "category": "TECHNICAL"},
    {"requirementText": "3. Fixed price for 24 months", "complianceScore": 0.5, "responseSummary": "Fixed for 12 months only", "flag": "PARTIAL", "category": "FINANCIAL", "negotiationStance": "Ask for a 24 month price hold in exchange for volume."},
    {"requirementText": "4. Monthly progress reports", "complianceScore": 1, "responseSummary": "Monthly reports offered", "flag": "COMPLIANT", "category": "REPORTING"},
    {"requirementText": "5. Unlimited liability", "complianceScore": 1, "responseSummary": "Accepted", "flag": "COMPLIANT", "category": "LEGAL"}
  ]
}` + "\n```"

type fixedGenerator struct {
	mu       sync.Mutex
	payload  string
	err      error
	requests []invoker.Request
}

func (g *fixedGenerator) Generate(ctx context.Context, req invoker.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.payload, g.err
}

type fakeDocuments map[string]struct {
	data        string
	contentType string
}

func (f fakeDocuments) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	doc, ok := f[uri]
	if !ok {
		return nil, "", errors.New("object not found")
	}
	return []byte(doc.data), doc.contentType, nil
}

type recordingArchiver struct {
	mu      sync.Mutex
	objects map[string]string
	err     error
}

func (a *recordingArchiver) Archive(ctx context.Context, objectName, content string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = map[string]string{}
	}
	a.objects[objectName] = content
	return a.err
}

type failingUsage struct{}

func (failingUsage) UpdateUsage(context.Context, string, func(*models.UsageRecord) error) (models.UsageRecord, error) {
	return models.UsageRecord{}, errors.New("usage backend down")
}

type auditFixture struct {
	auditor   *Auditor
	store     *store.MemoryStore
	generator *fixedGenerator
	archiver  *recordingArchiver
}

func newAuditFixture(payload string, genErr error) *auditFixture {
	s := store.NewMemoryStore()
	gen := &fixedGenerator{payload: payload, err: genErr}
	arch := &recordingArchiver{}
	a := NewAuditor(AuditorDeps{
		Invoker: invoker.New(gen, invoker.Config{MaxAttempts: 2, BaseDelay: time.Millisecond}),
		Reports: s,
		Counter: usage.NewCounter(s, nil),
		Documents: fakeDocuments{
			"gs://uploads/rfq.md":   {data: "# RFQ\n1. Deliver within 30 days", contentType: "text/markdown"},
			"gs://uploads/bid.txt":  {data: "We deliver in 21 days.", contentType: "text/plain"},
			"gs://uploads/blank.md": {data: "   \n", contentType: "text/markdown"},
			"gs://uploads/bid.docx": {data: "PK", contentType: "application/octet-stream"},
		},
		Archiver: arch,
		Now:      func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	})
	return &auditFixture{auditor: a, store: s, generator: gen, archiver: arch}
}

func inlineRequest(persist bool) models.AuditRequest {
	return models.AuditRequest{
		RFQ:     models.DocumentInput{Name: "Roadworks RFQ", Text: "1. Deliver within 30 days ..."},
		Bid:     models.DocumentInput{Name: "Acme bid", Text: "We deliver in 21 days ..."},
		Role:    models.RoleBidder,
		Persist: persist,
	}
}

func TestProcessEndToEnd(t *testing.T) {
	f := newAuditFixture(fiveClauseReport, nil)
	ctx := context.Background()

	resp, err := f.auditor.Process(ctx, "alice", inlineRequest(true))
	require.NoError(t, err)

	assert.Equal(t, 90.0, resp.Percentage)
	assert.Equal(t, models.FlagCounts{Compliant: 4, Partial: 1}, resp.Counts)
	assert.Equal(t, 1, resp.UsageCount)
	assert.Equal(t, "Roadworks RFQ", resp.RFQName)
	assert.Equal(t, "Acme bid", resp.BidName)

	stances := 0
	for _, finding := range resp.Report.Findings {
		if finding.NegotiationStance != "" {
			stances++
		}
	}
	assert.Equal(t, 1, stances)
	assert.Zero(t, compliance.StanceViolations(resp.Report))

	require.NotEmpty(t, resp.ReportID)
	saved, err := f.store.List(ctx, models.Tenant{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, resp.ReportID, saved[0].ID)
	assert.Equal(t, int64(1_700_000_000_000), saved[0].Timestamp)
	assert.Equal(t, models.RoleBidder, saved[0].Role)

	rec, err := f.store.GetUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.BidderChecks)

	require.Len(t, f.archiver.objects, 1)
	for name, content := range f.archiver.objects {
		assert.True(t, strings.HasPrefix(name, "alice/"))
		assert.True(t, strings.HasSuffix(name, ".json"))
		assert.Contains(t, content, "Strong bid with one partial clause.")
	}
}

func TestProcessWithoutPersist(t *testing.T) {
	f := newAuditFixture(fiveClauseReport, nil)
	ctx := context.Background()

	resp, err := f.auditor.Process(ctx, "alice", inlineRequest(false))
	require.NoError(t, err)
	assert.Empty(t, resp.ReportID)

	saved, err := f.store.List(ctx, models.Tenant{UserID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestProcessInvokeFailureTouchesNothing(t *testing.T) {
	f := newAuditFixture("", &invoker.StatusError{Code: 503, Body: "overloaded"})
	ctx := context.Background()

	_, err := f.auditor.Process(ctx, "alice", inlineRequest(true))
	require.ErrorIs(t, err, invoker.ErrUpstreamUnavailable)

	rec, err := f.store.GetUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.UsageRecord{}, rec)

	saved, err := f.store.List(ctx, models.Tenant{UserID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, saved)
	assert.Empty(t, f.archiver.objects)
}

func TestProcessMalformedReport(t *testing.T) {
	f := newAuditFixture(`{"summary": "not a report"}`, nil)

	_, err := f.auditor.Process(context.Background(), "alice", inlineRequest(false))
	require.ErrorIs(t, err, invoker.ErrMalformedResponse)
	assert.Len(t, f.generator.requests, 1)
}

func TestProcessSwallowsUsageFailure(t *testing.T) {
	s := store.NewMemoryStore()
	a := NewAuditor(AuditorDeps{
		Invoker: invoker.New(&fixedGenerator{payload: fiveClauseReport}, invoker.Config{}),
		Reports: s,
		Counter: usage.NewCounter(failingUsage{}, nil),
	})

	resp, err := a.Process(context.Background(), "alice", inlineRequest(true))
	require.NoError(t, err)
	assert.Equal(t, 0, resp.UsageCount)
	assert.NotEmpty(t, resp.ReportID)
}

func TestProcessArchiveFailureIsNotFatal(t *testing.T) {
	f := newAuditFixture(fiveClauseReport, nil)
	f.archiver.err = errors.New("bucket gone")

	_, err := f.auditor.Process(context.Background(), "alice", inlineRequest(false))
	require.NoError(t, err)
}

func TestProcessResolvesUploadedDocuments(t *testing.T) {
	f := newAuditFixture(fiveClauseReport, nil)
	req := models.AuditRequest{
		RFQ:  models.DocumentInput{GCSUri: "gs://uploads/rfq.md"},
		Bid:  models.DocumentInput{GCSUri: "gs://uploads/bid.txt", Name: "Acme"},
		Role: models.RoleInitiator,
	}

	resp, err := f.auditor.Process(context.Background(), "bob", req)
	require.NoError(t, err)
	assert.Equal(t, "Acme", resp.BidName)

	require.Len(t, f.generator.requests, 1)
	assert.Equal(t, "# RFQ\n1. Deliver within 30 days", f.generator.requests[0].RFQText)
	assert.Equal(t, "We deliver in 21 days.", f.generator.requests[0].BidText)

	rec, err := f.store.GetUsage(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.InitiatorChecks)
}

func TestProcessRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		mutate func(*models.AuditRequest)
		want   error
	}{
		{name: "no user", userID: "", mutate: func(*models.AuditRequest) {}, want: ErrInvalidRequest},
		{name: "unknown role", userID: "alice", mutate: func(r *models.AuditRequest) { r.Role = "AUDITOR" }, want: ErrInvalidRequest},
		{name: "empty rfq", userID: "alice", mutate: func(r *models.AuditRequest) { r.RFQ.Text = "  " }, want: extract.ErrExtraction},
		{name: "blank upload", userID: "alice", mutate: func(r *models.AuditRequest) { r.Bid = models.DocumentInput{GCSUri: "gs://uploads/blank.md"} }, want: extract.ErrExtraction},
		{name: "unsupported upload", userID: "alice", mutate: func(r *models.AuditRequest) { r.Bid = models.DocumentInput{GCSUri: "gs://uploads/bid.docx"} }, want: extract.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuditFixture(fiveClauseReport, nil)
			req := inlineRequest(true)
			tt.mutate(&req)

			_, err := f.auditor.Process(context.Background(), tt.userID, req)
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.generator.requests)
		})
	}
}

func TestProcessUploadWithoutDocumentSource(t *testing.T) {
	s := store.NewMemoryStore()
	a := NewAuditor(AuditorDeps{
		Invoker: invoker.New(&fixedGenerator{payload: fiveClauseReport}, invoker.Config{}),
		Reports: s,
		Counter: usage.NewCounter(s, nil),
	})
	req := inlineRequest(false)
	req.RFQ = models.DocumentInput{GCSUri: "gs://uploads/rfq.md"}

	_, err := a.Process(context.Background(), "alice", req)
	require.ErrorIs(t, err, ErrInvalidRequest)
}
