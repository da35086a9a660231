package models

// These structs define the JSON payloads exchanged with API callers and the
// payment webhook.

// DocumentInput identifies one side of an audit. Exactly one of Text or
// GCSUri is expected; Text wins when both are set.
type DocumentInput struct {
	Name        string `json:"name"`
	Text        string `json:"text,omitempty"`
	GCSUri      string `json:"gcsUri,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// AuditRequest is the input for an RFQ/Bid compliance audit.
type AuditRequest struct {
	RFQ     DocumentInput `json:"rfq"`
	Bid     DocumentInput `json:"bid"`
	Role    Role          `json:"role"`
	Persist bool          `json:"persist"`
	// Optional display names; default to the document names.
	RFQName string `json:"rfqName,omitempty"`
	BidName string `json:"bidName,omitempty"`
}

// AuditResponse is the output of an audit.
type AuditResponse struct {
	ReportID   string     `json:"reportId,omitempty"`
	RFQName    string     `json:"rfqName"`
	BidName    string     `json:"bidName"`
	Role       Role       `json:"role"`
	Percentage float64    `json:"percentage"`
	Counts     FlagCounts `json:"counts"`
	UsageCount int        `json:"usageCount"`
	Report     Report     `json:"report"`
}

// SaveReportRequest persists an already produced report.
type SaveReportRequest struct {
	RFQName string `json:"rfqName"`
	BidName string `json:"bidName"`
	Role    Role   `json:"role"`
	Report  Report `json:"report"`
}

// SaveReportResponse carries the id assigned by the store.
type SaveReportResponse struct {
	ID string `json:"id"`
}

// PaymentEvent is the data payload of a payment confirmation CloudEvent.
type PaymentEvent struct {
	ClientReferenceID string `json:"client_reference_id"`
	PaymentStatus     string `json:"payment_status"`
}
