package queue

import "time"

// ReceiptQueue is the durable queue receipt requests are published to.
const ReceiptQueue = "receipt.requested"

// Receipt kinds. A receipt is requested whenever fees are frozen: at
// return time and at report resolution.
const (
	ReceiptKindLoanReturn       = "loan_return"
	ReceiptKindReportResolution = "report_resolution"
)

// ReceiptRequestedEvent asks the receipt worker to render a fee receipt
// for a patron. Fee amounts travel as fixed two-decimal strings so the
// wire format never depends on float rounding.
type ReceiptRequestedEvent struct {
	Kind       string    `json:"kind"`
	LoanID     uint64    `json:"loan_id"`
	ReportID   uint64    `json:"report_id,omitempty"`
	PatronID   uint64    `json:"patron_id"`
	CopyID     uint64    `json:"copy_id"`
	LateFee    string    `json:"late_fee"`
	DamageFee  string    `json:"damage_fee"`
	PenaltyFee string    `json:"penalty_fee"`
	IssuedAt   time.Time `json:"issued_at"`
}
