package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReportType distinguishes a lost copy from a damaged one.
type ReportType string

const (
	ReportLost    ReportType = "LOST"
	ReportDamaged ReportType = "DAMAGED"
)

// IsValidReportType reports whether t is a known report type.
func IsValidReportType(t ReportType) bool { return t == ReportLost || t == ReportDamaged }

// ReportSeverity grades how badly a copy was damaged.
type ReportSeverity string

const (
	SeverityMinor    ReportSeverity = "MINOR"
	SeverityModerate ReportSeverity = "MODERATE"
	SeveritySevere   ReportSeverity = "SEVERE"
)

// IsValidSeverity reports whether s is a known severity grade.
func IsValidSeverity(s ReportSeverity) bool {
	return s == SeverityMinor || s == SeverityModerate || s == SeveritySevere
}

// ReportStatus enumerates the report lifecycle. RESOLVED is terminal.
type ReportStatus string

const (
	ReportPending  ReportStatus = "PENDING"
	ReportResolved ReportStatus = "RESOLVED"
)

// DamageReport is a patron- or staff-filed record that a held copy was
// lost or damaged. Filing requires an open loan for the same copy and
// patron. Resolution freezes the fee, adds it to the loan's penalty and
// moves the copy to DAMAGED or LOST.
type DamageReport struct {
	ID          uint64          // damage_reports.id
	BookID      uint64          // damage_reports.book_id
	CopyID      uint64          // damage_reports.copy_id
	LoanID      uint64          // damage_reports.loan_id
	PatronID    uint64          // damage_reports.patron_id
	ReportType  ReportType      // damage_reports.report_type
	Severity    ReportSeverity  // damage_reports.severity
	Status      ReportStatus    // damage_reports.status
	Description *string         // damage_reports.description (nullable)
	DamageTypes []DamageType    // damage_reports.damage_types (CSV column)
	FeeCharged  decimal.Decimal // damage_reports.fee_charged
	AdminNotes  *string         // damage_reports.admin_notes (nullable)
	ResolvedAt  *time.Time      // damage_reports.resolved_at (nullable)
	CreatedAt   time.Time       // damage_reports.created_at
	UpdatedAt   time.Time       // damage_reports.updated_at
}

// EncodeDamageTypes flattens a damage-type set into the CSV form stored
// in damage_reports.damage_types.
func EncodeDamageTypes(types []DamageType) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ",")
}

// DecodeDamageTypes parses the CSV column back into a damage-type set.
// Unknown or empty entries are dropped.
func DecodeDamageTypes(s string) []DamageType {
	if s == "" {
		return nil
	}
	var types []DamageType
	for _, p := range strings.Split(s, ",") {
		t := DamageType(strings.TrimSpace(p))
		if t != "" && t != DamageNone && IsValidDamageType(t) {
			types = append(types, t)
		}
	}
	return types
}
