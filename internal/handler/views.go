package handler

import (
	"strconv"
	"time"

	"github.com/iliyamo/library-circulation/internal/model"
	"github.com/iliyamo/library-circulation/internal/service"
)

// View structs shape the JSON the API returns. Monetary amounts render
// as fixed two-decimal strings so clients never see float artifacts.

type bookView struct {
	ID              uint64  `json:"id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	ISBN            *string `json:"isbn,omitempty"`
	Price           string  `json:"price"`
	TotalCopies     uint32  `json:"total_copies"`
	AvailableCopies uint32  `json:"available_copies"`
}

func toBookView(b *model.Book) bookView {
	return bookView{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		Price:           b.Price.StringFixed(2),
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
	}
}

type copyView struct {
	ID            uint64  `json:"id"`
	BookID        uint64  `json:"book_id"`
	Barcode       *string `json:"barcode,omitempty"`
	Status        string  `json:"status"`
	ConditionNote *string `json:"condition_note,omitempty"`
}

func toCopyView(c *model.BookCopy) copyView {
	return copyView{
		ID:            c.ID,
		BookID:        c.BookID,
		Barcode:       c.Barcode,
		Status:        string(c.Status),
		ConditionNote: c.ConditionNote,
	}
}

type reservationView struct {
	ID            uint64     `json:"id"`
	BookID        uint64     `json:"book_id"`
	PatronID      uint64     `json:"patron_id"`
	Status        string     `json:"status"`
	ReservedAt    time.Time  `json:"reserved_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	DeclineReason *string    `json:"decline_reason,omitempty"`
	LoanID        *uint64    `json:"loan_id,omitempty"`
}

func toReservationView(r *model.Reservation) reservationView {
	return reservationView{
		ID:            r.ID,
		BookID:        r.BookID,
		PatronID:      r.PatronID,
		Status:        string(r.Status),
		ReservedAt:    r.ReservedAt,
		ExpiresAt:     r.ExpiresAt,
		DeclineReason: r.DeclineReason,
		LoanID:        r.LoanID,
	}
}

type loanView struct {
	ID         uint64     `json:"id"`
	CopyID     uint64     `json:"copy_id"`
	PatronID   uint64     `json:"patron_id"`
	Status     string     `json:"status"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueDate    time.Time  `json:"due_date"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	LateFee    string     `json:"late_fee"`
	DamageFee  string     `json:"damage_fee"`
	PenaltyFee string     `json:"penalty_fee"`
	DamageType string     `json:"damage_type"`
	DamageNote *string    `json:"damage_note,omitempty"`
}

func toLoanView(l *model.Loan) loanView {
	return loanView{
		ID:         l.ID,
		CopyID:     l.CopyID,
		PatronID:   l.PatronID,
		Status:     string(l.Status),
		BorrowedAt: l.BorrowedAt,
		DueDate:    l.DueDate,
		ReturnedAt: l.ReturnedAt,
		LateFee:    l.LateFee.StringFixed(2),
		DamageFee:  l.DamageFee.StringFixed(2),
		PenaltyFee: l.PenaltyFee.StringFixed(2),
		DamageType: string(l.DamageType),
		DamageNote: l.DamageNote,
	}
}

type reportView struct {
	ID          uint64     `json:"id"`
	BookID      uint64     `json:"book_id"`
	CopyID      uint64     `json:"copy_id"`
	LoanID      uint64     `json:"loan_id"`
	PatronID    uint64     `json:"patron_id"`
	ReportType  string     `json:"report_type"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	Description *string    `json:"description,omitempty"`
	DamageTypes []string   `json:"damage_types,omitempty"`
	FeeCharged  string     `json:"fee_charged"`
	AdminNotes  *string    `json:"admin_notes,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func toReportView(r *model.DamageReport) reportView {
	types := make([]string, 0, len(r.DamageTypes))
	for _, t := range r.DamageTypes {
		types = append(types, string(t))
	}
	return reportView{
		ID:          r.ID,
		BookID:      r.BookID,
		CopyID:      r.CopyID,
		LoanID:      r.LoanID,
		PatronID:    r.PatronID,
		ReportType:  string(r.ReportType),
		Severity:    string(r.Severity),
		Status:      string(r.Status),
		Description: r.Description,
		DamageTypes: types,
		FeeCharged:  r.FeeCharged.StringFixed(2),
		AdminNotes:  r.AdminNotes,
		ResolvedAt:  r.ResolvedAt,
	}
}

func loanViews(loans []model.Loan) []loanView {
	out := make([]loanView, 0, len(loans))
	for i := range loans {
		out = append(out, toLoanView(&loans[i]))
	}
	return out
}

func reservationViews(rs []model.Reservation) []reservationView {
	out := make([]reservationView, 0, len(rs))
	for i := range rs {
		out = append(out, toReservationView(&rs[i]))
	}
	return out
}

func reportViews(rs []model.DamageReport) []reportView {
	out := make([]reportView, 0, len(rs))
	for i := range rs {
		out = append(out, toReportView(&rs[i]))
	}
	return out
}

func parseUint(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, &service.ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	return n, nil
}
