package core

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	LoanActive LoanStatus = "Active"
	LoanPaid   LoanStatus = "Paid"

	InstallmentPending InstallmentStatus = "Pending"
	InstallmentPaid    InstallmentStatus = "Paid"

	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type (
	LoanStatus        string
	InstallmentStatus string
	Role              string

	// Installment is one scheduled monthly payment. Amounts are fixed at
	// creation; only Status mutates afterwards.
	Installment struct {
		ID            string            `json:"id"`
		DueDate       time.Time         `json:"date"`
		Amount        decimal.Decimal   `json:"amount"`
		PrincipalPart decimal.Decimal   `json:"principalPart"`
		InterestPart  decimal.Decimal   `json:"interestPart"`
		Status        InstallmentStatus `json:"status"`
	}

	// Loan is a borrower-owned loan with its full repayment schedule.
	// PaidInstallments, Status and NextDueDate are derived from the
	// installments via Refresh.
	Loan struct {
		ID                string          `json:"id"`
		DisplayID         string          `json:"loanId"`
		UserName          string          `json:"userName"`
		Principal         decimal.Decimal `json:"principalAmount"`
		TotalPayable      decimal.Decimal `json:"totalPayable"`
		MonthlyRate       decimal.Decimal `json:"interestRate"`
		TotalInterest     decimal.Decimal `json:"totalInterest"`
		StartDate         time.Time       `json:"startDate"`
		TotalInstallments int             `json:"totalInstallments"`
		PaidInstallments  int             `json:"paidInstallments"`
		Status            LoanStatus      `json:"status"`
		NextDueDate       time.Time       `json:"nextDueDate"`
		Installments      []Installment   `json:"installments"`
	}

	// UserAccount is an identity record. Name is the primary key,
	// compared case-insensitively. The PIN is stored in cleartext so the
	// admin panel can display it; this is a documented weakness.
	UserAccount struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		PIN   string `json:"pin"`
		Role  Role   `json:"role"`
	}

	// LoanInput carries the admin-supplied loan parameters.
	LoanInput struct {
		UserName   string
		Principal  decimal.Decimal
		TermMonths int
		StartDate  time.Time
	}

	// Stats aggregates the dashboard view of a set of loans.
	Stats struct {
		TotalPayable   decimal.Decimal `json:"totalPayable"`
		TotalPaid      decimal.Decimal `json:"totalPaid"`
		TotalRemaining decimal.Decimal `json:"totalRemaining"`
		ActiveLoans    int             `json:"activeLoans"`
	}
)

var (
	ErrInvalidPrincipal    = errors.New("principal must be positive")
	ErrInvalidTerm         = errors.New("term must be a positive number of months")
	ErrEmptyUserName       = errors.New("empty user name")
	ErrInvalidPIN          = errors.New("pin must be exactly 4 digits")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInstallmentNotFound = errors.New("installment not found")
)

func (in LoanInput) Validate() error {
	if strings.TrimSpace(in.UserName) == "" {
		return ErrEmptyUserName
	}
	if in.Principal.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidPrincipal
	}
	if in.TermMonths <= 0 {
		return ErrInvalidTerm
	}
	return nil
}

func (u UserAccount) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyUserName
	}
	if err := ValidatePIN(u.PIN); err != nil {
		return err
	}
	switch u.Role {
	case RoleAdmin, RoleUser:
	default:
		return ErrInvalidRole
	}
	return nil
}

// ValidatePIN checks the 4-digit numeric PIN format.
func ValidatePIN(pin string) error {
	if len(pin) != 4 {
		return ErrInvalidPIN
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return ErrInvalidPIN
		}
	}
	return nil
}

// Refresh re-derives PaidInstallments, Status and NextDueDate from the
// installment list. NextDueDate is the first pending installment's due date,
// or the last installment's date once everything is paid.
func (l *Loan) Refresh() {
	paid := 0
	var next time.Time
	for _, inst := range l.Installments {
		if inst.Status == InstallmentPaid {
			paid++
		} else if next.IsZero() {
			next = inst.DueDate
		}
	}
	l.PaidInstallments = paid
	if paid == l.TotalInstallments {
		l.Status = LoanPaid
	} else {
		l.Status = LoanActive
	}
	if next.IsZero() && len(l.Installments) > 0 {
		next = l.Installments[len(l.Installments)-1].DueDate
	}
	l.NextDueDate = next
}

// Toggle flips the status of the identified installment between Pending and
// Paid and re-derives the loan's summary fields.
func (l *Loan) Toggle(installmentID string) error {
	for i := range l.Installments {
		if l.Installments[i].ID == installmentID {
			if l.Installments[i].Status == InstallmentPaid {
				l.Installments[i].Status = InstallmentPending
			} else {
				l.Installments[i].Status = InstallmentPaid
			}
			l.Refresh()
			return nil
		}
	}
	return ErrInstallmentNotFound
}

// PaidAmount sums the amounts of all paid installments.
func (l Loan) PaidAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, inst := range l.Installments {
		if inst.Status == InstallmentPaid {
			sum = sum.Add(inst.Amount)
		}
	}
	return sum
}

// Remaining is the still-outstanding part of the total payable.
func (l Loan) Remaining() decimal.Decimal {
	rem := l.TotalPayable.Sub(l.PaidAmount())
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// ComputeStats aggregates dashboard totals over the given loans.
func ComputeStats(loans []Loan) Stats {
	s := Stats{
		TotalPayable:   decimal.Zero,
		TotalPaid:      decimal.Zero,
		TotalRemaining: decimal.Zero,
	}
	for _, l := range loans {
		paid := l.PaidAmount()
		s.TotalPayable = s.TotalPayable.Add(l.TotalPayable)
		s.TotalPaid = s.TotalPaid.Add(paid)
		s.TotalRemaining = s.TotalRemaining.Add(l.TotalPayable.Sub(paid))
		if l.Status == LoanActive {
			s.ActiveLoans++
		}
	}
	return s
}
