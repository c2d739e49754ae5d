// Package core holds the loan domain model and the amortization engine.
//
// The engine is pure: given loan parameters it produces the full repayment
// schedule and derived totals, with no I/O and no knowledge of roles,
// storage or synchronization.
package core

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MonthlyRate is the fixed monthly interest rate (1.42%) applied to every
// loan. Terms offered at the boundary are 3 or 6 months, but the engine
// works for any positive term.
var MonthlyRate = decimal.NewFromFloat(0.0142)

// OfferedTerms are the installment counts presented to the admin.
var OfferedTerms = []int{3, 6}

// Schedule is the engine's output for one set of loan parameters.
type Schedule struct {
	EMI           decimal.Decimal
	TotalInterest decimal.Decimal
	TotalPayable  decimal.Decimal
	Installments  []Installment
}

// BuildSchedule amortizes principal over termMonths at MonthlyRate.
//
// The unrounded EMI drives the per-period split; each period's interest and
// principal components are rounded to 2 decimals independently. The final
// period's principal component is forced to the entire remaining balance so
// that repeated per-period rounding can never leave a residual balance.
func BuildSchedule(principal decimal.Decimal, termMonths int, startDate time.Time) (Schedule, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return Schedule{}, ErrInvalidPrincipal
	}
	if termMonths <= 0 {
		return Schedule{}, ErrInvalidTerm
	}

	r := MonthlyRate
	one := decimal.NewFromInt(1)
	growth := one.Add(r).Pow(decimal.NewFromInt(int64(termMonths)))
	emi := principal.Mul(r).Mul(growth).Div(growth.Sub(one))

	balance := principal
	totalInterest := decimal.Zero
	installments := make([]Installment, 0, termMonths)

	for i := 1; i <= termMonths; i++ {
		interest := balance.Mul(r).Round(2)
		var princ decimal.Decimal
		if i == termMonths {
			// Last period absorbs the rounding drift.
			princ = balance.Round(2)
		} else {
			princ = emi.Sub(interest).Round(2)
		}

		installments = append(installments, Installment{
			ID:            uuid.NewString(),
			DueDate:       startDate.AddDate(0, i, 0),
			Amount:        princ.Add(interest).Round(2),
			PrincipalPart: princ,
			InterestPart:  interest,
			Status:        InstallmentPending,
		})

		totalInterest = totalInterest.Add(interest)
		balance = balance.Sub(princ)
	}

	return Schedule{
		EMI:           emi.Round(2),
		TotalInterest: totalInterest.Round(2),
		TotalPayable:  principal.Add(totalInterest).Round(2),
		Installments:  installments,
	}, nil
}

// NewLoan validates the input, runs the engine and assembles a fresh loan
// with generated identifiers.
func NewLoan(in LoanInput) (Loan, error) {
	if err := in.Validate(); err != nil {
		return Loan{}, err
	}

	sched, err := BuildSchedule(in.Principal, in.TermMonths, in.StartDate)
	if err != nil {
		return Loan{}, err
	}

	loan := Loan{
		ID:                uuid.NewString(),
		DisplayID:         newDisplayID(),
		UserName:          in.UserName,
		Principal:         in.Principal,
		TotalPayable:      sched.TotalPayable,
		MonthlyRate:       MonthlyRate,
		TotalInterest:     sched.TotalInterest,
		StartDate:         in.StartDate,
		TotalInstallments: in.TermMonths,
		Installments:      sched.Installments,
	}
	loan.Refresh()
	return loan, nil
}

// RebuildLoan re-runs the engine on an edited loan. Existing installment
// identifiers and paid/pending statuses are re-used positionally by index:
// shortening the term drops trailing paid history, lengthening appends
// pending installments. The loan's own identifiers are preserved.
func RebuildLoan(existing Loan, in LoanInput) (Loan, error) {
	loan, err := NewLoan(in)
	if err != nil {
		return Loan{}, err
	}

	loan.ID = existing.ID
	loan.DisplayID = existing.DisplayID
	for i := range loan.Installments {
		if i < len(existing.Installments) {
			loan.Installments[i].ID = existing.Installments[i].ID
			loan.Installments[i].Status = existing.Installments[i].Status
		}
	}
	loan.Refresh()
	return loan, nil
}

// newDisplayID builds the human-facing loan number: a fixed 1100 prefix
// followed by 12 random digits.
func newDisplayID() string {
	n := rand.N(int64(900_000_000_000)) + 100_000_000_000
	return "1100" + strconv.FormatInt(n, 10)
}
