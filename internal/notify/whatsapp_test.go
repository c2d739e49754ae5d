package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"loantrack/internal/core"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func settlingLoan() core.Loan {
	return core.Loan{
		DisplayID:    "1100123456789012",
		UserName:     "Rahim",
		TotalPayable: d("10285.33"),
		Installments: []core.Installment{
			{ID: "i1", Amount: d("3428.44"), Status: core.InstallmentPaid},
			{ID: "i2", Amount: d("3428.44"), Status: core.InstallmentPending},
			{ID: "i3", Amount: d("3428.45"), Status: core.InstallmentPending},
		},
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"01712345678", "8801712345678"},
		{"8801712345678", "8801712345678"},
		{" 01712345678 ", "8801712345678"},
		{"+15551234567", "+15551234567"},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLink(t *testing.T) {
	got := Link("01712345678", "hello there & welcome")
	want := "https://wa.me/8801712345678?text=hello+there+%26+welcome"
	if got != want {
		t.Errorf("Link() = %q, want %q", got, want)
	}
}

func TestPaymentReceived(t *testing.T) {
	loan := settlingLoan()

	msg, err := PaymentReceived(loan, "i2")
	if err != nil {
		t.Fatalf("PaymentReceived() error = %v", err)
	}
	for _, want := range []string{
		"Dear Rahim",
		"1100123456789012",
		"৳3428.44",
		// i1 paid + i2 being confirmed leaves only i3.
		"Remaining balance: ৳3428.45",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	if _, err := PaymentReceived(loan, "nope"); !errors.Is(err, core.ErrInstallmentNotFound) {
		t.Errorf("unknown installment error = %v, want ErrInstallmentNotFound", err)
	}
}

func TestPaymentReceived_LastInstallmentClampsAtZero(t *testing.T) {
	loan := settlingLoan()
	loan.Installments[1].Status = core.InstallmentPaid

	msg, err := PaymentReceived(loan, "i3")
	if err != nil {
		t.Fatalf("PaymentReceived() error = %v", err)
	}
	if !strings.Contains(msg, "Remaining balance: ৳0.00") {
		t.Errorf("message should report a zero balance:\n%s", msg)
	}
}

func TestLoanSettled(t *testing.T) {
	msg := LoanSettled(settlingLoan())
	if !strings.Contains(msg, "Rahim") || !strings.Contains(msg, "1100123456789012") {
		t.Errorf("message missing borrower or loan ID:\n%s", msg)
	}
}

func TestPaymentDue(t *testing.T) {
	loan := settlingLoan()
	inst := loan.Installments[1]
	inst.DueDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	msg := PaymentDue(loan, inst)
	for _, want := range []string{"৳3428.44", "2024-03-01", "1100123456789012"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
