// Package notify builds WhatsApp deep links for borrower messages. It is
// pure string formatting; opening the link (and therefore sending anything)
// is left to the operator's device.
package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"loantrack/internal/core"
)

// NormalizePhone rewrites a local number with a leading 0 to the
// international 880 form wa.me expects ("01712..." -> "8801712...").
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "0") {
		return "88" + phone
	}
	return phone
}

// Link assembles the wa.me URL for a message.
func Link(phone, message string) string {
	return fmt.Sprintf("https://wa.me/%s?text=%s",
		NormalizePhone(phone), url.QueryEscape(message))
}

// PaymentReceived is the confirmation sent after an installment is marked
// paid. Remaining is computed as if the given installment were already
// settled, so the message is correct even when built from the pre-toggle
// loan.
func PaymentReceived(loan core.Loan, installmentID string) (string, error) {
	var inst *core.Installment
	paid := decimal.Zero
	for i := range loan.Installments {
		in := &loan.Installments[i]
		if in.Status == core.InstallmentPaid || in.ID == installmentID {
			paid = paid.Add(in.Amount)
		}
		if in.ID == installmentID {
			inst = in
		}
	}
	if inst == nil {
		return "", core.ErrInstallmentNotFound
	}
	remaining := loan.TotalPayable.Sub(paid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return fmt.Sprintf(
		"*Loan Payment Confirmation*\n\nDear %s,\nYour installment of %s for loan ID %s has been received.\n\nRemaining balance: %s\n\nThank you.",
		loan.UserName, money(inst.Amount), loan.DisplayID, money(remaining)), nil
}

// LoanSettled is the congratulation sent when the last installment is paid.
func LoanSettled(loan core.Loan) string {
	return fmt.Sprintf(
		"*Congratulations! Loan Fully Repaid*\n\nDear %s,\nYour loan ID %s has been fully repaid. Thank you for keeping every payment on time. We are here whenever you need us again.",
		loan.UserName, loan.DisplayID)
}

// PaymentDue is the day-before reminder for an upcoming installment.
func PaymentDue(loan core.Loan, inst core.Installment) string {
	return fmt.Sprintf(
		"Reminder: your installment of %s for loan ID %s is due on %s. Please pay on time. Thank you.",
		money(inst.Amount), loan.DisplayID, inst.DueDate.Format("2006-01-02"))
}

func money(d decimal.Decimal) string {
	return "৳" + d.StringFixed(2)
}
