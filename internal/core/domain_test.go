package core

import (
	"errors"
	"testing"
	"time"
)

func testLoan(t *testing.T, term int) Loan {
	t.Helper()
	loan, err := NewLoan(LoanInput{
		UserName:   "Rahim",
		Principal:  d("10000"),
		TermMonths: term,
		StartDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NewLoan() error = %v", err)
	}
	return loan
}

func TestLoan_Toggle(t *testing.T) {
	loan := testLoan(t, 3)

	if err := loan.Toggle(loan.Installments[0].ID); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if loan.Installments[0].Status != InstallmentPaid {
		t.Errorf("status = %s, want Paid", loan.Installments[0].Status)
	}
	if loan.PaidInstallments != 1 {
		t.Errorf("paid installments = %d, want 1", loan.PaidInstallments)
	}
	if !loan.NextDueDate.Equal(loan.Installments[1].DueDate) {
		t.Errorf("next due = %v, want second installment", loan.NextDueDate)
	}

	if err := loan.Toggle("no-such-id"); !errors.Is(err, ErrInstallmentNotFound) {
		t.Errorf("Toggle(unknown) error = %v, want ErrInstallmentNotFound", err)
	}
}

func TestLoan_ToggleRoundTripIsIdempotent(t *testing.T) {
	loan := testLoan(t, 3)

	before := struct {
		paid     int
		status   LoanStatus
		next     time.Time
		statuses []InstallmentStatus
	}{loan.PaidInstallments, loan.Status, loan.NextDueDate, nil}
	for _, inst := range loan.Installments {
		before.statuses = append(before.statuses, inst.Status)
	}

	id := loan.Installments[1].ID
	if err := loan.Toggle(id); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if err := loan.Toggle(id); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}

	if loan.PaidInstallments != before.paid {
		t.Errorf("paid installments = %d, want %d", loan.PaidInstallments, before.paid)
	}
	if loan.Status != before.status {
		t.Errorf("status = %s, want %s", loan.Status, before.status)
	}
	if !loan.NextDueDate.Equal(before.next) {
		t.Errorf("next due = %v, want %v", loan.NextDueDate, before.next)
	}
	for i, inst := range loan.Installments {
		if inst.Status != before.statuses[i] {
			t.Errorf("installment %d status = %s, want %s", i, inst.Status, before.statuses[i])
		}
	}
}

func TestLoan_PaidTransition(t *testing.T) {
	loan := testLoan(t, 3)

	for _, inst := range loan.Installments {
		if err := loan.Toggle(inst.ID); err != nil {
			t.Fatalf("Toggle() error = %v", err)
		}
	}
	if loan.Status != LoanPaid {
		t.Errorf("status = %s, want Paid after all installments", loan.Status)
	}
	if loan.PaidInstallments != 3 {
		t.Errorf("paid installments = %d, want 3", loan.PaidInstallments)
	}
	if !loan.NextDueDate.Equal(loan.Installments[2].DueDate) {
		t.Errorf("next due = %v, want last installment date", loan.NextDueDate)
	}
	if !loan.Remaining().IsZero() {
		t.Errorf("remaining = %s, want 0", loan.Remaining())
	}

	// Un-paying one reactivates the loan.
	if err := loan.Toggle(loan.Installments[1].ID); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if loan.Status != LoanActive {
		t.Errorf("status = %s, want Active", loan.Status)
	}
}

func TestUserAccount_Validate(t *testing.T) {
	tests := []struct {
		name    string
		user    UserAccount
		wantErr error
	}{
		{name: "valid admin", user: UserAccount{Name: "Admin", PIN: "1234", Role: RoleAdmin}},
		{name: "valid user with phone", user: UserAccount{Name: "Karim", Phone: "01712345678", PIN: "0000", Role: RoleUser}},
		{name: "empty name", user: UserAccount{PIN: "1234", Role: RoleUser}, wantErr: ErrEmptyUserName},
		{name: "short pin", user: UserAccount{Name: "X", PIN: "123", Role: RoleUser}, wantErr: ErrInvalidPIN},
		{name: "long pin", user: UserAccount{Name: "X", PIN: "12345", Role: RoleUser}, wantErr: ErrInvalidPIN},
		{name: "alpha pin", user: UserAccount{Name: "X", PIN: "12a4", Role: RoleUser}, wantErr: ErrInvalidPIN},
		{name: "bad role", user: UserAccount{Name: "X", PIN: "1234", Role: "owner"}, wantErr: ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	a := testLoan(t, 3)
	b := testLoan(t, 3)
	for _, inst := range b.Installments {
		if err := b.Toggle(inst.ID); err != nil {
			t.Fatalf("Toggle() error = %v", err)
		}
	}

	stats := ComputeStats([]Loan{a, b})

	wantPayable := a.TotalPayable.Add(b.TotalPayable)
	if !stats.TotalPayable.Equal(wantPayable) {
		t.Errorf("total payable = %s, want %s", stats.TotalPayable, wantPayable)
	}
	if !stats.TotalPaid.Equal(b.TotalPayable) {
		t.Errorf("total paid = %s, want %s", stats.TotalPaid, b.TotalPayable)
	}
	if !stats.TotalRemaining.Equal(a.TotalPayable) {
		t.Errorf("total remaining = %s, want %s", stats.TotalRemaining, a.TotalPayable)
	}
	if stats.ActiveLoans != 1 {
		t.Errorf("active loans = %d, want 1", stats.ActiveLoans)
	}

	empty := ComputeStats(nil)
	if !empty.TotalPayable.IsZero() || empty.ActiveLoans != 0 {
		t.Errorf("empty stats = %+v, want zeros", empty)
	}
}
