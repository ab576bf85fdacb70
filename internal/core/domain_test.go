package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateOfDropsTimeAndZone(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	d := DateOf(time.Date(2024, 1, 31, 23, 30, 0, 0, loc))
	if d.String() != "2024-01-31" {
		t.Fatalf("expected 2024-01-31, got %s", d)
	}
	if d.Location() != time.UTC {
		t.Fatalf("expected UTC normalised date")
	}
}

func TestMonthBounds(t *testing.T) {
	cases := []struct {
		in         string
		start, end string
		next, prev string
	}{
		{"2024-01", "2024-01-01", "2024-01-31", "2024-02", "2023-12"},
		{"2024-02", "2024-02-01", "2024-02-29", "2024-03", "2024-01"},
		{"2023-12", "2023-12-01", "2023-12-31", "2024-01", "2023-11"},
	}
	for _, tc := range cases {
		m, err := ParseMonth(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if m.Start().String() != tc.start || m.End().String() != tc.end {
			t.Fatalf("%s: bounds %s..%s", tc.in, m.Start(), m.End())
		}
		if m.Next().String() != tc.next || m.Prev().String() != tc.prev {
			t.Fatalf("%s: next=%s prev=%s", tc.in, m.Next(), m.Prev())
		}
		if !m.Contains(m.Start()) || !m.Contains(m.End()) {
			t.Fatalf("%s: month must contain its bounds", tc.in)
		}
		if m.Contains(m.Next().Start()) {
			t.Fatalf("%s: month must not contain next month", tc.in)
		}
	}
	if _, err := ParseMonth("2024-13"); err == nil {
		t.Fatalf("expected error for month 13")
	}
	if _, err := NewMonth(2024, 0); err == nil {
		t.Fatalf("expected error for month 0")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		OwnerID:     "u1",
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
		Amount:      MustMoney("10.00"),
		Type:        Expense,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	zero := good
	zero.Amount = Money{}
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero amount should be allowed, got %v", err)
	}

	bads := []struct {
		mutate func(*Transaction)
		want   error
	}{
		{func(tx *Transaction) { tx.OwnerID = " " }, ErrMissingOwner},
		{func(tx *Transaction) { tx.Date = Date{} }, ErrInvalidDate},
		{func(tx *Transaction) { tx.Amount = MustMoney("-1") }, ErrInvalidAmount},
		{func(tx *Transaction) { tx.Type = "transfer" }, ErrInvalidType},
		{func(tx *Transaction) { tx.Description = strings.Repeat("x", 501) }, ErrDescriptionTooLong},
	}
	for i, tc := range bads {
		tx := good
		tc.mutate(&tx)
		if err := tx.Validate(); err != tc.want {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestBudgetValidate(t *testing.T) {
	m, _ := NewMonth(2024, 3)
	good := Budget{OwnerID: "u1", Category: "Savings", Amount: MoneyFromInt(100), Month: m}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Category = ""
	if err := bad.Validate(); err != ErrEmptyCategory {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
	bad = good
	bad.Month = Month{}
	if err := bad.Validate(); err != ErrInvalidMonth {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestUncategorize(t *testing.T) {
	tx := Transaction{Category: "Debt", Subcategory: "Car Loan", Status: StatusUser, Confidence: 1}
	tx.Uncategorize()
	if tx.Category != UncategorizedCategory || tx.Subcategory != "" || tx.Status != StatusUncategorized {
		t.Fatalf("unexpected state %+v", tx)
	}
	if tx.Type != Expense {
		t.Fatalf("missing type should default to expense, got %q", tx.Type)
	}
	if tx.Status.Classified() {
		t.Fatalf("uncategorized must not report classified")
	}
}

func TestTransactionJSON(t *testing.T) {
	tx := Transaction{
		ID:      "abc",
		OwnerID: "u1",
		Date:    NewDate(2024, 1, 15),
		Amount:  MustMoney("1000"),
		Type:    Income,
	}
	b, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"date":"2024-01-15"`) || !strings.Contains(s, `"amount":"1000.00"`) {
		t.Fatalf("unexpected json %s", s)
	}

	var back Transaction
	if err := json.Unmarshal([]byte(`{"date":"2024-02-29","amount":12.5,"type":"expense"}`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Date.String() != "2024-02-29" || back.Amount.String() != "12.50" {
		t.Fatalf("unexpected value %+v", back)
	}
}
