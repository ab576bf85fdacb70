package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

// Classification states. A transaction starts Uncategorized and moves to one
// of the classified states through an explicit classification step.
const (
	StatusUncategorized ClassificationStatus = "uncategorized"
	StatusRule          ClassificationStatus = "rule"
	StatusAI            ClassificationStatus = "ai"
	StatusUser          ClassificationStatus = "user"
)

const (
	// UncategorizedCategory marks a transaction awaiting classification.
	UncategorizedCategory = "Uncategorized"

	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"

	maxDescriptionLength = 500
)

type (
	TxType               string
	ClassificationStatus string

	Date struct {
		time.Time
	}

	Month struct {
		Year  int
		Month time.Month
	}

	Transaction struct {
		ID          string               `json:"id"`
		OwnerID     string               `json:"owner_id"`
		Date        Date                 `json:"date"`
		Category    string               `json:"category"`
		Subcategory string               `json:"subcategory"`
		Amount      Money                `json:"amount"`
		Description string               `json:"description"`
		Type        TxType               `json:"type"`
		Status      ClassificationStatus `json:"status"`
		Confidence  float64              `json:"confidence"`
	}

	Budget struct {
		OwnerID  string `json:"owner_id"`
		Category string `json:"category"`
		Amount   Money  `json:"amount"`
		Month    Month  `json:"month"`
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrMissingOwner       = errors.New("missing owner")
	ErrEmptyCategory      = errors.New("empty category")
	ErrUnknownCategory    = errors.New("unknown category or subcategory")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", maxDescriptionLength)
)

// Valid reports whether t is one of the two transaction types.
func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// ParseTxType accepts "income" or "expense" in any case.
func ParseTxType(s string) (TxType, error) {
	t := TxType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// Classified reports whether the transaction left the provisional state.
func (s ClassificationStatus) Classified() bool {
	return s == StatusRule || s == StatusAI || s == StatusUser
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time of day and location of t, keeping its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Month returns the calendar month containing d.
func (d Date) Month() Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

// After and Before compare calendar days only.
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NewMonth builds a Month, rejecting out-of-range values.
func NewMonth(year, month int) (Month, error) {
	if month < 1 || month > 12 || year < 1 {
		return Month{}, ErrInvalidMonth
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return Month{}, ErrInvalidMonth
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) Validate() error {
	if m.Year < 1 || m.Month < time.January || m.Month > time.December {
		return ErrInvalidMonth
	}
	return nil
}

func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Start is the first day of the month.
func (m Month) Start() Date { return NewDate(m.Year, int(m.Month), 1) }

// End is the last day of the month.
func (m Month) End() Date {
	return Date{Time: m.Start().AddDate(0, 1, -1)}
}

// Contains reports whether d falls in [Start, End].
func (m Month) Contains(d Date) bool {
	return d.Year() == m.Year && d.Time.Month() == m.Month
}

func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

func (m Month) Prev() Month {
	if m.Month == time.January {
		return Month{Year: m.Year - 1, Month: time.December}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m Month) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Month) UnmarshalJSON(b []byte) error {
	parsed, err := ParseMonth(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrMissingOwner
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// Uncategorize resets the classification fields to the provisional state.
func (t *Transaction) Uncategorize() {
	t.Category = UncategorizedCategory
	t.Subcategory = ""
	t.Status = StatusUncategorized
	t.Confidence = 0
	if !t.Type.Valid() {
		t.Type = Expense
	}
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.OwnerID) == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return b.Month.Validate()
}
