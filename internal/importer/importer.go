// Package importer reads bank-statement CSV files and writes transaction
// exports.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"fintrack/internal/core"
)

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrEmptyFile     = errors.New("empty file")
)

// Accepted date layouts, tried in order.
var dateLayouts = []string{"2006-01-02", "01/02/2006", "02.01.2006"}

const (
	colDate        = "date"
	colDescription = "expense detail"
	colAmount      = "amount"
	colType        = "type"
)

// headerAliases maps alternative header names to the canonical ones, so an
// export can be imported back.
var headerAliases = map[string]string{
	"description": colDescription,
}

// RowError explains why a data row was skipped. Line is 1-based and counts
// the header.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Row is a parsed data row, not yet classified.
type Row struct {
	Line        int
	Date        core.Date
	Description string
	Amount      core.Money
	// Type is empty unless the file has a valid Type column.
	Type core.TxType
}

// Report summarises an import.
type Report struct {
	Total    int        `json:"total"`
	Imported int        `json:"imported"`
	Skipped  []RowError `json:"skipped,omitempty"`
}

func (r Report) Summary() string {
	return fmt.Sprintf("imported %d of %d rows", r.Imported, r.Total)
}

// Parse reads every data row of a CSV file. Bad rows land in the report and
// never abort the import; only an unusable header is fatal.
func Parse(r io.Reader) ([]Row, Report, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, Report{}, ErrEmptyFile
	}
	if err != nil {
		return nil, Report{}, errors.Wrap(err, "read header")
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, Report{}, err
	}

	var (
		rows   []Row
		report Report
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				report.Total++
				report.Skipped = append(report.Skipped, RowError{Line: perr.Line, Reason: perr.Err.Error()})
				continue
			}
			return nil, Report{}, errors.Wrap(err, "read csv")
		}
		line, _ := cr.FieldPos(0)
		if blank(record) {
			continue
		}

		report.Total++
		row, rerr := parseRow(record, cols)
		if rerr != "" {
			report.Skipped = append(report.Skipped, RowError{Line: line, Reason: rerr})
			continue
		}
		row.Line = line
		rows = append(rows, row)
	}
	report.Imported = len(rows)
	return rows, report, nil
}

func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	var missing []string
	for _, required := range []string{colDate, colDescription, colAmount} {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(ErrMissingColumn, "%s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseRow(record []string, cols map[string]int) (Row, string) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	date, err := ParseDate(field(colDate))
	if err != nil {
		return Row{}, fmt.Sprintf("invalid date %q", field(colDate))
	}
	amount, err := core.ParseAmount(field(colAmount))
	if err != nil {
		return Row{}, fmt.Sprintf("invalid amount %q", field(colAmount))
	}
	// The description is optional; an empty one classifies as Other.
	row := Row{Date: date, Description: field(colDescription), Amount: amount.Abs()}
	if tt, err := core.ParseTxType(field(colType)); err == nil {
		row.Type = tt
	}
	return row, ""
}

// ParseDate accepts YYYY-MM-DD, MM/DD/YYYY and DD.MM.YYYY.
func ParseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, core.ErrInvalidDate
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
