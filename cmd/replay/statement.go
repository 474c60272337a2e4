package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/finsight/internal/domain"
)

// StatementRow is one line of a bank statement export.
type StatementRow struct {
	Line        int
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Type        domain.TransactionType
	Category    string
	Location    string

	// Labeled and Fraud carry the optional ground-truth column.
	Labeled bool
	Fraud   bool
}

// Request builds the ingestion payload for userID.
func (r StatementRow) Request(userID string) domain.TransactionRequest {
	date := domain.InstantAt(r.Date)
	return domain.TransactionRequest{
		UserID:          userID,
		Amount:          r.Amount,
		Type:            r.Type,
		Category:        r.Category,
		Description:     r.Description,
		Location:        r.Location,
		TransactionDate: &date,
	}
}

var requiredColumns = []string{"date", "description", "amount"}

// ReadStatement parses a CSV statement with a header row. Required columns
// are date, description and amount; category, location, type and fraud are
// optional. Without a type column a negative amount is an expense.
// Dates are RFC 3339 instants, offset-less date-times read in loc, or
// YYYY-MM-DD days interpreted at noon in loc.
func ReadStatement(r io.Reader, loc *time.Location) ([]StatementRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []StatementRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row, err := parseRow(line, loc, func(name string) string { return field(record, name) })
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(line int, loc *time.Location, get func(string) string) (StatementRow, error) {
	row := StatementRow{
		Line:        line,
		Description: get("description"),
		Category:    get("category"),
		Location:    get("location"),
	}

	date, err := parseStatementDate(get("date"), loc)
	if err != nil {
		return row, err
	}
	row.Date = date

	amount, err := decimal.NewFromString(get("amount"))
	if err != nil {
		return row, fmt.Errorf("invalid amount %q", get("amount"))
	}

	switch t := domain.TransactionType(strings.ToUpper(get("type"))); {
	case t == "":
		row.Type = domain.TypeIncome
		if amount.IsNegative() {
			row.Type = domain.TypeExpense
		}
	case t.Valid():
		row.Type = t
	default:
		return row, fmt.Errorf("unknown type %q", get("type"))
	}
	row.Amount = amount.Abs()

	if v := get("fraud"); v != "" {
		row.Labeled = true
		row.Fraud = v == "1" || strings.EqualFold(v, "true")
	}
	return row, nil
}

func parseStatementDate(s string, loc *time.Location) (time.Time, error) {
	if i, err := domain.ParseInstant(s); err == nil {
		return i.In(loc), nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d.StartOf(loc).Add(12 * time.Hour), nil
}
