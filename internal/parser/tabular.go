package parser

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// rowMapper turns a row of cells into a staged record using the configured
// column map. CSV and XLSX share it but read cell values differently.
type rowMapper struct {
	cols   Columns
	date   func(string) (time.Time, error)
	amount func(string) (decimal.Decimal, error)

	// number reports whether the cell in col stores a plain number, which
	// is read as is instead of through the locale aware amount parser.
	number func(col Column) bool
}

func newRowMapper(cfg Config) rowMapper {
	layout := cfg.dateLayout()
	sep := cfg.DecimalSeparator
	return rowMapper{
		cols:   cfg.Columns,
		date:   func(s string) (time.Time, error) { return parseDate(s, layout) },
		amount: func(s string) (decimal.Decimal, error) { return parseAmount(s, sep) },
	}
}

// mapRow returns the record for row, or an error describing why it was skipped.
func (m rowMapper) mapRow(rowNum int, row []string) (StagedRecord, error) {
	date, err := m.date(cell(row, m.cols.Date))
	if err != nil {
		return StagedRecord{}, err
	}
	amount, err := m.rowAmount(row)
	if err != nil {
		return StagedRecord{}, err
	}
	rec := StagedRecord{
		Row:         rowNum,
		Date:        date,
		Amount:      amount,
		Description: cell(row, m.cols.Description),
		Reference:   cell(row, m.cols.Reference),
	}
	if m.cols.ValueDate.IsSet() {
		if vd, err := m.date(cell(row, m.cols.ValueDate)); err == nil {
			rec.ValueDate = &vd
		}
	}
	return rec, nil
}

func (m rowMapper) cellAmount(row []string, col Column) (decimal.Decimal, error) {
	raw := cell(row, col)
	if m.number != nil && m.number(col) {
		if d, err := decimal.NewFromString(strings.TrimSpace(raw)); err == nil {
			return d.Round(2), nil
		}
	}
	return m.amount(raw)
}

func (m rowMapper) rowAmount(row []string) (decimal.Decimal, error) {
	if m.cols.Amount.IsSet() {
		return m.cellAmount(row, m.cols.Amount)
	}
	credit, cerr := m.cellAmount(row, m.cols.Credit)
	debit, derr := m.cellAmount(row, m.cols.Debit)
	switch {
	case cerr == nil && derr == nil:
		return credit.Abs().Sub(debit.Abs()), nil
	case cerr == nil:
		return credit.Abs(), nil
	case derr == nil:
		return debit.Abs().Neg(), nil
	case errors.Is(cerr, errEmpty) && errors.Is(derr, errEmpty):
		return decimal.Zero, errors.New("no debit or credit amount")
	case errors.Is(cerr, errEmpty):
		return decimal.Zero, derr
	default:
		return decimal.Zero, cerr
	}
}
