package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"
)

// Column addresses a spreadsheet or CSV column either by zero-based index
// ("0", "3") or by spreadsheet letter ("A", "AB"). Empty means unset.
type Column string

// IsSet reports whether the column was configured.
func (c Column) IsSet() bool { return strings.TrimSpace(string(c)) != "" }

// Index returns the zero-based column position.
func (c Column) Index() (int, error) {
	s := strings.TrimSpace(string(c))
	if s == "" {
		return -1, errors.New("column not set")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return -1, fmt.Errorf("negative column index %d", n)
		}
		return n, nil
	}
	n, err := excelize.ColumnNameToNumber(strings.ToUpper(s))
	if err != nil {
		return -1, fmt.Errorf("invalid column %q: %w", s, err)
	}
	return n - 1, nil
}

// UnmarshalJSON accepts both numbers and strings.
func (c *Column) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*c = Column(strconv.Itoa(n))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("column must be an index or a letter: %w", err)
	}
	*c = Column(s)
	return nil
}

// Columns maps semantic fields to file columns. Either Amount or at least
// one of Debit/Credit must be set for tabular formats.
type Columns struct {
	Date        Column `json:"date,omitempty" yaml:"date"`
	Amount      Column `json:"amount,omitempty" yaml:"amount"`
	Debit       Column `json:"debit,omitempty" yaml:"debit"`
	Credit      Column `json:"credit,omitempty" yaml:"credit"`
	Description Column `json:"description,omitempty" yaml:"description"`
	ValueDate   Column `json:"valueDate,omitempty" yaml:"value_date"`
	Reference   Column `json:"reference,omitempty" yaml:"reference"`
}

// Config holds the format-specific parse options of an import.
type Config struct {
	HasHeader        bool    `json:"hasHeader" yaml:"has_header"`
	SkipRows         int     `json:"skipRows,omitempty" yaml:"skip_rows"`
	Delimiter        string  `json:"delimiter,omitempty" yaml:"delimiter"`
	Encoding         string  `json:"encoding,omitempty" yaml:"encoding"`
	DecimalSeparator string  `json:"decimalSeparator,omitempty" yaml:"decimal_separator"`
	DateFormat       string  `json:"dateFormat,omitempty" yaml:"date_format"`
	InvertAmount     bool    `json:"invertAmount,omitempty" yaml:"invert_amount"`
	Sheet            string  `json:"sheet,omitempty" yaml:"sheet"`
	Columns          Columns `json:"columns" yaml:"columns"`
}

// Validate checks that cfg can drive a parser for format.
func (cfg Config) Validate(format Format) error {
	var errs []error
	if cfg.SkipRows < 0 {
		errs = append(errs, fmt.Errorf("skipRows must be >= 0, got %d", cfg.SkipRows))
	}
	switch cfg.DecimalSeparator {
	case "", ".", ",":
	default:
		errs = append(errs, fmt.Errorf("decimalSeparator must be \".\" or \",\", got %q", cfg.DecimalSeparator))
	}
	if cfg.Encoding != "" {
		if _, err := htmlindex.Get(cfg.Encoding); err != nil {
			errs = append(errs, fmt.Errorf("unknown encoding %q", cfg.Encoding))
		}
	}

	if format == FormatCSV || format == FormatXLSX {
		if format == FormatCSV {
			if _, err := cfg.delimiter(); err != nil {
				errs = append(errs, err)
			}
		}
		cols := cfg.Columns
		if !cols.Date.IsSet() {
			errs = append(errs, errors.New("columns.date is required"))
		}
		if !cols.Description.IsSet() {
			errs = append(errs, errors.New("columns.description is required"))
		}
		if !cols.Amount.IsSet() && !cols.Debit.IsSet() && !cols.Credit.IsSet() {
			errs = append(errs, errors.New("columns.amount or columns.debit/columns.credit is required"))
		}
		for _, c := range []struct {
			name string
			col  Column
		}{
			{"date", cols.Date}, {"amount", cols.Amount}, {"debit", cols.Debit}, {"credit", cols.Credit},
			{"description", cols.Description}, {"valueDate", cols.ValueDate}, {"reference", cols.Reference},
		} {
			if !c.col.IsSet() {
				continue
			}
			if _, err := c.col.Index(); err != nil {
				errs = append(errs, fmt.Errorf("columns.%s: %w", c.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// delimiter returns the configured field separator, or 0 to sniff it.
func (cfg Config) delimiter() (rune, error) {
	switch strings.ToLower(cfg.Delimiter) {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(cfg.Delimiter) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", cfg.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(cfg.Delimiter)
	if r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", cfg.Delimiter)
	}
	return r, nil
}

var dateTokens = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MMM", "Jan",
	"MM", "01",
	"DD", "02",
	"M", "1",
	"D", "2",
)

// dateLayout converts a user-facing date format such as "DD/MM/YYYY" into a
// Go layout. Values without YY/MM/DD tokens are taken as Go layouts already.
func (cfg Config) dateLayout() string {
	f := strings.TrimSpace(cfg.DateFormat)
	if f == "" {
		return ""
	}
	upper := strings.ToUpper(f)
	if !strings.Contains(upper, "YY") && !strings.Contains(upper, "DD") && !strings.Contains(upper, "MM") {
		return f
	}
	return dateTokens.Replace(upper)
}
