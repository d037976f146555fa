package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

var errEmpty = errors.New("empty value")

// parseAmount reads a locale-formatted amount. sep is the decimal separator;
// an empty sep guesses it from the value. Currency symbols, spaces and
// grouping characters are ignored. "(12.50)" and "12.50-" are negative.
func parseAmount(raw, sep string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, errEmpty
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '-' || r == '+' || r == '.' || r == ',' {
			return r
		}
		return -1
	}, s)
	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimPrefix(s, "+")
	if s == "" || strings.ContainsAny(s, "+-") {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}

	if sep == "" {
		sep = guessDecimalSeparator(s)
	}
	if sep == "," {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	d = d.Round(2)
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// guessDecimalSeparator picks the separator that appears last, treating a
// lone comma followed by exactly three digits as a grouping character.
func guessDecimalSeparator(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma < 0:
		return "."
	case lastDot > lastComma:
		return "."
	case lastDot >= 0:
		return ","
	case strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3:
		return ","
	default:
		return "."
	}
}

var fallbackDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02.01.2006",
	"02-01-2006",
	"2006/01/02",
	"20060102",
	"02/01/06",
	"02.01.06",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02 Jan 2006",
	"Jan 2, 2006",
}

// parseDate parses s with layout, or with a list of common layouts when
// layout is empty. The result is a calendar date in UTC.
func parseDate(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmpty
	}
	if layout != "" {
		t, err := time.Parse(layout, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q for format %q", s, layout)
		}
		return calendarDate(t), nil
	}
	for _, l := range fallbackDateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return calendarDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// decode converts data from the named charset to UTF-8 and drops a UTF-8 BOM.
func decode(data []byte, encoding string) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return data, nil
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", encoding, err)
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", encoding, err)
	}
	return out, nil
}

// cell returns the trimmed value at the column, or "" when unset or out of range.
func cell(row []string, col Column) string {
	if !col.IsSet() {
		return ""
	}
	i, err := col.Index()
	if err != nil || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
