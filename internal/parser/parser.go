// Package parser turns bank statement exports into staged records.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"statement-import-backend/internal/normalize"
)

// Format identifies a statement file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatQIF  Format = "qif"
	FormatOFX  Format = "ofx"
)

// StagedRecord is one parsed, not yet committed statement row.
type StagedRecord struct {
	Row         int             `json:"sourceRowIndex"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	ValueDate   *time.Time      `json:"valueDate,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Fingerprint string          `json:"fingerprint"`
}

// SkippedRow is a row that was dropped because it had no usable date or amount.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Result holds everything a parser produced for one file.
type Result struct {
	Records []StagedRecord `json:"records"`
	Skipped []SkippedRow   `json:"skipped"`
	Summary Summary        `json:"summary"`
}

// Parser converts raw file bytes into staged records.
type Parser interface {
	Format() Format
	Parse(ctx context.Context, data []byte, cfg Config) (*Result, error)
}

// Registry holds parsers keyed by format.
type Registry struct {
	parsers map[Format]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[Format]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	if _, ok := r.parsers[p.Format()]; ok {
		panic("duplicate parser format: " + string(p.Format()))
	}
	r.parsers[p.Format()] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format Format) Parser {
	f, err := ParseFormat(string(format))
	if err != nil {
		return nil
	}
	return r.parsers[f]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&DelimitedParser{})
	r.Register(&SpreadsheetParser{})
	r.Register(&QIFParser{})
	r.Register(&OFXParser{})
	return r
}

var defaultRegistry = DefaultRegistry()

// Parse validates cfg and parses data with the built-in parser for format.
func Parse(ctx context.Context, data []byte, format Format, cfg Config) (*Result, error) {
	p := defaultRegistry.Get(format)
	if p == nil {
		return nil, fmt.Errorf("unsupported file type %q", format)
	}
	if err := cfg.Validate(p.Format()); err != nil {
		return nil, err
	}
	return p.Parse(ctx, data, cfg)
}

// ParseFormat resolves a file type name or alias to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "csv", "txt", "tsv":
		return FormatCSV, nil
	case "xlsx", "xlsm":
		return FormatXLSX, nil
	case "qif":
		return FormatQIF, nil
	case "ofx", "qfx":
		return FormatOFX, nil
	default:
		return "", fmt.Errorf("unsupported file type %q", name)
	}
}

// DetectFormat picks a format from the file extension.
func DetectFormat(filename string) (Format, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		return "", fmt.Errorf("cannot detect file type of %q", filename)
	}
	return ParseFormat(ext)
}

// collector accumulates the rows of a single parse run.
type collector struct {
	invert  bool
	records []StagedRecord
	skipped []SkippedRow
}

func newCollector(cfg Config) *collector {
	return &collector{invert: cfg.InvertAmount}
}

func (c *collector) add(rec StagedRecord) {
	if c.invert {
		rec.Amount = rec.Amount.Neg()
	}
	rec.Description = strings.TrimSpace(rec.Description)
	rec.Fingerprint = normalize.Fingerprint(rec.Date, rec.Amount, rec.Description)
	c.records = append(c.records, rec)
}

func (c *collector) skip(row int, format string, args ...interface{}) {
	c.skipped = append(c.skipped, SkippedRow{Row: row, Reason: fmt.Sprintf(format, args...)})
}

func (c *collector) result() *Result {
	if c.records == nil {
		c.records = []StagedRecord{}
	}
	return &Result{
		Records: c.records,
		Skipped: c.skipped,
		Summary: Summarize(c.records),
	}
}
