package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// DelimitedParser reads CSV, TSV and similar delimited text exports.
type DelimitedParser struct{}

func (p *DelimitedParser) Format() Format { return FormatCSV }

func (p *DelimitedParser) Parse(ctx context.Context, data []byte, cfg Config) (*Result, error) {
	text, err := decode(data, cfg.Encoding)
	if err != nil {
		return nil, err
	}
	body := dropLines(text, cfg.SkipRows)

	delim, err := cfg.delimiter()
	if err != nil {
		return nil, err
	}
	if delim == 0 {
		delim = sniffDelimiter(body)
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	mapper := newRowMapper(cfg)
	out := newCollector(cfg)
	header := cfg.HasHeader
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				out.skip(cfg.SkipRows+perr.StartLine, "malformed row: %v", perr.Err)
				continue
			}
			return nil, fmt.Errorf("reading delimited file: %w", err)
		}
		line, _ := r.FieldPos(0)
		rowNum := cfg.SkipRows + line
		if header {
			header = false
			continue
		}
		if blank(row) {
			continue
		}
		rec, err := mapper.mapRow(rowNum, row)
		if err != nil {
			out.skip(rowNum, "%v", err)
			continue
		}
		out.add(rec)
	}
	return out.result(), nil
}

// dropLines removes the first n lines of data.
func dropLines(data []byte, n int) []byte {
	for i := 0; i < n && len(data) > 0; i++ {
		j := bytes.IndexByte(data, '\n')
		if j < 0 {
			return nil
		}
		data = data[j+1:]
	}
	return data
}

var delimiterCandidates = []rune{',', ';', '\t', '|'}

// sniffDelimiter picks the candidate that occurs most often on the first
// non-empty line, defaulting to a comma.
func sniffDelimiter(data []byte) rune {
	var first []byte
	for len(data) > 0 {
		j := bytes.IndexByte(data, '\n')
		if j < 0 {
			first, data = data, nil
		} else {
			first, data = data[:j], data[j+1:]
		}
		if len(bytes.TrimSpace(first)) > 0 {
			break
		}
	}
	best, bestCount := ',', 0
	for _, c := range delimiterCandidates {
		if n := bytes.Count(first, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
